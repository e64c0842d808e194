// Package metrics records installer run metrics in a prometheus registry
// that is written out as a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/metal-toolbox/ooinstall/internal/tasks"
	"github.com/metal-toolbox/ooinstall/internal/topology"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ooinstall"

// Recorder holds the metrics for a single installer run.
type Recorder struct {
	registry *prometheus.Registry

	hosts          *prometheus.GaugeVec
	stepDuration   *prometheus.GaugeVec
	playbookStatus *prometheus.GaugeVec
	lastRun        *prometheus.GaugeVec
}

// New registers the installer metrics on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		hosts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hosts",
				Help:      "Number of hosts per inventory group.",
			},
			[]string{"group"},
		),
		stepDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Time spent in each install step.",
			},
			[]string{"step", "state"},
		),
		playbookStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "playbook_exit_status",
				Help:      "Exit status of the last ansible-playbook run.",
			},
			[]string{"playbook"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the installer finished, by result.",
			},
			[]string{"result"},
		),
	}

	r.registry.MustRegister(r.hosts, r.stepDuration, r.playbookStatus, r.lastRun)

	return r
}

// ObserveTopology records the group sizes.
func (r *Recorder) ObserveTopology(t *topology.Topology) {
	r.hosts.WithLabelValues("masters").Set(float64(len(t.Masters)))
	r.hosts.WithLabelValues("nodes").Set(float64(len(t.Nodes)))
	r.hosts.WithLabelValues("run_targets").Set(float64(len(t.RunTargets)))
}

// ObserveStep implements tasks.StepObserver.
func (r *Recorder) ObserveStep(step string, state tasks.State, elapsed time.Duration) {
	r.stepDuration.WithLabelValues(step, string(state)).Set(elapsed.Seconds())
}

// ObservePlaybook records the exit status of a playbook run.
func (r *Recorder) ObservePlaybook(playbook string, status int) {
	r.playbookStatus.WithLabelValues(playbook).Set(float64(status))
}

// ObserveResult records the end of the run.
func (r *Recorder) ObserveResult(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	r.lastRun.WithLabelValues(result).SetToCurrentTime()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrap(err, "write metrics textfile")
	}

	return nil
}
