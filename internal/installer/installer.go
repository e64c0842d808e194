// Package installer runs an installation: it renders the inventory, gathers
// system facts and runs the main playbook against the resolved topology.
package installer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/metal-toolbox/ooinstall/internal/ansible"
	"github.com/metal-toolbox/ooinstall/internal/configuration"
	"github.com/metal-toolbox/ooinstall/internal/facts"
	"github.com/metal-toolbox/ooinstall/internal/inventory"
	"github.com/metal-toolbox/ooinstall/internal/metrics"
	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/metal-toolbox/ooinstall/internal/tasks"
	"github.com/metal-toolbox/ooinstall/internal/topology"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	pkgName  = "internal/installer"
	taskName = "Install"
)

// Installer holds the state of one installation run.
type Installer struct {
	cfg       *configuration.Configuration
	install   *model.InstallationConfig
	runner    ansible.Runner
	publisher tasks.Publisher
	metrics   *metrics.Recorder

	topology *topology.Topology
	facts    facts.ByIP
}

// New returns an Installer for install. publisher may be nil.
func New(
	cfg *configuration.Configuration,
	install *model.InstallationConfig,
	runner ansible.Runner,
	publisher tasks.Publisher,
	recorder *metrics.Recorder,
) *Installer {
	if recorder == nil {
		recorder = metrics.New()
	}

	return &Installer{
		cfg:       cfg,
		install:   install,
		runner:    runner,
		publisher: publisher,
		metrics:   recorder,
	}
}

// Topology returns the resolved host groups, nil before the run resolved them.
func (i *Installer) Topology() *topology.Topology {
	return i.topology
}

// Config returns the installation config, including host fields filled from facts.
func (i *Installer) Config() *model.InstallationConfig {
	return i.install
}

// Run executes the install steps in order and stops at the first failure.
func (i *Installer) Run(ctx context.Context) error {
	ctx, span := otel.Tracer(pkgName).Start(
		ctx,
		"installer.Run",
		trace.WithAttributes(
			attribute.String("product", i.install.Product),
			attribute.Int("hosts", len(i.install.Hosts)),
		),
	)
	defer span.End()

	task := tasks.NewTask(taskName,
		i.step("ResolveTopology", i.resolveTopology),
		i.step("WriteInventory", i.writeInventory),
		i.step("GatherFacts", i.gatherFacts),
		i.step("ApplyFacts", i.applyFacts),
		i.step("RunMainPlaybook", i.runMainPlaybook),
	)

	err := tasks.NewTaskRunner(i.publisher, i.metrics, task).Run(ctx)
	i.metrics.ObserveResult(err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// step wraps fn in a tracing span named after the step.
func (i *Installer) step(name string, fn func(ctx context.Context) (string, error)) tasks.Step {
	return tasks.NewStep(name, func(ctx context.Context) (string, error) {
		ctx, span := otel.Tracer(pkgName).Start(ctx, "installer."+name)
		defer span.End()

		details, err := fn(ctx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}

		return details, err
	})
}

func (i *Installer) resolveTopology(_ context.Context) (string, error) {
	t, err := topology.Resolve(i.install.Hosts)
	if err != nil {
		return "Invalid host topology", err
	}

	i.topology = t
	i.metrics.ObserveTopology(t)

	slog.Info("Topology resolved", t.AsLogFields()...)

	return fmt.Sprintf("%d masters, %d nodes", len(t.Masters), len(t.Nodes)), nil
}

func (i *Installer) writeInventory(_ context.Context) (string, error) {
	data, err := inventory.Render(i.install, i.topology.Masters, i.topology.Nodes)
	if err != nil {
		return "Failed to render inventory", err
	}

	path := i.cfg.InventoryPath()
	if err := inventory.Write(path, data); err != nil {
		return "Failed to write inventory", err
	}

	slog.Info("Inventory written", "path", path)

	return "Inventory written to " + path, nil
}

func (i *Installer) gatherFacts(ctx context.Context) (string, error) {
	playbook := ansible.FactsPlaybook(i.cfg.WorkDir)

	byIP, status, err := i.runner.LoadFacts(ctx, i.cfg.InventoryPath(), playbook, i.cfg.AnsibleEnv())
	if err != nil {
		return "Failed to gather system facts", errors.Wrap(model.ErrCollaborator, err.Error())
	}

	i.metrics.ObservePlaybook("facts", status)

	if status != 0 {
		return "Failed to gather system facts", &model.CollaboratorError{Operation: "facts playbook", Status: status}
	}

	i.facts = byIP

	return fmt.Sprintf("Facts gathered for %d hosts", len(byIP)), nil
}

func (i *Installer) applyFacts(ctx context.Context) (string, error) {
	hosts, changed, err := facts.Apply(i.install.Hosts, i.facts)
	if err != nil {
		return "Failed to apply system facts", err
	}

	details := []string{}

	if changed {
		updated := *i.install
		updated.Hosts = hosts
		i.install = &updated

		if _, err := i.writeInventory(ctx); err != nil {
			return "Failed to rewrite inventory", err
		}

		details = append(details, "host defaults filled from facts")
	}

	installed := i.facts.Installed(i.install.Hosts)
	if len(installed) > 0 {
		if i.cfg.SkipInstalled {
			i.topology = i.topology.Exclude(installed...)
			i.metrics.ObserveTopology(i.topology)

			slog.Info("Skipping hosts with an existing deployment", "hosts", installed)
			details = append(details, "skipping installed hosts "+strings.Join(installed, ","))
		} else {
			slog.Warn("Hosts already report a deployment type, installing anyway", "hosts", installed)
			details = append(details, "installed hosts found "+strings.Join(installed, ","))
		}
	}

	if len(details) == 0 {
		return "No changes from facts", nil
	}

	return strings.Join(details, "; "), nil
}

func (i *Installer) runMainPlaybook(ctx context.Context) (string, error) {
	t := i.topology
	if len(t.RunTargets) == 0 {
		slog.Info("No hosts left to install")
		return "No hosts to install", nil
	}

	status, err := i.runner.RunMainPlaybook(ctx, t.Masters, t.Nodes, t.RunTargets, i.cfg.AnsibleEnv())
	if err != nil {
		return "Failed to run main playbook", errors.Wrap(model.ErrCollaborator, err.Error())
	}

	i.metrics.ObservePlaybook("main", status)

	if status != 0 {
		return "Main playbook failed", &model.CollaboratorError{Operation: "main playbook", Status: status}
	}

	return "Installed on " + strings.Join(t.RunTargets, ","), nil
}
