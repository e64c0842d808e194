// Package topology splits the configured hosts into the role groups the
// playbooks are run against.
package topology

import (
	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/pkg/errors"
)

// Topology holds host ips grouped by role.
type Topology struct {
	// Masters are the master ips in config order.
	Masters []string
	// Nodes are the node ips in config order.
	Nodes []string
	// RunTargets are the nodes the main playbook is run against,
	// master nodes first.
	RunTargets []string
}

// Resolve groups hosts by role.
//
// RunTargets holds the same ips as Nodes in the order the installer has
// always run them: hosts that are both master and node keep their config
// order at the front, node-only hosts follow in reverse config order. This
// is not a stable partition; existing installs depend on the order, e.g.
// hosts 10.0.0.1 (master+node), 10.0.0.2, 10.0.0.3 run as
// 10.0.0.1, 10.0.0.3, 10.0.0.2.
func Resolve(hosts []model.Host) (*Topology, error) {
	if len(hosts) == 0 {
		return nil, errors.Wrap(model.ErrConfig, "no hosts to install")
	}

	t := &Topology{
		Masters:    []string{},
		Nodes:      []string{},
		RunTargets: []string{},
	}

	var nodeOnly []string

	for i := range hosts {
		h := &hosts[i]

		if h.IsMaster {
			t.Masters = append(t.Masters, h.IP)
		}

		if !h.IsNode {
			continue
		}

		t.Nodes = append(t.Nodes, h.IP)

		if h.IsMaster {
			t.RunTargets = append(t.RunTargets, h.IP)
		} else {
			nodeOnly = append(nodeOnly, h.IP)
		}
	}

	if len(t.Masters) == 0 {
		return nil, errors.Wrap(model.ErrConfig, "no master host defined")
	}

	for i := len(nodeOnly) - 1; i >= 0; i-- {
		t.RunTargets = append(t.RunTargets, nodeOnly[i])
	}

	return t, nil
}

// Exclude returns a copy of t with the given ips removed from RunTargets.
// Masters and Nodes are left untouched.
func (t *Topology) Exclude(ips ...string) *Topology {
	skip := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		skip[ip] = struct{}{}
	}

	out := &Topology{
		Masters:    append([]string{}, t.Masters...),
		Nodes:      append([]string{}, t.Nodes...),
		RunTargets: make([]string, 0, len(t.RunTargets)),
	}

	for _, ip := range t.RunTargets {
		if _, ok := skip[ip]; !ok {
			out.RunTargets = append(out.RunTargets, ip)
		}
	}

	return out
}

// Partial reports whether the run targets leave out some of the nodes.
func (t *Topology) Partial() bool {
	return len(t.RunTargets) != len(t.Nodes)
}

func (t *Topology) AsLogFields() []any {
	return []any{
		"masters", t.Masters,
		"nodes", t.Nodes,
		"runTargets", t.RunTargets,
	}
}
