package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/metal-toolbox/ooinstall/internal/topology"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	roleStyle  = lipgloss.NewStyle().Faint(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// Summary describes what is about to be installed where.
func Summary(install *model.InstallationConfig, t *topology.Topology) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Installation summary") + "\n")
	fmt.Fprintf(&b, "Product:  %s (%s)\n", install.Product, install.DeploymentType)
	fmt.Fprintf(&b, "SSH user: %s\n\n", install.EffectiveSSHUser())

	for i := range install.Hosts {
		h := &install.Hosts[i]

		var roles []string
		if h.IsMaster {
			roles = append(roles, "master")
		}

		if h.IsNode {
			roles = append(roles, "node")
		}

		name := h.Hostname
		if name == "" {
			name = "-"
		}

		fmt.Fprintf(&b, "  %-15s %-30s %s\n", h.IP, name, roleStyle.Render(strings.Join(roles, "+")))
	}

	if t != nil {
		fmt.Fprintf(&b, "\nPlaybook order: %s", strings.Join(t.RunTargets, ", "))
	}

	return boxStyle.Render(b.String())
}
