package ansible

import (
	"context"
	"path/filepath"

	"github.com/metal-toolbox/ooinstall/internal/facts"
	"github.com/metal-toolbox/ooinstall/internal/inventory"
)

const (
	// EnvCallbackFactsYAML tells the openshift_facts callback plugin where to write facts.
	EnvCallbackFactsYAML = "OO_INSTALL_CALLBACK_FACTS_YAML"
	EnvLogPath           = "ANSIBLE_LOG_PATH"
	EnvConfig            = "ANSIBLE_CONFIG"

	// DefaultLogPath is used when no ansible log path is configured.
	DefaultLogPath = "/tmp/ansible.log"
)

// Runner abstracts the automation engine. A non-zero status is the engine's
// own failure; an error means the engine could not be run at all.
type Runner interface {
	// LoadFacts runs the facts playbook against the inventory and returns
	// the facts reported per host ip.
	LoadFacts(ctx context.Context, inventoryPath, playbookPath string, env map[string]string) (facts.ByIP, int, error)
	// RunMainPlaybook runs the install playbook against runTargets.
	RunMainPlaybook(ctx context.Context, masters, nodes, runTargets []string, env map[string]string) (int, error)
}

// CallbackFactsPath is where the facts callback plugin writes its output.
func CallbackFactsPath(workDir string) string {
	return filepath.Join(workDir, inventory.Dir, "callback_facts.yaml")
}

// Env returns the variables passed to every ansible-playbook run on top of
// the process environment.
func Env(workDir, logPath, ansibleConfig string) map[string]string {
	if logPath == "" {
		logPath = DefaultLogPath
	}

	env := map[string]string{
		EnvCallbackFactsYAML: CallbackFactsPath(workDir),
		EnvLogPath:           logPath,
	}

	if ansibleConfig != "" {
		env[EnvConfig] = ansibleConfig
	}

	return env
}
