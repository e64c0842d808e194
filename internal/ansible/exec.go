package ansible

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/metal-toolbox/ooinstall/internal/facts"
	"github.com/metal-toolbox/ooinstall/internal/inventory"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPlaybookBinary = "ansible-playbook"

	// statusNotRun is reported when the playbook process could not be started.
	statusNotRun = -1

	// maxLoggedLine caps a single logged line of playbook output.
	maxLoggedLine = 4096
)

var (
	ErrExec = errors.New("ansible-playbook execution error")
)

// ExecRunner runs playbooks from a work directory with ansible-playbook.
// The work directory holds both the playbooks and the rendered inventory.
type ExecRunner struct {
	binary  string
	workDir string
	logger  *logrus.Entry
}

// NewExecRunner returns a Runner that executes binary, ansible-playbook when
// empty, against the playbooks and inventory under workDir.
func NewExecRunner(binary, workDir string, logger *logrus.Logger) *ExecRunner {
	if binary == "" {
		binary = DefaultPlaybookBinary
	}

	return &ExecRunner{
		binary:  binary,
		workDir: workDir,
		logger: logger.WithFields(logrus.Fields{
			"binary":  binary,
			"workDir": workDir,
		}),
	}
}

// FactsPlaybook is the playbook that collects system facts.
func FactsPlaybook(workDir string) string {
	return filepath.Join(workDir, "playbooks", "byo", "openshift_facts.yml")
}

// MainPlaybook is the playbook that installs the cluster, or the scaleup
// playbook when only some of the nodes are run against.
func MainPlaybook(workDir string, partial bool) string {
	if partial {
		return filepath.Join(workDir, "playbooks", "byo", "openshift-cluster", "scaleup.yml")
	}

	return filepath.Join(workDir, "playbooks", "byo", "config.yml")
}

// LoadFacts runs the facts playbook, then reads the facts the callback
// plugin wrote to the file named by OO_INSTALL_CALLBACK_FACTS_YAML.
func (r *ExecRunner) LoadFacts(ctx context.Context, inventoryPath, playbookPath string, env map[string]string) (facts.ByIP, int, error) {
	callbackFile := env[EnvCallbackFactsYAML]
	if callbackFile == "" {
		return nil, statusNotRun, errors.Wrap(ErrExec, EnvCallbackFactsYAML+" not set")
	}

	status, err := r.run(ctx, inventoryPath, playbookPath, env)
	if err != nil || status != 0 {
		return nil, status, err
	}

	byIP, err := facts.Load(callbackFile)
	if err != nil {
		return nil, status, err
	}

	r.logger.WithField("hosts", len(byIP)).Info("system facts loaded")

	return byIP, status, nil
}

// RunMainPlaybook runs the install playbook against the inventory in the
// work directory. The host groups themselves come from the inventory.
func (r *ExecRunner) RunMainPlaybook(ctx context.Context, masters, nodes, runTargets []string, env map[string]string) (int, error) {
	partial := len(runTargets) != len(nodes)
	playbook := MainPlaybook(r.workDir, partial)

	r.logger.WithFields(logrus.Fields{
		"masters":    masters,
		"nodes":      nodes,
		"runTargets": runTargets,
		"playbook":   playbook,
	}).Info("running main playbook")

	args := []string{}
	if partial {
		args = append(args, "--limit="+strings.Join(runTargets, ","))
	}

	return r.run(ctx, inventory.Path(r.workDir), playbook, env, args...)
}

func (r *ExecRunner) run(ctx context.Context, inventoryPath, playbook string, env map[string]string, extra ...string) (int, error) {
	args := append([]string{"--inventory-file=" + inventoryPath}, extra...)
	args = append(args, playbook)

	// nolint:gosec // binary and arguments come from the installer configuration
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Env = mergeEnv(os.Environ(), env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return statusNotRun, errors.Wrap(ErrExec, err.Error())
	}

	cmd.Stderr = cmd.Stdout

	logger := r.logger.WithField("playbook", playbook)
	logger.Debug("starting ansible-playbook")

	if err := cmd.Start(); err != nil {
		return statusNotRun, errors.Wrap(ErrExec, err.Error())
	}

	r.stream(stdout, logger)

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		logger.WithField("status", exitErr.ExitCode()).Warn("ansible-playbook failed")
		return exitErr.ExitCode(), nil
	}

	return statusNotRun, errors.Wrap(ErrExec, err.Error())
}

// stream logs each output line at debug level until out is closed. Lines of
// any length are consumed; only the first maxLoggedLine bytes are logged.
func (r *ExecRunner) stream(out io.Reader, logger *logrus.Entry) {
	reader := bufio.NewReader(out)

	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			logLine(logger, line)
		}

		if err == nil {
			continue
		}

		if !errors.Is(err, io.EOF) {
			logger.WithError(err).Warn("failed to read ansible-playbook output")

			// the process blocks on a full pipe unless it is drained
			_, _ = io.Copy(io.Discard, out)
		}

		return
	}
}

func logLine(logger *logrus.Entry, line string) {
	if len(line) <= maxLoggedLine {
		logger.Debug(line)
		return
	}

	logger.WithField("truncatedBytes", len(line)-maxLoggedLine).Debug(line[:maxLoggedLine])
}

// mergeEnv overlays extra onto a KEY=VALUE environment list.
func mergeEnv(base []string, extra map[string]string) []string {
	out := make([]string, 0, len(base)+len(extra))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := extra[key]; ok {
			continue
		}

		out = append(out, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}

	return out
}
