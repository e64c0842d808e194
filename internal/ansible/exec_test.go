package ansible

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePlaybook = `#!/bin/sh
echo "$@" >> "$FAKE_ANSIBLE_ARGS"
if [ -n "$FAKE_FACTS" ]; then
  cp "$FAKE_FACTS" "$OO_INSTALL_CALLBACK_FACTS_YAML"
fi
if [ -n "$FAKE_LONG_LINE" ]; then
  head -c "$FAKE_LONG_LINE" /dev/zero | tr '\0' x; echo
  head -c 200000 /dev/zero | tr '\0' y; echo
fi
echo "PLAY RECAP"
exit ${FAKE_STATUS:-0}
`

const fakeFacts = `
10.0.0.1:
  common:
    ip: 10.0.0.1
    hostname: master.example.com
`

type execFixture struct {
	workDir  string
	argsFile string
	runner   *ExecRunner
}

func newExecFixture(t *testing.T) *execFixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell script playbook stub")
	}

	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, ".ansible"), 0o755))

	bin := filepath.Join(t.TempDir(), "ansible-playbook")
	require.NoError(t, os.WriteFile(bin, []byte(fakePlaybook), 0o700)) // nolint:gosec // test stub must be executable

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &execFixture{
		workDir:  workDir,
		argsFile: filepath.Join(workDir, "args"),
		runner:   NewExecRunner(bin, workDir, logger),
	}
}

func (f *execFixture) env(t *testing.T, status int, withFacts bool) map[string]string {
	t.Helper()

	env := Env(f.workDir, "", "")
	env["FAKE_ANSIBLE_ARGS"] = f.argsFile
	env["FAKE_STATUS"] = strconv.Itoa(status)

	if withFacts {
		factsFile := filepath.Join(t.TempDir(), "facts.yaml")
		require.NoError(t, os.WriteFile(factsFile, []byte(fakeFacts), 0o600))
		env["FAKE_FACTS"] = factsFile
	}

	return env
}

func (f *execFixture) args(t *testing.T) string {
	t.Helper()

	data, err := os.ReadFile(f.argsFile)
	require.NoError(t, err)

	return strings.TrimSpace(string(data))
}

func TestExecLoadFacts(t *testing.T) {
	f := newExecFixture(t)
	inv := filepath.Join(f.workDir, ".ansible", "hosts")
	playbook := FactsPlaybook(f.workDir)

	got, status, err := f.runner.LoadFacts(context.Background(), inv, playbook, f.env(t, 0, true))
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "master.example.com", got["10.0.0.1"].Common.Hostname)
	assert.Equal(t, "--inventory-file="+inv+" "+playbook, f.args(t))
}

func TestExecLoadFactsFailure(t *testing.T) {
	f := newExecFixture(t)

	got, status, err := f.runner.LoadFacts(context.Background(), "hosts", "facts.yml", f.env(t, 3, false))
	require.NoError(t, err)
	assert.Equal(t, 3, status)
	assert.Nil(t, got)
}

func TestExecLoadFactsRequiresCallbackPath(t *testing.T) {
	f := newExecFixture(t)

	_, _, err := f.runner.LoadFacts(context.Background(), "hosts", "facts.yml", map[string]string{})
	assert.True(t, errors.Is(err, ErrExec))
}

func TestExecRunMainPlaybook(t *testing.T) {
	f := newExecFixture(t)
	nodes := []string{"10.0.0.1", "10.0.0.2"}

	status, err := f.runner.RunMainPlaybook(context.Background(), []string{"10.0.0.1"}, nodes, nodes, f.env(t, 0, false))
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t,
		"--inventory-file="+filepath.Join(f.workDir, ".ansible", "hosts")+" "+MainPlaybook(f.workDir, false),
		f.args(t))
}

func TestExecRunMainPlaybookPartial(t *testing.T) {
	f := newExecFixture(t)

	status, err := f.runner.RunMainPlaybook(context.Background(),
		[]string{"10.0.0.1"}, []string{"10.0.0.1", "10.0.0.2"}, []string{"10.0.0.2"}, f.env(t, 2, false))
	require.NoError(t, err)
	assert.Equal(t, 2, status)
	assert.Contains(t, f.args(t), "--limit=10.0.0.2")
	assert.True(t, strings.HasSuffix(f.args(t), filepath.Join("openshift-cluster", "scaleup.yml")))
}

func TestExecRunMainPlaybookLongOutputLines(t *testing.T) {
	f := newExecFixture(t)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f.runner = NewExecRunner(f.runner.binary, f.workDir, logger)

	env := f.env(t, 0, false)
	env["FAKE_LONG_LINE"] = "70000"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nodes := []string{"10.0.0.1"}

	status, err := f.runner.RunMainPlaybook(ctx, nodes, nodes, nodes, env)
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	var truncated []int
	recap := false

	for _, entry := range hook.AllEntries() {
		assert.LessOrEqual(t, len(entry.Message), maxLoggedLine)

		if n, ok := entry.Data["truncatedBytes"].(int); ok {
			truncated = append(truncated, n)
		}

		if entry.Message == "PLAY RECAP" {
			recap = true
		}
	}

	assert.Equal(t, []int{70000 - maxLoggedLine, 200000 - maxLoggedLine}, truncated)
	assert.True(t, recap, "output after the long lines is still read")
}

func TestStreamReadError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	r := &ExecRunner{logger: logrus.NewEntry(logger)}

	out := io.MultiReader(strings.NewReader("TASK [setup]\nok: [10.0.0.1]"), iotest.ErrReader(errors.New("pipe broken")))
	r.stream(out, r.logger)

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "TASK [setup]", entries[0].Message)
	assert.Equal(t, "ok: [10.0.0.1]", entries[1].Message)
	assert.Equal(t, logrus.WarnLevel, entries[2].Level)
	assert.EqualError(t, entries[2].Data[logrus.ErrorKey].(error), "pipe broken")
}

func TestExecMissingBinary(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := NewExecRunner(filepath.Join(t.TempDir(), "missing"), t.TempDir(), logger)

	status, err := r.RunMainPlaybook(context.Background(), nil, nil, nil, map[string]string{})
	assert.True(t, errors.Is(err, ErrExec))
	assert.Equal(t, statusNotRun, status)
}

func TestEnv(t *testing.T) {
	env := Env("/work", "", "")
	assert.Equal(t, map[string]string{
		EnvCallbackFactsYAML: filepath.Join("/work", ".ansible", "callback_facts.yaml"),
		EnvLogPath:           "/tmp/ansible.log",
	}, env)

	env = Env("/work", "/var/log/ansible.log", "/etc/ansible.cfg")
	assert.Equal(t, "/var/log/ansible.log", env[EnvLogPath])
	assert.Equal(t, "/etc/ansible.cfg", env[EnvConfig])
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"PATH=/bin", "ANSIBLE_LOG_PATH=/old"}, map[string]string{
		"ANSIBLE_LOG_PATH": "/new",
		"A":                "1",
	})
	assert.Equal(t, []string{"PATH=/bin", "A=1", "ANSIBLE_LOG_PATH=/new"}, got)
}

func TestDryRunRunner(t *testing.T) {
	d := NewDryRunRunner()
	d.PlaybookStatus = 4

	_, status, err := d.LoadFacts(context.Background(), "inv", "pb", map[string]string{"K": "V"})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	require.Len(t, d.FactsCalls, 1)
	assert.Equal(t, "V", d.FactsCalls[0].Env["K"])

	_, ok := d.LastPlaybookCall()
	assert.False(t, ok)

	status, err = d.RunMainPlaybook(context.Background(), []string{"a"}, []string{"a", "b"}, []string{"b", "a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, status)

	call, ok := d.LastPlaybookCall()
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, call.RunTargets)

	d.Err = errors.New("boom")
	_, err = d.RunMainPlaybook(context.Background(), nil, nil, nil, nil)
	assert.EqualError(t, err, "boom")
}
