package ansible

import (
	"context"
	"sync"

	"github.com/metal-toolbox/ooinstall/internal/facts"
)

// FactsCall records one LoadFacts invocation.
type FactsCall struct {
	InventoryPath string
	PlaybookPath  string
	Env           map[string]string
}

// PlaybookCall records one RunMainPlaybook invocation.
type PlaybookCall struct {
	Masters    []string
	Nodes      []string
	RunTargets []string
	Env        map[string]string
}

// DryRunRunner is a simulated Runner. It never starts a process; it records
// the calls made to it and replies with the configured facts and statuses.
type DryRunRunner struct {
	mu sync.Mutex

	Facts          facts.ByIP
	FactsStatus    int
	PlaybookStatus int
	// Err is returned from both calls when set.
	Err error

	FactsCalls    []FactsCall
	PlaybookCalls []PlaybookCall
}

// NewDryRunRunner returns a DryRunRunner that reports success with no facts.
func NewDryRunRunner() *DryRunRunner {
	return &DryRunRunner{Facts: facts.ByIP{}}
}

// LoadFacts simulates the facts playbook.
func (d *DryRunRunner) LoadFacts(_ context.Context, inventoryPath, playbookPath string, env map[string]string) (facts.ByIP, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.FactsCalls = append(d.FactsCalls, FactsCall{
		InventoryPath: inventoryPath,
		PlaybookPath:  playbookPath,
		Env:           copyEnv(env),
	})

	if d.Err != nil {
		return nil, statusNotRun, d.Err
	}

	if d.FactsStatus != 0 {
		return nil, d.FactsStatus, nil
	}

	return d.Facts, 0, nil
}

// RunMainPlaybook simulates the install playbook.
func (d *DryRunRunner) RunMainPlaybook(_ context.Context, masters, nodes, runTargets []string, env map[string]string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.PlaybookCalls = append(d.PlaybookCalls, PlaybookCall{
		Masters:    append([]string{}, masters...),
		Nodes:      append([]string{}, nodes...),
		RunTargets: append([]string{}, runTargets...),
		Env:        copyEnv(env),
	})

	if d.Err != nil {
		return statusNotRun, d.Err
	}

	return d.PlaybookStatus, nil
}

// LastPlaybookCall returns the most recent RunMainPlaybook call.
func (d *DryRunRunner) LastPlaybookCall() (PlaybookCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.PlaybookCalls) == 0 {
		return PlaybookCall{}, false
	}

	return d.PlaybookCalls[len(d.PlaybookCalls)-1], true
}

func copyEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}

	return out
}
