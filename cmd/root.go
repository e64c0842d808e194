/*
Copyright © 2024 Metal toolbox authors <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/metal-toolbox/ooinstall/internal/ansible"
	"github.com/metal-toolbox/ooinstall/internal/configuration"
	"github.com/metal-toolbox/ooinstall/internal/log"
	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/metal-toolbox/ooinstall/internal/tui"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// prompter asks for missing values and confirmation in interactive mode.
type prompter interface {
	Ask(questions []tui.Question) (map[string]string, error)
	Confirm(summary, question string) (bool, error)
}

// dependencies are the collaborators the command wires together.
type dependencies struct {
	newRunner func(cfg *configuration.Configuration, logger *logrus.Logger) ansible.Runner
	prompter  prompter
	logOutput io.Writer
}

func defaultDependencies() *dependencies {
	return &dependencies{
		newRunner: func(cfg *configuration.Configuration, logger *logrus.Logger) ansible.Runner {
			if cfg.DryRun {
				logger.Warn("Running ansible in dry run mode")
				return ansible.NewDryRunRunner()
			}

			return ansible.NewExecRunner(cfg.AnsiblePlaybookBinary, cfg.WorkDir, logger)
		},
		prompter:  tui.NewPrompter(os.Stdin, os.Stdout),
		logOutput: os.Stderr,
	}
}

// newRootCmd builds the installer command around deps.
func newRootCmd(args *model.Args, deps *dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ooinstall",
		Short: "ooinstall installs OpenShift on a set of hosts with ansible",
		Long: `ooinstall reads the hosts to install from its configuration file, writes an
ansible inventory below the ansible playbook directory and runs the
openshift-ansible playbooks against it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstaller(cmd.Context(), cmd, args, deps)
		},
	}

	flags := rootCmd.Flags()

	flags.BoolVarP(&args.Unattended, "unattended", "u", false, "run without prompting, using only the configuration file")
	flags.StringVarP(&args.WorkDir, "ansible-playbook-directory", "a", "", "directory holding the openshift-ansible playbooks; the inventory is written below it")
	flags.StringVarP(&args.ConfigFile, "configuration", "c", model.DefaultConfigFile(), "installer configuration file")
	flags.StringVar(&args.AnsibleLogPath, "ansible-log-path", "", "ansible log file (default "+ansible.DefaultLogPath+")")
	flags.StringVar(&args.AnsibleConfig, "ansible-config", "", "ansible configuration file exported as ANSIBLE_CONFIG")
	flags.StringVar(&args.LogLevel, "log-level", "", "set logging level - debug, info, warn, error")
	flags.StringVar(&args.MetricsTextfile, "metrics-textfile", "", "write run metrics in prometheus text format to this file")
	flags.BoolVar(&args.DryRun, "dry-run", false, "render the inventory without running ansible-playbook")
	flags.BoolVar(&args.SkipInstalled, "skip-installed", false, "do not run the playbook on hosts that already report a deployment type")

	return rootCmd
}

// execute runs cmd and returns the process exit code.
func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}

	return exitCode(err)
}

// exitCode maps an error onto the process exit status. A failing playbook
// passes its own exit status through.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var collabErr *model.CollaboratorError
	if errors.As(err, &collabErr) && collabErr.Status > 0 && collabErr.Status < 256 {
		return collabErr.Status
	}

	return 1
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	log.InitLogger(os.Stderr)

	os.Exit(execute(newRootCmd(&model.Args{}, defaultDependencies())))
}
