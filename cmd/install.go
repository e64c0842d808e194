package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/metal-toolbox/ooinstall/internal/config"
	"github.com/metal-toolbox/ooinstall/internal/configuration"
	"github.com/metal-toolbox/ooinstall/internal/installer"
	"github.com/metal-toolbox/ooinstall/internal/log"
	"github.com/metal-toolbox/ooinstall/internal/metrics"
	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/metal-toolbox/ooinstall/internal/tasks"
	"github.com/metal-toolbox/ooinstall/internal/topology"
	"github.com/metal-toolbox/ooinstall/internal/tui"
	"github.com/metal-toolbox/ooinstall/internal/variants"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

const (
	keyProduct = "product"
	keySSHUser = "ansible_ssh_user"
)

func runInstaller(ctx context.Context, cmd *cobra.Command, args *model.Args, deps *dependencies) error {
	cfg, err := configuration.Load(args)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}

	log.SetLevel(cfg.LogLevel)

	slog.Info("Configuration loaded", cfg.AsLogFields()...)

	logger := log.NewLogrusLogger(cfg.LogLevel, deps.logOutput)
	otel.SetLogger(log.NewLogr(logger))

	ctx, otelShutdown := otelinit.InitOpenTelemetry(ctx, model.AppName)
	defer otelShutdown(ctx)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	install, err := config.Load(cfg.ConfigFile)
	if err != nil {
		slog.Error("Failed to load installer config", "file", cfg.ConfigFile, "error", err)
		return err
	}

	if !cfg.Unattended {
		if err := completeInteractively(deps.prompter, install); err != nil {
			return err
		}
	}

	if err := config.Validate(install); err != nil {
		return err
	}

	recorder := metrics.New()
	publisher := tasks.MultiPublisher{
		tasks.NewFilePublisher(cfg.StatusPath()),
		tasks.LogPublisher{},
	}

	inst := installer.New(cfg, install, deps.newRunner(cfg, logger), publisher, recorder)

	runErr := inst.Run(ctx)

	if cfg.MetricsTextfile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsTextfile); err != nil {
			slog.Warn("Failed to write metrics textfile", "file", cfg.MetricsTextfile, "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "The installation was successful!\nInventory: %s\n", cfg.InventoryPath())

	return nil
}

// completeInteractively asks for the settings missing from install and has
// the user confirm the resulting host layout.
func completeInteractively(p prompter, install *model.InstallationConfig) error {
	var questions []tui.Question

	if install.Product == "" {
		questions = append(questions, tui.Question{
			Key:     keyProduct,
			Prompt:  "Product to install (" + strings.Join(variants.Products(), ", ") + ")",
			Default: variants.Default().Product,
			Validate: func(v string) error {
				_, err := variants.Lookup(strings.TrimSpace(v))
				return err
			},
		})
	}

	if install.SSHUser == "" {
		questions = append(questions, tui.Question{
			Key:     keySSHUser,
			Prompt:  "User for ssh access",
			Default: model.DefaultSSHUser,
		})
	}

	answers, err := p.Ask(questions)
	if err != nil {
		return errors.Wrap(model.ErrAborted, err.Error())
	}

	if product, ok := answers[keyProduct]; ok {
		if err := config.SetProduct(install, product); err != nil {
			return err
		}
	}

	if user, ok := answers[keySSHUser]; ok {
		install.SSHUser = strings.TrimSpace(user)
	}

	t, err := topology.Resolve(install.Hosts)
	if err != nil {
		return err
	}

	ok, err := p.Confirm(tui.Summary(install, t), "Do the above facts look correct?")
	if err != nil {
		return errors.Wrap(model.ErrAborted, err.Error())
	}

	if !ok {
		return model.ErrAborted
	}

	return nil
}
