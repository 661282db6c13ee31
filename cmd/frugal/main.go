package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/frugal/pkg/config"
	"github.com/pario-ai/frugal/pkg/engine"
	"github.com/pario-ai/frugal/pkg/llm"
	"github.com/pario-ai/frugal/pkg/logging"
)

var version = "dev"

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	mock       bool

	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
}

func main() {
	root := newRootCmd(&app{})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "frugal",
		Short:         "Frugal: cost control for multi-agent LLM simulations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logFile != nil {
				_ = a.logFile.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to frugal config file (default: frugal.yaml if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.mock, "mock", false, "answer with a canned offline model instead of a provider")

	root.AddCommand(
		newInteractCmd(a),
		newSignatureCmd(a),
		newBucketCmd(a),
		newCacheCmd(a),
		newCostCmd(a),
		newRouteCmd(a),
		newBudgetCmd(a),
		newStatsCmd(a),
		newMCPCmd(a),
	)

	return root
}

func (a *app) load() error {
	path := a.configPath
	if path == "" {
		if _, err := os.Stat("frugal.yaml"); err == nil {
			path = "frugal.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.cfg, a.logger, a.logFile = cfg, logger, closer
	return nil
}

// openEngine wires an Engine from the loaded config. With --mock, or when
// offline is set, the model is replaced by an in-process mock.
func (a *app) openEngine(offline bool) (*engine.Engine, error) {
	var client llm.Client
	if a.mock || offline {
		client = llm.NewMock()
	}
	return engine.Build(a.cfg, a.logger, client)
}
