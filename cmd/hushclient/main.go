package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/hush-client/internal/app"
	"github.com/samvad-hq/hush-client/internal/config"
	"github.com/samvad-hq/hush-client/internal/logger"
	"github.com/samvad-hq/hush-client/internal/output"
)

var version = "1.0.0"

type options struct {
	interactive bool
	noColor     bool
	baseURL     string
	token       string
	timeout     int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hushclient failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:     "hushclient",
		Short:   "Client for the Hush HTTP API",
		Version: version,
		Long: `hushclient exercises a Hush API server. Without flags it runs a
demonstration of every client feature; with --interactive it opens a prompt
for issuing individual requests.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "start the interactive prompt")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&opts.baseURL, "base-url", "", "API base URL (overrides API_BASE_URL)")
	flags.StringVar(&opts.token, "token", "", "bearer token (overrides API_AUTH_TOKEN)")
	flags.Int64Var(&opts.timeout, "timeout", 0, "per-attempt timeout in seconds (overrides API_TIMEOUT_SECONDS)")
	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cmd, cfg, opts); err != nil {
		return err
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer := output.ForFile(os.Stdout)
	if opts.noColor {
		printer = output.New(os.Stdout, true)
	}

	session, err := app.NewSession(ctx, cfg, log, printer)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.ErrorObj("session close failed", "error", cerr)
		}
	}()

	if opts.interactive {
		return session.RunREPL(ctx, cmd.InOrStdin())
	}
	return session.RunDemo(ctx)
}

// applyFlags layers explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) error {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = opts.baseURL
	}
	if flags.Changed("token") {
		cfg.AuthToken = opts.token
	}
	if flags.Changed("timeout") {
		cfg.TimeoutSeconds = opts.timeout
	}
	if err := cfg.Finalize(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
