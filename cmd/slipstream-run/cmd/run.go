package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/VAHHABSY/SlipstreamApp/internal/config"
	"github.com/VAHHABSY/SlipstreamApp/internal/dl"
	"github.com/VAHHABSY/SlipstreamApp/internal/profile"
	"github.com/VAHHABSY/SlipstreamApp/internal/service"
	"github.com/VAHHABSY/SlipstreamApp/internal/shim"
)

var (
	runLib         string
	runDomain      string
	runResolvers   string
	runPort        int
	runLogFile     string
	runProfileName string
	runHold        time.Duration
	runExitOnRet   bool

	// loader opens the module. Tests replace it.
	loader dl.Loader = dl.System{}
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the module and run a tunnel",
	Long: `Load libslipstream and call slipstream_main, or main with a synthesized argv.
Flags override the selected profile.

A zero status keeps the process alive until SIGINT or SIGTERM, since the module
may still be serving from threads it started; pass --exit-on-return to exit
at once. A non-zero status becomes the exit code. The shim's own failures are
negative and exit modulo 256: -1 (load failed) as 255, -2 (no entry symbol)
as 254, -3 (symbol lookup failed) as 253.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runLib, "lib", "", "module path or name (default from config)")
	runCmd.Flags().StringVar(&runDomain, "domain", "", "tunnel domain")
	runCmd.Flags().StringVar(&runResolvers, "resolvers", "", "comma separated resolvers")
	runCmd.Flags().IntVar(&runPort, "port", profile.DefaultPort, "local SOCKS port")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "append timestamped diagnostics to this file")
	runCmd.Flags().StringVar(&runProfileName, "profile", "", "saved profile to run (default: current)")
	runCmd.Flags().DurationVar(&runHold, "hold", 0, "block the calling thread this long after a successful call (default from config)")
	runCmd.Flags().BoolVar(&runExitOnRet, "exit-on-return", false, "exit as soon as the entry point returns 0")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := resolveProfile(cmd, cfg)
	if err != nil {
		return err
	}

	logPath := runLogFile
	if logPath == "" {
		logPath = cfg.LogFile
	}
	logger, closeLog := newLogger(cfg, "")
	defer closeLog()

	hold := cfg.Hold()
	if cmd.Flags().Changed("hold") {
		hold = runHold
	}
	lib := runLib
	if lib == "" {
		lib = cfg.Library
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
	defer stop()

	inv := shim.New(shim.Options{
		Loader: loader,
		Logger: logger,
		NewLogger: func(path string) (*slog.Logger, func() error) {
			return newLogger(cfg, path)
		},
		Hold: hold,
	})

	out := cmd.ErrOrStderr()
	runner := service.New(inv, service.Options{
		Library:       lib,
		LogPath:       logPath,
		StartupWindow: cfg.StartupWindow(),
		Logger:        logger,
		OnStatus:      func(s service.Status) { fmt.Fprintf(out, "status: %s\n", s) },
		OnLog:         func(line string) { fmt.Fprintln(out, line) },
	})

	if err := runner.Start(ctx, p); err != nil {
		return err
	}

	rc, err := runner.Wait(ctx)
	if err != nil {
		runner.Stop()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if rc != shim.StatusOK {
		fmt.Fprintf(out, "slipstream exited: %s\n", rc)
		return &ExitError{Code: int(rc)}
	}
	if runExitOnRet {
		return nil
	}

	// The module stays mapped; keep its threads alive until told to stop.
	fmt.Fprintln(out, "slipstream returned 0, running until interrupted")
	<-ctx.Done()
	runner.Stop()
	return nil
}

// resolveProfile picks the saved profile and applies flag overrides. The
// database is only opened when the flags alone do not describe a tunnel.
func resolveProfile(cmd *cobra.Command, cfg *config.Config) (profile.Profile, error) {
	p := profile.New(runProfileName)
	p.Port = cfg.DefaultPort

	if runProfileName != "" || runDomain == "" || runResolvers == "" {
		store, err := openStore(cfg)
		if err != nil {
			return p, err
		}
		defer store.Close()

		if runProfileName != "" {
			p, err = store.Get(runProfileName)
		} else {
			p, err = store.Current()
		}
		if err != nil {
			return p, err
		}
	}

	return applyOverrides(cmd, p), nil
}

// applyOverrides copies explicitly set flags onto p.
func applyOverrides(cmd *cobra.Command, p profile.Profile) profile.Profile {
	flags := cmd.Flags()
	if flags.Changed("domain") {
		p.Domain = runDomain
	}
	if flags.Changed("resolvers") {
		p.Resolvers = runResolvers
	}
	if flags.Changed("port") {
		p.Port = runPort
	}
	return p
}
