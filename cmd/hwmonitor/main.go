// hwmonitor polls the (simulated) hardware once per interval and pushes the
// result to every registered observer: a fault reporter, a performance
// monitor and an FDR logger by default.
//
// With no arguments it runs until interrupted, printing one line per
// observer per tick on stdout. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	observer "github.com/jeremyforan/hwmonitor"
	"github.com/jeremyforan/hwmonitor/hwmonitor"
	"github.com/jeremyforan/hwmonitor/internal/config"
	"github.com/jeremyforan/hwmonitor/internal/controller"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

// usageError marks errors caused by bad flags or configuration.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func (e usageError) ExitCode() int { return 2 }

type options struct {
	configPath    string
	singletonDemo bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	cfg, help, flagSet, err := parseArguments(args, &opts)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout, flagSet)
			return nil
		}
		return usageError{err}
	}
	if help {
		printHelp(stdout, flagSet)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}

	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return usageError{err}
	}

	if opts.singletonDemo {
		singletonDemo(stdout)
		return nil
	}

	pub, err := buildPublisher(cfg, stdout, logger)
	if err != nil {
		return err
	}

	// Interruption is the normal way to stop an unbounded run.
	if err := pub.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// parseArguments loads the config file, then applies any flags the user set
// on top of it.
func parseArguments(args []string, opts *options) (*config.Config, bool, *pflag.FlagSet, error) {
	flagSet := pflag.NewFlagSet("hwmonitor", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML or JSONC config file (default: $"+config.EnvVar+")")
	interval := flagSet.Duration("interval", 0, "pause between ticks (default 1s)")
	ticks := flagSet.Uint64("ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	strict := flagSet.Bool("strict", false, "report duplicate registrations and unknown deregistrations as errors")
	observers := flagSet.StringSlice("observer", nil, "observer kinds to register, in order: fault, performance, fdr")
	deregister := flagSet.StringSlice("deregister", nil, "observer kinds to deregister after registration")
	power := flagSet.Bool("power-controller", false, "also register the power monitor controller")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error")
	logFormat := flagSet.String("log-format", "", "text or json")
	flagSet.BoolVar(&opts.singletonDemo, "singleton-demo", false, "race goroutines on the power monitor controller and exit")
	help := flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		return nil, false, flagSet, err
	}
	if *help {
		return nil, true, flagSet, nil
	}
	if flagSet.NArg() > 0 {
		return nil, false, flagSet, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, false, flagSet, err
	}

	if flagSet.Changed("interval") {
		cfg.Interval = interval.String()
	}
	if flagSet.Changed("ticks") {
		cfg.MaxTicks = *ticks
	}
	if flagSet.Changed("strict") {
		cfg.Strict = *strict
	}
	if flagSet.Changed("observer") {
		cfg.Observers = *observers
	}
	if flagSet.Changed("deregister") {
		cfg.Deregister = *deregister
	}
	if flagSet.Changed("power-controller") {
		cfg.PowerController = *power
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}

	return cfg, false, flagSet, nil
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOptions)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOptions)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", cfg.Format)
}

// buildPublisher registers the configured observers, then deregisters the
// ones listed in cfg.Deregister.
func buildPublisher(cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*observer.Publisher, error) {
	interval, err := cfg.IntervalDuration()
	if err != nil {
		return nil, usageError{err}
	}
	kinds, err := cfg.ObserverKinds()
	if err != nil {
		return nil, usageError{err}
	}
	removals, err := cfg.DeregisterKinds()
	if err != nil {
		return nil, usageError{err}
	}

	opts := []observer.Option{
		observer.WithLogger(logger),
		observer.WithInterval(interval),
		observer.WithMaxTicks(cfg.MaxTicks),
	}
	if cfg.Strict {
		opts = append(opts, observer.WithStrict())
	}

	arena := observer.NewArena()
	pub := observer.NewPublisher(arena, opts...)

	byKind := make(map[hwmonitor.Kind][]observer.ID)
	for _, kind := range kinds {
		obs, err := hwmonitor.New(kind, stdout)
		if err != nil {
			return nil, err
		}
		id := arena.Add(obs)
		if err := pub.Register(id); err != nil {
			return nil, err
		}
		byKind[kind] = append(byKind[kind], id)
	}

	if cfg.PowerController {
		controller.SetOutput(stdout)
		if err := pub.Register(arena.Add(controller.Instance().Observer())); err != nil {
			return nil, err
		}
	}

	for _, kind := range removals {
		ids, ok := byKind[kind]
		if !ok {
			logger.Warn("no observer of this kind is registered", "kind", kind)
			if cfg.Strict {
				return nil, fmt.Errorf("deregister %s: %w", kind, observer.ErrUnknownObserverOnDeregister)
			}
			continue
		}
		for _, id := range ids {
			if err := pub.Deregister(id); err != nil {
				return nil, err
			}
			arena.Release(id)
		}
		delete(byKind, kind)
	}

	return pub, nil
}

// singletonDemo has ten goroutines race to obtain the controller; it is
// created once regardless.
func singletonDemo(stdout io.Writer) {
	controller.SetOutput(stdout)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() { controller.Instance() })
	}
	wg.Wait()

	c := controller.Instance()
	c.MonitorPower()
	c.ManageFault()
	c.AdjustPower()
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: hwmonitor [flags]\n\n")
	fmt.Fprintf(w, "Polls the hardware every interval and notifies the registered observers.\n\n")
	fmt.Fprintf(w, "Flags:\n%s", flagSet.FlagUsages())
}
