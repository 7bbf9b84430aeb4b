// Package main provides the recon-tracer command line tool for working with
// series archives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"recon-tracer/internal/config"
	"recon-tracer/internal/logging"
	"recon-tracer/internal/version"
)

// command is one subcommand. run receives the arguments after the
// subcommand name.
type command struct {
	usage string
	run   func(e *env, args []string) error
}

// env carries what every subcommand needs.
type env struct {
	ctx       context.Context
	cfg       config.Config
	prefsPath string
	// keep leaves the fs working copy in place after the command.
	keep     bool
	registry *prometheus.Registry
	stdout   io.Writer
	stderr   io.Writer
}

var commands = map[string]command{
	"version":       {"", runVersion},
	"config":        {"[set <key> <value> | unset <key>]", runConfig},
	"info":          {"[-images] <archive>", runInfo},
	"dedupe":        {"<archive>", runDedupe},
	"import-tforms": {"<archive> <transforms.txt>", runImportTforms},
	"import-swift":  {"[-scale n] [-calgrid] <archive> <project.swiftir>", runImportSwift},
	"export-tforms": {"<archive>", runExportTforms},
	"shift":         {"-section n -dx x -dy y [-backward] <archive>", runShift},
	"calibrate":     {"-section n -trace name -length l <archive>", runCalibrate},
	"lock":          {"[-sections list] <archive>", runLock(true)},
	"unlock":        {"[-sections list] <archive>", runLock(false)},
	"history":       {"<archive>", runHistory},
	"objects":       {"<archive>", runObjects},
	"backup":        {"<archive>", runBackup},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: recon-tracer [-prefs file] [-v] [-keep] [-metrics file] <command> [args]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].usage)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("recon-tracer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	prefsPath := fs.String("prefs", config.DefaultPrefsPath(), "Preferences file")
	verbose := fs.Bool("v", false, "Log at debug level")
	keep := fs.Bool("keep", false, "Keep the working copy after the command")
	metricsFile := fs.String("metrics", "", "Write batch metrics to this file in text format")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return errors.New("no command")
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command %q", fs.Arg(0))
	}

	cfg, err := config.Load(getenv, *prefsPath)
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	logging.Logger().Debug("starting", "version", version.Version, "command", fs.Arg(0))

	e := &env{
		ctx:       ctx,
		cfg:       cfg,
		prefsPath: *prefsPath,
		keep:      *keep,
		registry:  prometheus.NewRegistry(),
		stdout:    stdout,
		stderr:    stderr,
	}
	if err := cmd.run(e, fs.Args()[1:]); err != nil {
		return err
	}
	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, e.registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "recon-tracer:", strings.TrimSpace(err.Error()))
		}
		os.Exit(1)
	}
}
