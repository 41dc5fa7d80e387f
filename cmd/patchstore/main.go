// Command patchstore replays a stream of actions against a configured store
// and prints every change record, the final state and the net diff.
//
// Usage:
//
//	patchstore -rules rules.yaml -actions actions.jsonl
//	cat actions.jsonl | patchstore -config store.toml -rules rules.json -actions -
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/tailored-agentic-units/patchstore/config"
	"github.com/tailored-agentic-units/patchstore/observability"
	"github.com/tailored-agentic-units/patchstore/patch"
	"github.com/tailored-agentic-units/patchstore/rules"
	"github.com/tailored-agentic-units/patchstore/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("patchstore: %v", err)
	}
}

type options struct {
	configFile  string
	rulesFile   string
	actionsFile string
	state       string
	resumeFile  string
	saveFile    string
	history     int
	verbose     bool
	noColor     bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("patchstore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configFile, "config", "", "Path to store config file (.json, .yaml, .toml)")
	fs.StringVar(&opts.rulesFile, "rules", "", "Path to rules file (.json, .yaml, .toml)")
	fs.StringVar(&opts.actionsFile, "actions", "", "Path to JSON lines action stream, - for stdin (required)")
	fs.StringVar(&opts.state, "state", "", "Initial state as a JSON merge patch")
	fs.StringVar(&opts.resumeFile, "resume", "", "Path to a snapshot written by -save to resume from")
	fs.StringVar(&opts.saveFile, "save", "", "Path to write the final snapshot to")
	fs.IntVar(&opts.history, "history", -1, "History capacity (overrides config)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging to stderr")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.actionsFile == "" {
		fmt.Fprintln(stderr, "Usage: patchstore -actions <file|-> [-rules <file>] [-config <file>]")
		fs.PrintDefaults()
		return opts, errors.New("missing -actions")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	observer, err := observability.ComposeObservers(cfg.Observer, func(name string) (observability.Observer, error) {
		if name == "slog" {
			return observability.NewSlogObserver(logger), nil
		}
		return observability.GetObserver(name)
	})
	if err != nil {
		return err
	}
	storeOpts := []store.Option{store.WithObserver(observer)}

	if opts.rulesFile != "" {
		reducers, err := rules.LoadReducers(opts.rulesFile)
		if err != nil {
			return err
		}
		storeOpts = append(storeOpts, store.WithReducers(reducers...))
	}

	if opts.state != "" {
		initial, err := patch.DecodeMergePatch([]byte(opts.state))
		if err != nil {
			return fmt.Errorf("invalid -state: %w", err)
		}
		storeOpts = append(storeOpts, store.WithInitialState(initial))
	}

	if opts.resumeFile != "" {
		snap, err := readSnapshot(opts.resumeFile)
		if err != nil {
			return err
		}
		storeOpts = append(storeOpts, store.WithSnapshot(snap))
	}

	s, err := store.New(*cfg, storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	if opts.history >= 0 {
		if err := s.SetHistoryMaxSize(opts.history); err != nil {
			return err
		}
	}

	p := newPrinter(stdout, !opts.noColor)
	if _, err := s.AddStorageListener(p.change); err != nil {
		return err
	}

	initial := s.Snapshot()

	actions, closeActions, err := openActions(opts.actionsFile, stdin)
	if err != nil {
		return err
	}
	defer closeActions()

	dec := json.NewDecoder(actions)
	for n := 1; ; n++ {
		var action store.Action
		if err := dec.Decode(&action); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("action %d: %w", n, err)
		}
		if _, err := s.Dispatch(ctx, action); err != nil {
			return fmt.Errorf("action %d: %w", n, err)
		}
	}

	diff, err := patch.Diff(initial.State, s.Get())
	if err != nil {
		return err
	}
	if opts.saveFile != "" {
		if err := writeSnapshot(opts.saveFile, s.Snapshot()); err != nil {
			return err
		}
	}
	return p.summary(s.Get(), diff, len(s.History()))
}

func loadConfig(opts options) (*config.StoreConfig, error) {
	cfg := config.DefaultStoreConfig("patchstore")
	if opts.configFile != "" {
		loaded, err := config.LoadConfig(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if err := config.FromEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func openActions(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open actions: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func readSnapshot(path string) (store.Snapshot, error) {
	var snap store.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snap, nil
}

func writeSnapshot(path string, snap store.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
