package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/johndauphine/demo-import/internal/apply"
	"github.com/johndauphine/demo-import/internal/config"
	"github.com/johndauphine/demo-import/internal/exitcodes"
	"github.com/johndauphine/demo-import/internal/logging"
	"github.com/johndauphine/demo-import/internal/migration"
	"github.com/johndauphine/demo-import/internal/orchestrator"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var version = "dev"

const localTargetURL = "http://localhost:54321"

var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	styleFail  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4141")).Bold(true)
	styleLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#9e9e9e"))
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		code := exitcodes.FromError(err)
		fmt.Fprintf(os.Stderr, "%s %v\n", styleFail.Render("Error:"), err)
		if exitcodes.IsRecoverable(code) {
			fmt.Fprintf(os.Stderr, "%s %d, %s\n", styleLabel.Render("Exit code:"), code, exitcodes.Description(code))
		}
		os.Exit(code)
	}
}

func newApp() *cli.App {
	var logFile *os.File
	return &cli.App{
		Name:    "demo-import",
		Usage:   "Import the public demo threads into a Supabase project as a SQL migration",
		Version: version,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "demo-import.yaml",
				Usage:   "Path to configuration file (optional)",
			},
			&cli.StringFlag{
				Name:  "state-file",
				Usage: "Use YAML state file instead of SQLite (for CI/headless)",
			},
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Explicit run ID (default: auto-generated)",
			},
			&cli.BoolFlag{
				Name:  "output-json",
				Usage: "Output JSON result to stdout on completion (logs go to stderr)",
			},
			&cli.BoolFlag{
				Name:  "no-env-file",
				Usage: "Do not load .env.local and .env from the working directory",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log format: text or json",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Value: "info",
				Usage: "Log verbosity level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Append logs to this file instead of stderr",
			},
		}, runFlags()...),
		Before: func(c *cli.Context) error {
			level, err := logging.ParseLevel(c.String("verbosity"))
			if err != nil {
				return exitcodes.NewExitError(err, exitcodes.ConfigError)
			}
			logging.SetLevel(level)

			if c.String("log-format") == "json" {
				logging.SetFormat("json")
			}

			if path := c.String("log-file"); path != "" {
				f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return exitcodes.NewExitError(fmt.Errorf("opening log file: %w", err), exitcodes.IOError)
				}
				logFile = f
				logging.SetOutput(f)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logFile != nil {
				logging.SetOutput(nil)
				return logFile.Close()
			}
			return nil
		},
		// Without a command, behave like `run`
		Action: runImport,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Fetch the demo data and write the migration file",
				Action: runImport,
				Flags:  runFlags(),
			},
			{
				Name:   "check",
				Usage:  "Check connectivity to the source and target services",
				Action: checkConnections,
				Flags:  []cli.Flag{urlFlag(), keyFlag()},
			},
			{
				Name:   "apply",
				Usage:  "Execute a generated migration file against a Postgres database",
				Action: applyMigration,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dsn",
						EnvVars: []string{"DATABASE_URL"},
						Usage:   "Postgres connection string (default: target.dsn)",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Migration file (default: newest file in the output directory)",
					},
					&cli.DurationFlag{
						Name:  "wait",
						Value: 30 * time.Second,
						Usage: "How long to retry while the database is not accepting connections (0 disables)",
					},
				},
			},
			{
				Name:   "history",
				Usage:  "Show import run history",
				Action: showHistory,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "run",
						Usage: "Show details for a specific run ID",
					},
					&cli.IntFlag{
						Name:  "prune",
						Usage: "Delete finished runs older than this many days",
					},
				},
			},
		},
	}
}

func urlFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "url",
		Usage: "Target Supabase URL (default: target.url or SUPABASE_URL)",
	}
}

func keyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "key",
		Usage: "Target service role key (default: target.service_role_key or SUPABASE_SERVICE_ROLE_KEY)",
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		urlFlag(),
		keyFlag(),
		&cli.BoolFlag{
			Name:  "auto",
			Usage: "Never prompt for missing target settings",
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "Directory for the migration file (default: output.dir)",
		},
		&cli.StringSliceFlag{
			Name:  "thread",
			Usage: "Thread ID to import (repeatable, replaces source.thread_ids)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print the migration to stdout instead of writing a file",
		},
		&cli.BoolFlag{
			Name:  "progress-json",
			Usage: "Report fetch progress as JSON lines on stderr",
		},
	}
}

func runImport(c *cli.Context) error {
	if c.Args().Present() {
		_ = cli.ShowAppHelp(c)
		return exitcodes.NewExitError(fmt.Errorf("invalid config: unknown command %q", c.Args().First()), exitcodes.ConfigError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyTargetFlags(c, cfg)
	if dir := c.String("output-dir"); dir != "" {
		cfg.Output.Dir = dir
	}
	if threads := c.StringSlice("thread"); len(threads) > 0 {
		cfg.Source.ThreadIDs = threads
	}
	if cfg.Target.ServiceRoleKey == "" && !c.Bool("auto") && term.IsTerminal(int(os.Stdin.Fd())) {
		if err := promptTarget(cfg); err != nil {
			return exitcodes.NewExitError(err, exitcodes.ConfigError)
		}
	}
	if err := cfg.Validate(); err != nil {
		return exitcodes.NewExitError(fmt.Errorf("invalid config: %w", err), exitcodes.ConfigError)
	}

	orch, err := orchestrator.New(cfg, orchestrator.Options{
		StateFile:    getStateFile(c),
		RunID:        getRunID(c),
		DryRun:       c.Bool("dry-run"),
		ProgressJSON: c.Bool("progress-json"),
	})
	if err != nil {
		return exitcodes.NewExitError(err, exitcodes.StateError)
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()

	result, runErr := orch.Run(ctx)
	if runErr != nil && ctx.Err() != nil {
		runErr = exitcodes.NewExitError(runErr, exitcodes.Cancelled)
	}

	if outputJSONEnabled(c) && result != nil {
		if err := outputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to output JSON: %v\n", err)
		}
	} else if runErr == nil && result != nil && !result.DryRun {
		printSummary(result)
	}
	return runErr
}

func printSummary(r *orchestrator.Result) {
	fmt.Fprintf(os.Stderr, "\n%s %s\n", styleOK.Render("Migration written:"), r.Artifact)
	fmt.Fprintf(os.Stderr, "%s %d threads, %d messages, %d projects, %d agent runs\n",
		styleLabel.Render("Imported:"),
		r.Counts.Threads, r.Counts.Messages, r.Counts.Projects, r.Counts.AgentRuns)
	fmt.Fprintf(os.Stderr, "%s %s\n", styleLabel.Render("Demo user:"), r.UserID)
	fmt.Fprintf(os.Stderr, "%s %s\n", styleLabel.Render("Demo account:"), r.AccountID)
	if r.FetchFailures > 0 {
		fmt.Fprintf(os.Stderr, "%s %d fetches failed; the migration is incomplete\n",
			styleFail.Render("Warning:"), r.FetchFailures)
	}
	fmt.Fprintln(os.Stderr, "\nApply it with `supabase db reset`, `supabase migration up` or `demo-import apply`.")
}

func checkConnections(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyTargetFlags(c, cfg)
	if cfg.Target.URL == "" {
		return exitcodes.NewExitError(errors.New("invalid config: target.url is required (set SUPABASE_URL or pass --url)"), exitcodes.ConfigError)
	}

	orch, err := orchestrator.New(cfg, orchestrator.Options{StateFile: getStateFile(c)})
	if err != nil {
		return exitcodes.NewExitError(err, exitcodes.StateError)
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()

	result, checkErr := orch.Check(ctx)
	if outputJSONEnabled(c) {
		if err := outputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to output JSON: %v\n", err)
		}
		return checkErr
	}

	printEndpoint("Target", result.TargetURL, result.TargetConnected, result.TargetLatencyMs, result.TargetError)
	printEndpoint("Source", result.SourceURL, result.SourceConnected, result.SourceLatencyMs, result.SourceError)
	return checkErr
}

func printEndpoint(label, url string, ok bool, latencyMs int64, errMsg string) {
	if ok {
		fmt.Printf("%-7s %s %s (%dms)\n", label+":", styleOK.Render("OK"), url, latencyMs)
		return
	}
	fmt.Printf("%-7s %s %s: %s\n", label+":", styleFail.Render("FAIL"), url, errMsg)
}

func applyMigration(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	dsn := c.String("dsn")
	if dsn == "" {
		dsn = cfg.Target.DSN
	}
	if dsn == "" {
		return exitcodes.NewExitError(errors.New("invalid config: target.dsn is required (set DATABASE_URL or pass --dsn)"), exitcodes.ConfigError)
	}

	path := c.String("file")
	if path == "" {
		if path, err = migration.Latest(cfg.Output.Dir, cfg.Output.Suffix); err != nil {
			return exitcodes.NewExitError(err, exitcodes.IOError)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := apply.File(ctx, dsn, path, c.Duration("wait"))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return exitcodes.NewExitError(err, exitcodes.Cancelled)
		case strings.HasPrefix(err.Error(), "applying migration"):
			// SQL errors may mention connections; they are still apply failures
			return exitcodes.NewExitError(err, exitcodes.ApplyError)
		}
		return err
	}

	if outputJSONEnabled(c) {
		return outputJSON(result)
	}
	fmt.Fprintf(os.Stderr, "%s %s (%d bytes in %s)\n",
		styleOK.Render("Applied:"), result.File, result.Bytes, result.Duration.Round(time.Millisecond))
	return nil
}

func showHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(cfg, orchestrator.Options{StateFile: getStateFile(c)})
	if err != nil {
		return exitcodes.NewExitError(err, exitcodes.StateError)
	}
	defer orch.Close()

	if c.IsSet("prune") {
		if err := orch.PruneHistory(c.Int("prune")); err != nil {
			return err
		}
	}
	if runID := c.String("run"); runID != "" {
		return orch.ShowRunDetails(runID)
	}
	return orch.ShowHistory()
}

// loadConfig reads the --config file. A missing file is only an error when
// the flag was given explicitly; otherwise defaults and the environment apply.
func loadConfig(c *cli.Context) (*config.Config, error) {
	opts := config.LoadOptions{
		SuppressWarnings: logging.GetLevel() < logging.LevelWarn,
		SkipEnvFiles:     lineageBool(c, "no-env-file"),
	}
	configPath := lineageString(c, "config")
	if _, err := os.Stat(configPath); os.IsNotExist(err) && !lineageIsSet(c, "config") {
		logging.Debug("No config file at %s, using defaults", configPath)
		return config.Default(opts), nil
	}
	cfg, err := config.LoadWithOptions(configPath, opts)
	if err != nil {
		return nil, exitcodes.NewExitError(fmt.Errorf("failed to load config: %w", err), exitcodes.ConfigError)
	}
	return cfg, nil
}

func applyTargetFlags(c *cli.Context, cfg *config.Config) {
	if u := c.String("url"); u != "" {
		cfg.Target.URL = config.NormalizeURL(u)
	}
	if k := c.String("key"); k != "" {
		cfg.Target.ServiceRoleKey = k
	}
}

// promptTarget asks for the target URL and service role key on the terminal.
func promptTarget(cfg *config.Config) error {
	reader := bufio.NewReader(os.Stdin)

	def := cfg.Target.URL
	if def == "" {
		def = localTargetURL
	}
	fmt.Fprintf(os.Stderr, "Supabase URL [%s]: ", def)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading target url: %w", err)
	}
	if line = strings.TrimSpace(line); line == "" {
		line = def
	}
	cfg.Target.URL = config.NormalizeURL(line)

	fmt.Fprint(os.Stderr, "Service role key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading service role key: %w", err)
	}
	cfg.Target.ServiceRoleKey = strings.TrimSpace(string(key))
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// getStateFile returns the state file path from the context.
// Checks both command-level and global flags.
func getStateFile(c *cli.Context) string {
	return lineageString(c, "state-file")
}

func getRunID(c *cli.Context) string {
	return lineageString(c, "run-id")
}

func outputJSONEnabled(c *cli.Context) bool {
	return lineageBool(c, "output-json")
}

func lineageBool(c *cli.Context, name string) bool {
	for _, ctx := range c.Lineage() {
		if ctx != nil && ctx.Bool(name) {
			return true
		}
	}
	return false
}

func lineageString(c *cli.Context, name string) string {
	for _, ctx := range c.Lineage() {
		if ctx == nil {
			continue
		}
		if v := ctx.String(name); v != "" {
			return v
		}
	}
	return ""
}

func lineageIsSet(c *cli.Context, name string) bool {
	for _, ctx := range c.Lineage() {
		if ctx != nil && ctx.IsSet(name) {
			return true
		}
	}
	return false
}

func outputJSON(result any) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
