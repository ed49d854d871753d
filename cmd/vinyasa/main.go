package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/vinyasa/internal/config"
	"github.com/hpungsan/vinyasa/internal/db"
	"github.com/hpungsan/vinyasa/internal/logging"
	"github.com/hpungsan/vinyasa/internal/mcp"
	"github.com/hpungsan/vinyasa/internal/ops"
	"github.com/hpungsan/vinyasa/internal/oracle"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"generate": true, "revise": true, "duration": true,
	"block": true, "blocks": true, "move": true,
	"replace": true, "remove-step": true,
	"show": true, "list": true, "delete": true, "purge": true,
	"insights": true, "poses": true, "pose": true,
	"catalog": true, "serve": true, "check": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
         _
  __   _(_)_ __  _   _  __ _ ___  __ _
  \ \ / / | '_ \| | | |/ _' / __|/ _' |
   \ V /| | | | | |_| | (_| \__ \ (_| |
    \_/ |_|_| |_|\__, |\__,_|___/\__,_|
                 |___/

  Yoga sequence composer

  Usage: vinyasa <command> [options]
         vinyasa --help

  MCP server mode requires piped input.`)
}

// logFilePath resolves a relative log file against the base directory.
func logFilePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// warnUnknownDisabled logs disabled_tools / disabled_types entries that
// match nothing.
func warnUnknownDisabled(logger *slog.Logger, cfg *config.Config) {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", "types", unknown)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".vinyasa")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	// MCP mode owns stdout, so the terminal sink always goes to stderr.
	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Stderr:  os.Stderr,
		LogFile: logFilePath(baseDir, cfg.LogFile),
	})
	if err != nil {
		fatal("failed to set up logging: %v", err)
	}
	defer closer.Close()

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	deps := &ops.Deps{
		DB:     database,
		Config: cfg,
		Oracle: oracle.FromConfig(cfg, logger),
		Logger: logger,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'vinyasa --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	warnUnknownDisabled(logger, cfg)
	if err := mcp.Run(deps, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
