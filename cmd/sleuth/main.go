package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/app"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/format"
	"github.com/germanamz/sleuth/cmd/sleuth/internal/msgs"
	"github.com/germanamz/sleuth/pkg/engine"
	"github.com/germanamz/sleuth/pkg/telemetry"
)

// errAnswerFailed marks a -q run whose question could not be answered. The
// user-facing message has already been printed.
var errAnswerFailed = errors.New("question failed")

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			initCmd := flag.NewFlagSet("init", flag.ExitOnError)
			initCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: sleuth init [flags]\n\nCreate a config file interactively.\n\nFlags:\n")
				initCmd.PrintDefaults()
			}
			out := initCmd.String("out", defaultConfigPath, "path of the config file to write")
			force := initCmd.Bool("force", false, "overwrite an existing file")
			_ = initCmd.Parse(os.Args[2:])

			if err := runInit(*out, *force); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "mcp":
			mcpCmd := flag.NewFlagSet("mcp", flag.ExitOnError)
			mcpCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: sleuth mcp [flags]\n\nServe the agent as an MCP research tool over stdio.\n\nFlags:\n")
				mcpCmd.PrintDefaults()
			}
			configPath := mcpCmd.String("config", "", "path to configuration file (default: "+defaultConfigPath+")")
			envFile := mcpCmd.String("env", ".env", "path to .env file (ignored if missing)")
			_ = mcpCmd.Parse(os.Args[2:])

			if err := loadDotEnv(*envFile); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			if err := runMCP(*configPath); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sleuth [flags]\n       sleuth <command> [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  init    Create a config file interactively\n  mcp     Serve the agent as an MCP research tool over stdio\n")
	}

	configPath := flag.String("config", "", "path to configuration file (default: "+defaultConfigPath+")")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	query := flag.String("q", "", "ask a single question, print the answer and exit")
	verbose := flag.Bool("verbose", false, "debug logging to stderr")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *query, *verbose); err != nil {
		if !errors.Is(err, errAnswerFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(configPath, query string, verbose bool) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := engine.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return err
	}

	// The TUI owns the terminal; logs only go to stderr when asked for.
	logOut := io.Writer(os.Stderr)
	if query == "" && !verbose {
		logOut = io.Discard
	}
	logger := newLogger(logOut, cfg.Log, verbose)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer flushTelemetry(shutdown, logger)

	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	sess := eng.NewSession()

	if query != "" {
		return askOnce(ctx, sess, query, os.Stdout, os.Stderr, logger)
	}

	// Detect the background before bubbletea takes over stdin.
	format.IsDarkBG = lipgloss.HasDarkBackground()

	model := app.New(ctx, sess, eng.Events(), eng.Completer())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// Send the program reference so the model can start the bridge.
	go func() {
		p.Send(msgs.ProgramReadyMsg{Program: p})
	}()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// askOnce answers a single question for -q mode.
func askOnce(ctx context.Context, sess app.Asker, query string, stdout, stderr io.Writer, log *slog.Logger) error {
	res, err := sess.Ask(ctx, query)
	if err != nil {
		log.ErrorContext(ctx, "question failed", "error", err)
		fmt.Fprintln(stderr, engine.UserMessage(err))
		return errAnswerFailed
	}

	fmt.Fprintln(stdout, res.FinalText)
	return nil
}
