// juno-ai is a personal AI agent with a guided first-run setup and a
// settings dashboard. The agent itself runs as a background daemon; this
// binary configures and supervises it.
package main

import (
	"fmt"
	"os"

	"juno-ai/internal/infra/config"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 {
		// No command: open the dashboard when configured, the wizard on
		// first run.
		if _, err := os.Stat(config.Path()); os.IsNotExist(err) {
			exitOn("setup", runSetup())
			return
		}
		exitOn("dashboard", runDashboard())
		return
	}

	switch os.Args[1] {
	case "setup":
		exitOn("setup", runSetup())
	case "dashboard":
		exitOn("dashboard", runDashboard())
	case "daemon":
		exitOn("daemon", runDaemonCmd())
	case "budget":
		exitOn("budget", runBudget())
	case "usage":
		exitOn("usage", runUsage())
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'juno-ai --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func exitOn(cmd string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`juno-ai - personal AI agent

USAGE:
    juno-ai [COMMAND] [FLAGS]

COMMANDS:
    setup       Launch the interactive setup wizard
                Flags: --plain for a line-mode wizard (no TUI)
    dashboard   Launch the settings dashboard
    daemon      Manage the background agent
                Subcommands: start, stop, status, run
    budget      Manage the spend limit
                Subcommands: show, set, clear
    usage       Show API usage and cost
                Flags: --period daily|weekly|monthly|total, --csv, --models

    (no command) - dashboard when configured, setup on first run

CONFIGURATION:
    Config dir:  ~/.juno-ai/
    Environment: JUNOAI_* variables override config

EXAMPLES:
    juno-ai setup
    juno-ai budget set 10 --period monthly --action warn
    juno-ai usage --period daily --models
    juno-ai daemon status`)
}

// loadConfig loads the config file, falling back to defaults on first run.
func loadConfig() (*config.Config, error) {
	return config.Load(config.Path())
}
