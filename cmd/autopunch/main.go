package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "autopunch",
		Usage: "Automate time-clock punches with credentials from a password vault",
		Commands: []*cli.Command{
			{
				Name:      "punch",
				Usage:     "Run a single clock-in or clock-out (dry run unless --live)",
				ArgsUsage: "in|out",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "live",
						Usage: "Click the punch control instead of only locating it",
					},
					&cli.BoolFlag{
						Name:    "headless",
						Usage:   "Run the browser without a window",
						Sources: cli.EnvVars("AUTOPUNCH_HEADLESS"),
					},
					&cli.BoolFlag{
						Name:  "password-stdin",
						Usage: "Read the vault master password from stdin instead of " + masterPasswordEnv,
					},
				},
				Action: punchAction,
			},
			{
				Name:   "serve",
				Usage:  "Serve the dashboard and API and run scheduled jobs",
				Action: serveAction,
			},
			{
				Name:   "status",
				Usage:  "Show vault and credential cache state",
				Action: statusAction,
			},
			{
				Name:  "healthcheck",
				Usage: "Check that a running server answers and report its vault state",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Server address; a bind-all host is checked on loopback",
						Sources: cli.EnvVars("AUTOPUNCH_LISTEN_ADDR"),
					},
				},
				Action: healthcheckAction,
			},
			{
				Name:  "cache",
				Usage: "Manage the local credential cache",
				Commands: []*cli.Command{
					{
						Name:   "clear",
						Usage:  "Delete the credential cache file",
						Action: cacheClearAction,
					},
				},
			},
		},
	}
}
