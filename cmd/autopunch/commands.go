package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ericfisherdev/autopunch/internal/domain/model"
)

// masterPasswordEnv names the environment variable holding the vault master
// password for the punch command.
const masterPasswordEnv = "AUTOPUNCH_MASTER_PASSWORD"

// punchAction runs one job from the command line. It is a dry run unless
// --live is given.
func punchAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("usage: autopunch punch in|out [--live] [--headless] [--password-stdin]", 2)
	}
	action, err := model.ParseAction(cmd.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	secret, err := masterSecret(cmd.Bool("password-stdin"), os.Stdin)
	if err != nil {
		return err
	}

	return withApp(ctx, func(ctx context.Context, a *app) error {
		headless := a.cfg.Headless
		if cmd.IsSet("headless") {
			headless = cmd.Bool("headless")
		}

		return a.jobService(nil).RunJob(ctx, model.JobRequest{
			Action:       action,
			DryRun:       !cmd.Bool("live"),
			Headless:     headless,
			MasterSecret: secret,
			Trigger:      model.TriggerCLI,
		})
	})
}

// masterSecret returns the first line of stdin when fromStdin is set, and
// the value of AUTOPUNCH_MASTER_PASSWORD otherwise. The password is never
// taken from the command line, where process listings would show it.
func masterSecret(fromStdin bool, stdin io.Reader) (string, error) {
	if !fromStdin {
		return os.Getenv(masterPasswordEnv), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read master password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// statusAction prints the vault state and whether the credential is cached.
func statusAction(ctx context.Context, _ *cli.Command) error {
	return withApp(ctx, func(ctx context.Context, a *app) error {
		status := a.vault.Status(ctx, model.VaultSession{})

		fmt.Fprintf(os.Stdout, "vault binary:      %s\n", a.vault.BinaryPath())
		fmt.Fprintf(os.Stdout, "vault status:      %s\n", status)
		fmt.Fprintf(os.Stdout, "vault item:        %s\n", a.cfg.VaultItem)
		fmt.Fprintf(os.Stdout, "credential cached: %t (%s)\n", a.resolver.IsCached(a.cfg.VaultItem), a.cache.Path())
		if status.NeedsMasterSecret() && !a.resolver.IsCached(a.cfg.VaultItem) {
			fmt.Fprintln(os.Stdout, "a master password is required for the next punch")
		}
		return nil
	})
}

// cacheClearAction deletes the credential cache file.
func cacheClearAction(ctx context.Context, _ *cli.Command) error {
	return withApp(ctx, func(_ context.Context, a *app) error {
		if err := a.resolver.ClearCache(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "credential cache cleared: %s\n", a.cache.Path())
		return nil
	})
}
