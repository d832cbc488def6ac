package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	httphandler "github.com/ericfisherdev/autopunch/internal/adapter/driving/http"
)

const (
	defaultCheckAddr = "127.0.0.1:8080"
	checkTimeout     = 2 * time.Second
)

// healthcheckAction exits non-zero unless the server at --addr answers both
// the health and the vault status endpoints. It needs no configuration
// beyond the address, so it works as a container HEALTHCHECK.
func healthcheckAction(ctx context.Context, cmd *cli.Command) error {
	addr := normalizeAddr(cmd.String("addr"))

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	vault, err := checkServer(ctx, &http.Client{Timeout: checkTimeout}, addr)
	if err != nil {
		return cli.Exit("unhealthy: "+err.Error(), 1)
	}

	fmt.Fprintf(os.Stdout, "ok: %s vault=%s secret_held=%t credential_cached=%t\n",
		addr, vault.Status, vault.SecretHeld, vault.CredentialCached)
	return nil
}

// checkServer requires 200 from /api/v1/health and returns the decoded
// /api/v1/vault/status body.
func checkServer(ctx context.Context, client *http.Client, addr string) (httphandler.VaultStatusResponse, error) {
	var vault httphandler.VaultStatusResponse

	if err := getJSON(ctx, client, "http://"+addr+"/api/v1/health", nil); err != nil {
		return vault, err
	}
	if err := getJSON(ctx, client, "http://"+addr+"/api/v1/vault/status", &vault); err != nil {
		return vault, err
	}
	if vault.Status == "" {
		return vault, fmt.Errorf("vault status: empty response")
	}
	return vault, nil
}

// getJSON fetches url and decodes the body into out when out is non-nil.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", req.URL.Path, err)
	}
	return nil
}

// normalizeAddr points the check at loopback when the server binds every
// interface, since the check runs on the same host or container.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultCheckAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultCheckAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
