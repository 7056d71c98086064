// Command healthcheck probes the local tokenlink API and exits non-zero when
// it is unhealthy. With -active it also requires an active session.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:8080"

type healthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
}

func main() {
	requireActive := flag.Bool("active", false, "fail unless the session is active")
	flag.Parse()

	os.Exit(check("http://"+normalizeAddr(os.Getenv("TOKENLINK_LISTEN_ADDR")), *requireActive))
}

func check(baseURL string, requireActive bool) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/health", nil)
	if err != nil {
		return 1
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, "healthcheck: status", resp.StatusCode)
		return 1
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status != "ok" {
		fmt.Fprintln(os.Stderr, "healthcheck: unexpected body")
		return 1
	}
	if requireActive && body.Session != "active" {
		fmt.Fprintln(os.Stderr, "healthcheck: session is", body.Session)
		return 1
	}

	return 0
}

// normalizeAddr ensures the healthcheck connects to loopback rather than the
// bind-all address.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
