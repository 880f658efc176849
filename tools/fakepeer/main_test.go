package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunReportsUnreadableConfig(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")}, &stderr)
	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "load fakepeer config") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestRunLogsListenFailureToConfiguredFile(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer occupied.Close()

	logPath := filepath.Join(t.TempDir(), "fakepeer.log")
	path := writeConfig(t, fmt.Sprintf(`
addr = %q

[log]
format = "json"
outputs = [%q]
`, occupied.Addr().String(), logPath))

	var stderr bytes.Buffer
	if code := run([]string{"-config", path}, &stderr); code != 1 {
		t.Fatalf("expected exit code 1, got %d (stderr %q)", code, stderr.String())
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "listen failed") {
		t.Fatalf("listen failure not logged: %q", content)
	}
}

func TestRunResolvesFlagsOverConfig(t *testing.T) {
	path := writeConfig(t, "addr = \"127.0.0.1:1\"\n")
	flagSet, flags := newFlagSet(&bytes.Buffer{})
	if err := flagSet.Parse([]string{"-config", path, "-addr", "127.0.0.1:2", "-anonymous-relay", "-reject", "a, ,b"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	config, err := resolveConfig(flagSet, flags)
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if config.Addr != "127.0.0.1:2" || !config.AnonymousRelay {
		t.Fatalf("flags must override the file: %+v", config)
	}
	if strings.Join(config.RejectAddresses, ",") != "a,b" {
		t.Fatalf("unexpected reject list %v", config.RejectAddresses)
	}
}
