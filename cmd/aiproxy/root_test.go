package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func executeContext(ctx context.Context, args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "Version: dev") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestMigrateCommandWithEnvDSN(t *testing.T) {
	t.Setenv("AIPROXY_DSN", filepath.Join(t.TempDir(), "cli.db"))
	if err := executeContext(context.Background(), "migrate", "--config", filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
