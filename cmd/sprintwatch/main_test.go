package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/sprintwatch/internal/config"
	"github.com/verte-zerg/sprintwatch/internal/leaderboard"
	"github.com/verte-zerg/sprintwatch/internal/model"
	"github.com/verte-zerg/sprintwatch/internal/store"
)

func setupHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{config.EnvDB, config.EnvCredentials, config.EnvAddr, config.EnvSecret, config.EnvTokenTTL} {
		t.Setenv(key, "")
	}
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func bootstrapAdmin(t *testing.T) {
	t.Helper()
	if _, err := runCLI(t, "adminpw\n", "user", "add", "admin", "--team", "Coach", "--admin"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
}

func TestUserAddAndTeams(t *testing.T) {
	setupHome(t)
	bootstrapAdmin(t)

	if _, err := runCLI(t, "wrong\n", "user", "add", "bob", "--team", "Blue", "--user", "admin"); err == nil {
		t.Fatalf("expected wrong admin password to fail")
	}
	if _, err := runCLI(t, "adminpw\nbobpw\n", "user", "add", "bob", "--team", "Blue", "--user", "admin"); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if _, err := runCLI(t, "adminpw\n", "teams", "set", "bob", "white", "--user", "admin"); err != nil {
		t.Fatalf("teams set: %v", err)
	}
	out, err := runCLI(t, "adminpw\n", "teams", "list", "--user", "admin")
	if err != nil {
		t.Fatalf("teams list: %v", err)
	}
	if !strings.Contains(out, "White ⚪: bob") || !strings.Contains(out, "Coach 🧢: admin") {
		t.Fatalf("unexpected teams output:\n%s", out)
	}

	_, err = runCLI(t, "bobpw\n", "teams", "list", "--user", "bob")
	if !errors.Is(err, errAdminRequired) {
		t.Fatalf("expected admin required, got %v", err)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	setupHome(t)
	out, err := runCLI(t, "", "leaderboard")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if strings.TrimSpace(out) != "No times saved yet." {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEditExportAndDelete(t *testing.T) {
	setupHome(t)
	bootstrapAdmin(t)

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	id, err := st.Insert(context.Background(), model.NewEntry{Username: "alice", Team: model.TeamBlue, SprintNumber: 1, Time: 10})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	today := st.Today()
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	csvPath := filepath.Join(t.TempDir(), "blue.csv")
	csv := fmt.Sprintf("id,username,team,sprint_number,time,saved_at_date\n%d,alice,Blue,1,9.5,%s\n,carol,Blue,1,8,\n", id, today)
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out, err := runCLI(t, "adminpw\n", "edit", "--team", "blue", "--file", csvPath, "--user", "admin")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if strings.TrimSpace(out) != "Blue: 0 deleted, 1 inserted, 1 updated, 0 unchanged" {
		t.Fatalf("unexpected edit output %q", out)
	}

	out, err = runCLI(t, "adminpw\n", "export", "--user", "admin")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "carol,Blue,1,8,"+today) || !strings.Contains(out, "alice,Blue,1,9.5,"+today) {
		t.Fatalf("unexpected export:\n%s", out)
	}

	out, err = runCLI(t, "", "leaderboard")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if !strings.Contains(out, "Blue Team Time") || !strings.Contains(out, "17.50") {
		t.Fatalf("unexpected leaderboard:\n%s", out)
	}

	if _, err := runCLI(t, "adminpw\n", "delete", "carol", "--user", "admin"); err == nil {
		t.Fatalf("expected missing --sprint to fail")
	}
	out, err = runCLI(t, "adminpw\n", "delete", "carol", "--sprint", "1", "--user", "admin")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if strings.TrimSpace(out) != "Deleted 1 rows" {
		t.Fatalf("unexpected delete output %q", out)
	}
}

func TestMustExistRefusesMissingDatabase(t *testing.T) {
	setupHome(t)
	_, err := runCLI(t, "", "leaderboard", "--must-exist", "--db", filepath.Join(t.TempDir(), "missing.db"))
	if !errors.Is(err, store.ErrDatabaseMissing) {
		t.Fatalf("expected missing database error, got %v", err)
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("decode template: %v", err)
	}
	if cfg.Store.Path != nil || cfg.Server.Secret != nil {
		t.Fatalf("template values must be commented out: %+v", cfg)
	}
}

func TestResolveServeSettings(t *testing.T) {
	setupHome(t)
	addr := ":9000"
	ttl := "2h"
	fileCfg := config.FileConfig{Server: config.ServerConfig{Addr: &addr, TokenTTL: &ttl}}

	cmd := newServeCmd()
	if _, err := resolveServeSettings(cmd, fileCfg); err == nil {
		t.Fatalf("expected missing secret to fail")
	}

	t.Setenv(config.EnvSecret, "s3cret")
	got, err := resolveServeSettings(cmd, fileCfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.addr != ":9000" || got.token.TTL != 2*time.Hour || got.token.Issuer != defaultIssuer || got.token.Secret != "s3cret" {
		t.Fatalf("unexpected settings: %+v", got)
	}

	t.Setenv(config.EnvAddr, ":7000")
	t.Setenv(config.EnvTokenTTL, "30m")
	got, err = resolveServeSettings(cmd, fileCfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.addr != ":7000" || got.token.TTL != 30*time.Minute {
		t.Fatalf("env must override file: %+v", got)
	}

	if err := cmd.Flags().Set("addr", ":6000"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	got, err = resolveServeSettings(cmd, fileCfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.addr != ":6000" {
		t.Fatalf("flag must win, got %s", got.addr)
	}
}

func TestEditUntouchedExportLeavesHistoryAlone(t *testing.T) {
	setupHome(t)
	bootstrapAdmin(t)

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	if _, err := st.Insert(ctx, model.NewEntry{Username: "alice", Team: model.TeamBlue, SprintNumber: 1, Time: 10, SavedAt: time.Now().AddDate(0, 0, -2)}); err != nil {
		t.Fatalf("seed past: %v", err)
	}
	if _, err := st.Insert(ctx, model.NewEntry{Username: "alice", Team: model.TeamBlue, SprintNumber: 1, Time: 11}); err != nil {
		t.Fatalf("seed today: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	csvPath := filepath.Join(t.TempDir(), "export.csv")
	if _, err := runCLI(t, "adminpw\n", "export", "--out", csvPath, "--user", "admin"); err != nil {
		t.Fatalf("export: %v", err)
	}
	out, err := runCLI(t, "adminpw\n", "edit", "--team", "Blue", "--file", csvPath, "--user", "admin")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if strings.TrimSpace(out) != "Blue: 0 deleted, 0 inserted, 0 updated, 1 unchanged" {
		t.Fatalf("unexpected edit output %q", out)
	}
}

func TestReportEditPrintsPartialResult(t *testing.T) {
	var buf bytes.Buffer
	failure := errors.New("disk full")
	res := leaderboard.Result{Team: model.TeamWhite, Deleted: []int64{4}, Inserted: []int64{9}}
	err := reportEdit(&buf, res, failure)
	if !errors.Is(err, failure) {
		t.Fatalf("expected reconcile error, got %v", err)
	}
	if strings.TrimSpace(buf.String()) != "White: 1 deleted, 1 inserted, 0 updated, 0 unchanged" {
		t.Fatalf("unexpected report %q", buf.String())
	}
}
