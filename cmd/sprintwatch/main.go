// Package main provides the CLI entrypoint for sprintwatch.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/sprintwatch/internal/auth"
	"github.com/verte-zerg/sprintwatch/internal/config"
	"github.com/verte-zerg/sprintwatch/internal/store"
	"github.com/verte-zerg/sprintwatch/internal/tui"
)

const (
	defaultAddr     = ":8080"
	defaultIssuer   = "sprintwatch"
	defaultTokenTTL = "24h"
)

var (
	dbPath          string
	credentialsPath string
	dbMustExist     bool
	loginUser       string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sprintwatch",
		Short:         "Team sprint stopwatch and leaderboard",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runStopwatchCmd,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", config.DefaultCredentialsPath(), "path to the users file")
	rootCmd.PersistentFlags().BoolVar(&dbMustExist, "must-exist", false, "fail instead of creating a missing database")
	rootCmd.PersistentFlags().StringVar(&loginUser, "user", "", "username to log in as")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newTeamsCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// resolvePaths applies, in order of precedence, flags, environment and the
// config file to the shared path settings.
func resolvePaths(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "db", &dbPath, envValue(config.EnvDB), fileCfg.Store.Path)
	applyStringConfig(cmd, "credentials", &credentialsPath, envValue(config.EnvCredentials), fileCfg.Auth.Credentials)
	applyBoolConfig(cmd, "must-exist", &dbMustExist, fileCfg.Store.MustExist)
	return fileCfg, nil
}

func openStore() (*store.Store, error) {
	var opts []store.Option
	if dbMustExist {
		opts = append(opts, store.MustExist())
	}
	st, err := store.Open(dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func runStopwatchCmd(cmd *cobra.Command, _ []string) error {
	if _, err := resolvePaths(cmd); err != nil {
		return err
	}
	users, err := auth.LoadProvider(credentialsPath)
	if err != nil {
		return err
	}
	id, err := login(newPrompter(cmd), users, loginUser)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	program := tea.NewProgram(tui.NewModel(st, id, nil), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// applyStringConfig fills target from env, then from the config file, unless
// the flag was set explicitly.
func applyStringConfig(cmd *cobra.Command, name string, target *string, values ...*string) {
	if cmd.Flags().Changed(name) {
		return
	}
	if v := firstSet(values...); v != nil {
		*target = *v
	}
}

func firstSet(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func envValue(key string) *string {
	if v := os.Getenv(key); v != "" {
		return &v
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# sprintwatch configuration
# Uncomment a value to enable it. CLI flags and environment variables
# override config values.

[store]
# path = %q
# must-exist = false      # Fail instead of creating a missing database

[auth]
# credentials = %q

[server]
# addr = %q
# secret = ""             # HS256 signing key for API tokens (or $%s)
# issuer = %q
# token-ttl = %q
`,
		config.DefaultDBPath(),
		config.DefaultCredentialsPath(),
		defaultAddr,
		config.EnvSecret,
		defaultIssuer,
		defaultTokenTTL,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
