package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/sprintwatch/internal/auth"
	"github.com/verte-zerg/sprintwatch/internal/leaderboard"
	"github.com/verte-zerg/sprintwatch/internal/model"
	"github.com/verte-zerg/sprintwatch/internal/store"
)

var (
	exportOut string

	editTeam string
	editFile string

	deleteSprint int

	userTeam  string
	userName  string
	userAdmin bool
)

// withAdminStore authenticates an admin and opens the store for fn.
func withAdminStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store, users *auth.Provider) error) error {
	if _, err := resolvePaths(cmd); err != nil {
		return err
	}
	users, err := auth.LoadProvider(credentialsPath)
	if err != nil {
		return err
	}
	if _, err := loginAdmin(newPrompter(cmd), users); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)
	return fn(cmd.Context(), st, users)
}

func newLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Print today's leaderboard",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	if _, err := resolvePaths(cmd); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	board, err := leaderboard.Build(cmd.Context(), st, loginUser)
	if err != nil {
		return fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return printBoard(cmd.OutOrStdout(), board)
}

func printBoard(w io.Writer, board leaderboard.Board) error {
	if board.Empty {
		_, err := fmt.Fprintln(w, "No times saved yet.")
		return err
	}
	for i, tb := range board.Teams {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		for _, line := range leaderboard.FormatTeam(tb) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all saved times as CSV (admin)",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportOut, "out", "", "output file (default: stdout)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	return withAdminStore(cmd, func(ctx context.Context, st *store.Store, _ *auth.Provider) error {
		entries, err := st.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load times: %w", err)
		}
		if exportOut == "" {
			return leaderboard.WriteCSV(cmd.OutOrStdout(), entries)
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		if err := leaderboard.WriteCSV(f, entries); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write %s: %w", exportOut, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", exportOut, err)
		}
		logErrf("Exported %d rows to %s\n", len(entries), exportOut)
		return nil
	})
}

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply an edited CSV of today's team times (admin)",
		Args:  cobra.NoArgs,
		RunE:  runEditCmd,
	}
	cmd.Flags().StringVar(&editTeam, "team", "", "team to reconcile (Blue or White)")
	cmd.Flags().StringVar(&editFile, "file", "", "edited CSV in export format")
	return cmd
}

func runEditCmd(cmd *cobra.Command, _ []string) error {
	team, err := model.ParseTeam(editTeam)
	if err != nil {
		return fmt.Errorf("invalid --team: %w", err)
	}
	if editFile == "" {
		return fmt.Errorf("--file is required")
	}
	f, err := os.Open(editFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", editFile, err)
	}
	defer func() {
		_ = f.Close()
	}()

	return withAdminStore(cmd, func(ctx context.Context, st *store.Store, _ *auth.Provider) error {
		rows, err := leaderboard.ReadEditedCSV(f, team, st.Today())
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", editFile, err)
		}
		res, err := leaderboard.NewReconciler(st).Reconcile(ctx, team, rows)
		return reportEdit(cmd.OutOrStdout(), res, err)
	})
}

// reportEdit prints what a reconciliation applied, including the writes
// that committed before a failure.
func reportEdit(w io.Writer, res leaderboard.Result, reconcileErr error) error {
	if _, err := fmt.Fprintf(w, "%s: %d deleted, %d inserted, %d updated, %d unchanged\n",
		res.Team, len(res.Deleted), len(res.Inserted), len(res.Updated), res.Unchanged); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if res.Reclassified > 0 {
		logErrf("%d rows had unknown ids and were inserted as new\n", res.Reclassified)
	}
	if reconcileErr != nil {
		return fmt.Errorf("edit applied partially: %w", reconcileErr)
	}
	return nil
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete a user's run by sprint number (admin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteCmd,
	}
	cmd.Flags().IntVar(&deleteSprint, "sprint", 0, "sprint number to delete")
	return cmd
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	if deleteSprint < 1 {
		return fmt.Errorf("--sprint must be >= 1")
	}
	return withAdminStore(cmd, func(ctx context.Context, st *store.Store, _ *auth.Provider) error {
		n, err := st.DeleteByUsernameAndSprint(ctx, args[0], deleteSprint)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d rows\n", n)
		return err
	})
}

func newTeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Manage team membership (admin)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List team members",
		Args:  cobra.NoArgs,
		RunE:  runTeamsListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set USERNAME TEAM",
		Short: "Move a user to another team",
		Args:  cobra.ExactArgs(2),
		RunE:  runTeamsSetCmd,
	})
	return cmd
}

func withAdminUsers(cmd *cobra.Command) (*auth.Provider, error) {
	if _, err := resolvePaths(cmd); err != nil {
		return nil, err
	}
	users, err := auth.LoadProvider(credentialsPath)
	if err != nil {
		return nil, err
	}
	if _, err := loginAdmin(newPrompter(cmd), users); err != nil {
		return nil, err
	}
	return users, nil
}

func runTeamsListCmd(cmd *cobra.Command, _ []string) error {
	users, err := withAdminUsers(cmd)
	if err != nil {
		return err
	}
	for _, team := range model.Teams {
		members := users.TeamMembers(team)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", team, team.Logo(), strings.Join(members, ", ")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runTeamsSetCmd(cmd *cobra.Command, args []string) error {
	team, err := model.ParseTeam(args[1])
	if err != nil {
		return err
	}
	users, err := withAdminUsers(cmd)
	if err != nil {
		return err
	}
	if err := users.SetTeam(args[0], team); err != nil {
		return err
	}
	logErrf("Moved %s to %s\n", args[0], team)
	return nil
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Add or replace a user (admin, unless no users exist yet)",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserAddCmd,
	}
	add.Flags().StringVar(&userTeam, "team", "", "team (Blue, White or Coach)")
	add.Flags().StringVar(&userName, "name", "", "display name (default: username)")
	add.Flags().BoolVar(&userAdmin, "admin", false, "grant admin rights")
	cmd.AddCommand(add)
	return cmd
}

func runUserAddCmd(cmd *cobra.Command, args []string) error {
	team, err := model.ParseTeam(userTeam)
	if err != nil {
		return fmt.Errorf("invalid --team: %w", err)
	}
	if _, err := resolvePaths(cmd); err != nil {
		return err
	}
	users, err := auth.LoadProvider(credentialsPath)
	if err != nil {
		return err
	}
	p := newPrompter(cmd)
	// The first user bootstraps the file and needs no login.
	if len(users.Users()) > 0 {
		if _, err := loginAdmin(p, users); err != nil {
			return err
		}
	} else {
		logErrln("No users yet; creating the first account without login")
	}
	password, err := p.password(fmt.Sprintf("Password for %s: ", args[0]))
	if err != nil {
		return err
	}
	if err := users.AddUser(args[0], userName, password, team, userAdmin); err != nil {
		return err
	}
	logErrf("Wrote %s to %s\n", args[0], credentialsPath)
	return nil
}
