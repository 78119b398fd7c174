package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/zerobyte/warden/internal/events"
	"github.com/zerobyte/warden/internal/logging"
	"github.com/zerobyte/warden/internal/updater"
	"github.com/zerobyte/warden/internal/version"
)

// CreateUpdateCmd creates the one-shot self-update command. The same
// updater service backs the HTTP update endpoints when warden runs as
// host; here it is driven directly from the terminal.
func CreateUpdateCmd() *cobra.Command {
	var repository string
	var prerelease bool
	var checkOnly bool
	var rollback bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update warden to the latest release",
		Long: `Check GitHub releases for a newer warden binary and replace the ` +
			`running executable in place. A backup of the previous binary is kept ` +
			`for rollback.`,
		Run: func(_ *cobra.Command, _ []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			logging.Initialize(logging.Config{Level: "info", Format: "text"})

			svc, err := updater.NewService(&updater.Options{
				Repository: repository,
				Prerelease: prerelease,
			}, events.New())
			if err != nil {
				fmt.Fprintf(os.Stderr, "update: %v\n", err)
				os.Exit(1)
			}
			if !svc.IsEnabled() {
				fmt.Fprintf(os.Stderr, "update: unavailable: %s\n", svc.DisabledReason())
				os.Exit(1)
			}

			if rollback {
				if err := svc.Rollback(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "rollback failed: %v\n", err)
					os.Exit(1)
				}
				fmt.Println("rolled back to previous binary; restart warden to use it")
				return
			}

			info, err := svc.CheckForUpdate(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "update check failed: %v\n", err)
				os.Exit(1)
			}
			if !info.UpdateAvailable {
				fmt.Printf("warden %s is up to date\n", version.Version)
				return
			}
			fmt.Printf("update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			if checkOnly {
				return
			}

			if err := svc.ApplyUpdate(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "update failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("updated to %s; restart warden to use it\n", info.LatestVersion)
		},
	}

	cmd.Flags().StringVar(&repository, "repository", "zerobyte/warden", "GitHub repository to pull releases from")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check; do not download or apply")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the pre-update backup binary")

	return cmd
}
