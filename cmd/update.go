package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightline-qa/qms-cli/internal/updater"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for and apply qms updates",
}

var updateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a newer version is available",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("update"); err != nil {
			return err
		}

		u := newUpdater()
		res, err := u.Check(cmd.Context())
		if err != nil {
			// A failed check is informational, not fatal.
			fmt.Println(u.Reason())
			return nil
		}
		fmt.Println(res.Notes)
		return nil
	},
}

var updateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Download the latest version and stage the install",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("update"); err != nil {
			return err
		}
		ctx := cmd.Context()

		u := newUpdater()
		res, err := u.Check(ctx)
		if err != nil {
			fmt.Println(u.Reason())
			return nil
		}
		if !res.Available {
			fmt.Println(res.Notes)
			return nil
		}

		fmt.Printf("Downloading %s...\n", res.Version)
		path, err := u.Download(ctx, res.URL, printProgress)
		fmt.Println()
		if err != nil {
			return err
		}

		if err := u.Install(path); err != nil {
			return err
		}
		fmt.Println("Update staged. It is applied when qms exits.")
		return nil
	},
}

func newUpdater() *updater.Updater {
	return updater.New(updater.Options{
		CurrentVersion: appVersion,
		MetadataURL:    cfg.Update.MetadataURL,
		CheckTimeout:   time.Duration(cfg.Update.CheckTimeoutSecs) * time.Second,
		Relaunch:       cfg.Update.Relaunch,
	})
}

func printProgress(soFar, total int64) {
	if total > 0 {
		fmt.Printf("\r%3.0f%% (%d/%d bytes)", float64(soFar)/float64(total)*100, soFar, total)
		return
	}
	fmt.Printf("\r%d bytes", soFar)
}

func init() {
	updateCmd.AddCommand(updateCheckCmd)
	updateCmd.AddCommand(updateApplyCmd)
	rootCmd.AddCommand(updateCmd)
}
