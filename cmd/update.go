package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var flagForce bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the local catalog snapshot",
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&flagForce, "force", false, "re-download even if the snapshot is fresh")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	log := newLogger()
	mgr, err := newManager(log)
	if err != nil {
		return err
	}

	if flagForce {
		err = mgr.Download()
	} else {
		err = mgr.EnsureFresh()
	}
	if err != nil {
		return err
	}

	if age, ok := mgr.CheckAge(); ok {
		fmt.Printf("snapshot at %s (age %s)\n", mgr.SnapshotPath(), age.Round(time.Second))
	}
	if info, ok := mgr.Info(); ok {
		fmt.Printf("catalog created %s, %d categories\n", info.Created, len(info.Categories))
		if flagVerbose && len(info.Categories) > 0 {
			fmt.Println(strings.Join(info.Categories, ", "))
		}
	}
	return nil
}
