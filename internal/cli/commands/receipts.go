// Copyright 2025 ArkApply Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"arkapply/internal/history"
)

var receiptsLimit int

var receiptsCmd = &cobra.Command{
	Use:   "receipts [run-id]",
	Short: "List past runs or show one receipt",
	Long: `List past runs from the history index, newest first. Each line shows
the run ID, status, start time, operation counts and the receipt file
holding the full detail.

With a run ID (or unique prefix), print that run's receipt instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReceipts,
}

func init() {
	receiptsCmd.Flags().IntVar(&receiptsLimit, "limit", 20, "maximum runs to list (0 for all)")
	rootCmd.AddCommand(receiptsCmd)
}

func runReceipts(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		return showReceipt(cmd, store, args[0])
	}

	runs, err := store.List(cmd.Context(), receiptsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		started := time.Unix(run.StartedAt, 0).UTC().Format(time.RFC3339)
		mode := ""
		if run.DryRun {
			mode = " dry-run"
		}
		fmt.Printf("%s  %-8s%s  %s  %d ops, %d updated\n",
			run.RunID[:8], run.Status, mode, started, run.OpCount, run.UpdatedCount)
		if run.Error != "" {
			fmt.Printf("          error: %s\n", run.Error)
		}
	}
	return nil
}

// showReceipt resolves a run by ID prefix and prints its receipt file.
func showReceipt(cmd *cobra.Command, store *history.Store, idPrefix string) error {
	run, err := store.Get(cmd.Context(), idPrefix)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run matches %q", idPrefix)
	}
	if run.ReceiptPath == "" {
		return fmt.Errorf("run %s has no receipt on record", run.RunID[:8])
	}
	data, err := os.ReadFile(run.ReceiptPath)
	if err != nil {
		return fmt.Errorf("failed to read receipt: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
