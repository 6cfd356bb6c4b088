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
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"arkapply/internal/history"
	"arkapply/internal/lockfile"
	"arkapply/internal/txn"
	"arkapply/internal/workspace"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply <package.json>",
	Short: "Apply a modification package to the workspace",
	Long: `Apply an ordered batch of file modifications from a package file.

The run is all-or-nothing: the first failing operation aborts the batch
and rolls back every change made so far. A receipt describing the run is
written under the control directory either way.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "evaluate the package without touching the tree")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	if err := ws.EnsureRunDirs(); err != nil {
		return err
	}

	pkg, err := txn.LoadPackage(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if !applyDryRun {
		lock := lockfile.New(ws.LockPath(), ws.Config.LockStale())
		if err := lock.Acquire(ctx); err != nil {
			if errors.Is(err, lockfile.ErrHeld) {
				return fmt.Errorf("another apply is in progress: %w", err)
			}
			return err
		}
		defer func() {
			if relErr := lock.Release(); relErr != nil {
				log.WithError(relErr).Warn("Failed to release lock")
			}
		}()
	}

	engine := txn.NewEngine(ws, applyDryRun)
	receipt, runErr := engine.Execute(ctx, pkg.Modifications)

	emitter := &txn.Emitter{Dir: ws.ReceiptDir()}
	receiptPath, emitErr := emitter.Emit(receipt)
	if emitErr != nil {
		log.WithError(emitErr).Error("Failed to write receipt")
	}

	recordRun(ctx, ws, receipt, len(pkg.Modifications), receiptPath)
	printReceiptSummary(receipt, receiptPath)

	if runErr != nil {
		return fmt.Errorf("apply failed: %w", runErr)
	}
	if emitErr != nil {
		return fmt.Errorf("apply succeeded but the receipt could not be written: %w", emitErr)
	}
	return nil
}

// recordRun indexes the run in the history database. Failures are logged
// and ignored; the receipt file is the durable record.
func recordRun(ctx context.Context, ws *workspace.Workspace, r *txn.Receipt, opCount int, receiptPath string) {
	store, err := history.Open(ws.HistoryPath())
	if err != nil {
		log.WithError(err).Warn("Failed to open history database")
		return
	}
	defer store.Close()

	err = store.Record(ctx, &history.RunModel{
		RunID:        r.RunID,
		Status:       string(r.Status),
		DryRun:       r.DryRun,
		StartedAt:    r.StartedAt.Unix(),
		FinishedAt:   r.FinishedAt.Unix(),
		OpCount:      int64(opCount),
		UpdatedCount: int64(len(r.UpdatedFiles)),
		Error:        r.Error,
		ReceiptPath:  receiptPath,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to record run in history")
	}
}

func printReceiptSummary(r *txn.Receipt, receiptPath string) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Printf("Run %s: %s%s\n", r.RunID[:8], r.Status, mode)
	for _, op := range r.Operations {
		line := fmt.Sprintf("  [%d] %s %s: %s", op.Index, op.Action, op.Path, op.Status)
		if op.Detail != "" {
			line += " (" + op.Detail + ")"
		}
		fmt.Println(line)
	}
	if r.Error != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", r.Error)
	}
	if r.RolledBack {
		if len(r.RollbackErrors) == 0 {
			fmt.Println("All changes rolled back.")
		} else {
			fmt.Fprintln(os.Stderr, "Rollback completed with errors:")
			for _, e := range r.RollbackErrors {
				fmt.Fprintf(os.Stderr, "  %s\n", e)
			}
		}
	}
	if receiptPath != "" {
		fmt.Printf("Receipt: %s\n", receiptPath)
	}
}
