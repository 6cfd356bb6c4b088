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

	"github.com/spf13/cobra"

	"arkapply/internal/manifest"
)

var verifySave bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify integrity tags across the workspace",
	Long: `Scan every tagged-extension file in the workspace and compare its
embedded integrity tag against its clean fingerprint. Files recorded in a
previously saved integrity manifest that have since disappeared are
reported as removed. Exits non-zero when any file is stale, untagged or
removed.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifySave, "save", false, "write the scan result to the integrity manifest")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	report, err := manifest.Scan(ws)
	if err != nil {
		return err
	}
	saved, err := manifest.Load(ws)
	if err != nil {
		return err
	}
	removed := manifest.Missing(saved, report)
	if verifySave {
		if err := manifest.Save(ws, report); err != nil {
			return err
		}
	}

	var stale, missing int
	for _, e := range report.Entries {
		switch e.State {
		case manifest.TagStale:
			stale++
		case manifest.TagMissing:
			missing++
		}
		fmt.Printf("%-8s %s\n", e.State, e.Path)
	}
	for _, path := range removed {
		fmt.Printf("%-8s %s\n", "REMOVED", path)
	}
	fmt.Printf("%d files scanned, %d stale, %d untagged, %d removed\n",
		len(report.Entries), stale, missing, len(removed))

	if !report.Clean() || len(removed) > 0 {
		return fmt.Errorf("%d files failed verification", stale+missing+len(removed))
	}
	return nil
}
