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
	"strings"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show effective workspace settings",
	Long: `Show the effective workspace settings after defaults are applied.

Settings are edited directly in the workspace config file; this command
shows what the engine will actually use, including defaults for fields
the file omits.`,
	RunE: runSettings,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
}

func runSettings(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	cfgState := "defaults (file missing)"
	if _, err := os.Stat(ws.ConfigPath()); err == nil {
		cfgState = ws.ConfigPath()
	}

	cfg := ws.Config
	fmt.Printf("Workspace: %s\n", ws.Root)
	fmt.Printf("Config: %s\n", cfgState)
	fmt.Printf("  backup_retention: %d\n", cfg.BackupRetention)
	fmt.Printf("  lock_stale_seconds: %d\n", cfg.LockStaleSeconds)
	fmt.Printf("  tagged_extensions: %s\n", strings.Join(cfg.TaggedExtensions, ", "))
	if len(cfg.ExtraMarkers) > 0 {
		fmt.Printf("  extra_markers: %s\n", strings.Join(cfg.ExtraMarkers, ", "))
	} else {
		fmt.Printf("  extra_markers: (none)\n")
	}
	fmt.Printf("  replace_zero_match_fails: %t\n", cfg.ReplaceZeroMatchFails)
	fmt.Printf("  log_level: %s\n", cfg.LogLevel)
	return nil
}
