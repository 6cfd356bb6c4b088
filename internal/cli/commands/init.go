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
	"path/filepath"

	"github.com/spf13/cobra"

	"arkapply/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a workspace",
	Long: `Initialize a workspace in the specified directory (or current directory).

Creates the control directory with a default configuration file. Similar
to 'git init', this prepares the directory for apply operations.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := rootDir
	if len(args) > 0 {
		targetDir = args[0]
	}
	absDir, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	existing := false
	if info, statErr := os.Stat(filepath.Join(absDir, workspace.ControlDirName())); statErr == nil && info.IsDir() {
		existing = true
	}

	ws, err := workspace.Init(absDir)
	if err != nil {
		return err
	}
	if existing {
		fmt.Printf("Reinitialized existing workspace in %s\n", ws.ControlDir())
	} else {
		fmt.Printf("Initialized empty workspace in %s\n", ws.ControlDir())
	}
	return nil
}
