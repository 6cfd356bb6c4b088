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
	"path/filepath"

	"github.com/spf13/cobra"

	"arkapply/internal/backup"
)

var backupsCmd = &cobra.Command{
	Use:   "backups <file>",
	Short: "List backups of a file",
	Long: `List the retained pre-mutation backups of a file, oldest first.
The argument is matched by file name against the backup directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackups,
}

func init() {
	rootCmd.AddCommand(backupsCmd)
}

func runBackups(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	mgr := backup.NewManager(ws.BackupDir(), ws.Config.BackupRetention)
	backups, err := mgr.List(filepath.Base(args[0]))
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Printf("No backups for %s\n", filepath.Base(args[0]))
		return nil
	}
	for _, path := range backups {
		fmt.Println(path)
	}
	return nil
}
