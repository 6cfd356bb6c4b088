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

var retagCmd = &cobra.Command{
	Use:   "retag",
	Short: "Refresh integrity tags across the workspace",
	Long: `Rewrite the integrity tag on every tagged-extension file whose tag
is missing or no longer matches its content, then save the updated
integrity manifest.`,
	RunE: runRetag,
}

func init() {
	rootCmd.AddCommand(retagCmd)
}

func runRetag(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	updated, err := manifest.Retag(ws)
	if err != nil {
		return err
	}
	for _, path := range updated {
		fmt.Printf("retagged %s\n", path)
	}
	fmt.Printf("%d files retagged\n", len(updated))

	report, err := manifest.Scan(ws)
	if err != nil {
		return err
	}
	return manifest.Save(ws, report)
}
