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

	"github.com/spf13/cobra"

	"arkapply/internal/checksum"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <file>...",
	Short: "Print the clean fingerprint of files",
	Long: `Print the canonical fingerprint of each file: the SHA-256 of its
content with BOM, line-ending differences and any embedded integrity tag
factored out. A missing file reports the empty-content fingerprint.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChecksum,
}

func init() {
	rootCmd.AddCommand(checksumCmd)
}

func runChecksum(cmd *cobra.Command, args []string) error {
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("%s  %s\n", checksum.EmptyFingerprint, path)
				continue
			}
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		fmt.Printf("%s  %s\n", checksum.Fingerprint(data), path)
	}
	return nil
}
