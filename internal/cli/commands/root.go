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
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"arkapply/internal/workspace"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootDir is the --root persistent flag value.
var rootDir string

func init() {
	// Logging stays off until a workspace config enables it.
	logrus.SetOutput(io.Discard)

	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "workspace root directory")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("arkapply version {{.Version}}\n")
}

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		return fmt.Sprintf("%s (%s, commit: %s)", version, buildDate, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

var rootCmd = &cobra.Command{
	Use:   "arkapply",
	Short: "Transactional batch modifications for a file tree",
	Long: `Applies ordered batches of declarative file modifications with
fingerprint preconditions, automatic backups, integrity tagging and
all-or-nothing rollback. Every run leaves a machine-readable receipt.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// openWorkspace opens the workspace at --root and wires logging per its
// config: appended to a file under the control directory, or discarded
// when the configured level is "off".
func openWorkspace() (*workspace.Workspace, error) {
	ws, err := workspace.Open(rootDir)
	if err != nil {
		return nil, err
	}
	configureLogging(ws)
	return ws, nil
}

func configureLogging(ws *workspace.Workspace) {
	level := strings.ToLower(ws.Config.LogLevel)
	if level == "" || level == "off" {
		logrus.SetOutput(io.Discard)
		return
	}

	if err := os.MkdirAll(ws.LogDir(), 0755); err != nil {
		return
	}
	logFile, err := os.OpenFile(filepath.Join(ws.LogDir(), "arkapply.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	logrus.SetOutput(logFile)

	switch level {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	default:
		logrus.SetLevel(logrus.DebugLevel)
	}
}
