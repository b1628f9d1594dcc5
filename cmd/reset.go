package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/facecam/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB     bool
	resetFiles  bool
	resetAssets string
	resetYes    bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Exported Sessions)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetFiles {
			resetDB = true
			resetFiles = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if DB == nil {
				utils.Warn("No database configured, skipping database reset")
			} else if resetYes || confirm(reader, "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		if resetFiles {
			assets := Cfg.AssetsDir
			if cmd.Flags().Changed("assets") {
				assets = resetAssets
			}
			dirs, err := sessionDirs(assets)
			if err != nil {
				utils.Die("Failed to scan assets folder", err, nil)
			}
			if len(dirs) == 0 {
				fmt.Println("No exported sessions found.")
			} else if resetYes || confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete %d exported session folders in %s?", len(dirs), assets)) {
				fmt.Println("🗑️  Clearing Exported Sessions...")
				for _, d := range dirs {
					removeDir(d)
				}
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Clear PostgreSQL database")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Delete exported session folders")
	resetCmd.Flags().StringVarP(&resetAssets, "assets", "a", "assets", "Folder holding the exported sessions")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

// sessionDirs returns the session folders directly under assets. Session
// folders are named with a nanosecond timestamp, so only all-digit names
// qualify and training folders are never touched.
func sessionDirs(assets string) ([]string, error) {
	entries, err := os.ReadDir(assets)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && isSessionID(e.Name()) {
			dirs = append(dirs, filepath.Join(assets, e.Name()))
		}
	}
	return dirs, nil
}

func isSessionID(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
