// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"castoff/internal/config"

	"github.com/spf13/cobra"
)

var (
	initForce bool

	// initCmd creates a starter castoff.toml
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a castoff.toml in the current directory",
		Long: `Create a starter castoff.toml in the current directory,
pre-filled with the package name and sensible defaults.`,
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing castoff.toml")
}

func runInit(cmd *cobra.Command, args []string) error {
	filename := config.ConfigFileName
	if len(args) > 0 {
		filename = args[0]
	}

	if _, err := os.Stat(filename); err == nil && !initForce {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename)
	}

	starter := config.DefaultConfig()
	if cwd, err := os.Getwd(); err == nil {
		starter.Name = filepath.Base(cwd)
	}
	starter.Files = []string{"package.json"}

	if err := os.WriteFile(filename, []byte(config.GenerateTOML(starter)), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Adjust files, hooks and gates in castoff.toml")
	fmt.Println("  2. Export GITHUB_TOKEN")
	fmt.Println("  3. Run 'castoff release patch'")

	return nil
}
