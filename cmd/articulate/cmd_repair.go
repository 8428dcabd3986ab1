package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"articulate/internal/format"
	"articulate/internal/meshrepair"
	"articulate/internal/report"
)

var repairFlags struct {
	markdown bool
}

var repairCmd = &cobra.Command{
	Use:   "repair <path>...",
	Short: "Repair OBJ meshes in place, keeping .bak backups",
	Long: `Run the repair passes (syntax, vertex dedup, winding, degenerate faces,
thin geometry) over the given OBJ files or directories. The first repair
that changes a mesh keeps the original as <name>.obj.bak; meshes that
cannot be parsed are reported and left untouched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().BoolVar(&repairFlags.markdown, "markdown", false, "Render the report as Markdown")
}

func runRepair(_ *cobra.Command, args []string) error {
	var paths []string
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if !st.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".obj") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no OBJ files found")
	}

	engine := meshrepair.NewEngine(meshrepair.Config{})
	var reports []*meshrepair.Report
	for _, path := range paths {
		rep, err := engine.RepairFile(path)
		if err != nil {
			var pe *meshrepair.ParseError
			if errors.As(err, &pe) {
				reports = append(reports, rep)
				continue
			}
			return err
		}
		reports = append(reports, rep)
	}

	mode := format.ASCII
	if repairFlags.markdown {
		mode = format.Markdown
	}
	fmt.Println(report.Repairs(reports, mode))
	return nil
}
