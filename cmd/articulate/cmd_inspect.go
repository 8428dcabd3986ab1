package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"articulate/internal/format"
	"articulate/internal/kintree"
	"articulate/internal/object"
	"articulate/internal/report"
)

var inspectFlags struct {
	markdown bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Validate an object description and print its kinematic tree",
	Long: `Load an object description (a directory containing object.yaml/object.json,
or the file itself), build the kinematic tree and print it: one link per
row with depth, inbound joint and accumulated position. Nothing is written;
structural problems are reported as errors.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFlags.markdown, "markdown", false, "Render the tree as Markdown")
}

func runInspect(_ *cobra.Command, args []string) error {
	path := args[0]
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		found, err := object.FindDescription(path)
		if err != nil {
			return err
		}
		path = found
	}

	desc, err := object.LoadFromPath(path)
	if err != nil {
		return err
	}
	tree, err := kintree.Build(desc)
	if err != nil {
		return err
	}

	mode := format.ASCII
	if inspectFlags.markdown {
		mode = format.Markdown
	}
	fmt.Printf("%s: %d links, %d joints, root %q\n", tree.Name, tree.LinkCount(), len(tree.Edges), tree.Root)
	fmt.Println(report.Tree(tree, mode))
	return nil
}
