package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/verdict/internal/framework"
)

var (
	frameworkID         string
	frameworkJSONOutput bool
)

var frameworkCmd = &cobra.Command{
	Use:   "framework",
	Short: "Print the decision framework's steps",
	Args:  cobra.NoArgs,
	RunE:  runFramework,
}

func init() {
	frameworkCmd.Flags().StringVar(&frameworkID, "id", "", "Framework ID (default: the personal framework)")
	frameworkCmd.Flags().BoolVar(&frameworkJSONOutput, "json", false, "Output in JSON format")
}

func runFramework(cmd *cobra.Command, args []string) error {
	fw, err := framework.Lookup(frameworkID)
	if err != nil {
		return err
	}
	if frameworkJSONOutput {
		return printJSON(cmd.OutOrStdout(), fw)
	}
	renderFramework(cmd.OutOrStdout(), fw)
	return nil
}

func renderFramework(w io.Writer, fw *framework.Framework) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(fw.Name + " (v" + fw.Version + ")")
	tw.AppendHeader(table.Row{"#", "Step", "Fields"})
	for i, step := range fw.Steps {
		names := make([]string, len(step.Fields))
		for j, f := range step.Fields {
			names[j] = f.Name + " (" + string(f.Type) + ")"
		}
		tw.AppendRow(table.Row{i, step.Title, strings.Join(names, "\n")})
	}
	tw.Render()
}

// printJSON marshals v to indented JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
