package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints v as two-space indented JSON on the command's stdout so
// --json output pipes cleanly into jq.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
