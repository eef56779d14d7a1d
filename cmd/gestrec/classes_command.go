package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gestrec/internal/dataset"
)

func newClassesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the class catalog the model trains against",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			catalog, err := dataset.LoadCatalog(cfg.Paths.ClassFile, cfg.Pipeline.MaxClasses)
			if err != nil {
				return err
			}

			classes := catalog.Classes()
			if jsonOutput {
				type classRow struct {
					Index int    `json:"index"`
					ID    string `json:"id"`
					Name  string `json:"name"`
				}
				rows := make([]classRow, 0, len(classes))
				for i, class := range classes {
					rows = append(rows, classRow{Index: i, ID: class.ID, Name: classDisplayName(class)})
				}
				return writeJSON(cmd, rows)
			}

			rows := make([][]string, 0, len(classes))
			for i, class := range classes {
				rows = append(rows, []string{
					strconv.Itoa(i),
					class.ID,
					classDisplayName(class),
				})
			}
			table := renderTable([]string{"Index", "ID", "Name"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
			fmt.Fprintln(cmd.OutOrStdout(), table)
			fmt.Fprintf(cmd.OutOrStdout(), "%d classes\n", len(classes))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit classes as JSON")
	return cmd
}

// classDisplayName prefers the catalog name and falls back to a
// title-cased form of the class ID (underscores become spaces).
func classDisplayName(class dataset.Class) string {
	if class.Name != "" {
		return class.Name
	}
	cleaned := strings.ReplaceAll(class.ID, "_", " ")
	return cases.Title(language.Und).String(cleaned)
}
