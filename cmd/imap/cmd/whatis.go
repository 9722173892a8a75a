package cmd

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
	"github.com/polytrackmods/PolyDeobfuscated/internal/store"
)

type match struct {
	artifact string
	mapping  mapping.Mapping
}

func newWhatisCmd(a *app) *cobra.Command {
	var (
		scopeID int
		kind    string
	)
	cmd := &cobra.Command{
		Use:   "whatis <file> <name>",
		Short: "Looks up the mappings of a name in the source maps of a file",
		Long: `Loads the source maps that apply to <file>, a path relative to the original
directory, and lists every mapping whose original or new name is <name>.

Use --scope to limit the search to one scope id and --kind to one
declaration kind (variable, function, class, method, property, ...).`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if kind != "" && !validKind(mapping.DeclarationKind(kind)) {
				return fmt.Errorf("unknown declaration kind: %s", kind)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, name := args[0], args[1]
			cfg := a.cfg

			st := store.New(cfg.SourcemapDirectory, store.WithExtension(cfg.ArtifactExtension))
			artifacts, err := st.Matching(cmd.Context(), rel)
			if err != nil {
				return err
			}

			var found []match
			for _, artifact := range artifacts {
				for _, m := range artifact.Mappings {
					if m.Original.Name != name && m.Modified.Name != name {
						continue
					}
					if cmd.Flags().Changed("scope") && m.Original.ScopeID != scopeID {
						continue
					}
					if kind != "" && string(m.DeclarationKind) != kind {
						continue
					}
					found = append(found, match{artifact: artifact.Path, mapping: m})
				}
			}
			if len(found) == 0 {
				return fmt.Errorf("name '%s' not found in the source maps of %s", name, rel)
			}

			// results are the point of this command, so they ignore --silent
			fmt.Fprint(cmd.OutOrStdout(), renderMatches(found))
			return nil
		},
	}

	cmd.Flags().StringP("sourcemap", "s", config.DefaultSourcemapDirectory, "Directory containing the source maps")
	cmd.Flags().IntVar(&scopeID, "scope", 0, "Only match identifiers of this scope id")
	cmd.Flags().StringVar(&kind, "kind", "", "Only match this declaration kind")
	return cmd
}

func validKind(kind mapping.DeclarationKind) bool {
	for _, k := range mapping.AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func renderMatches(found []match) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Original", "Renamed", "Scope", "Kind", "Source map"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})
	for _, f := range found {
		table.Append([]string{
			f.mapping.Original.Name,
			f.mapping.Modified.Name,
			strconv.Itoa(f.mapping.Original.ScopeID),
			string(f.mapping.DeclarationKind),
			f.artifact,
		})
	}
	table.Render()

	return tableBuffer.String()
}
