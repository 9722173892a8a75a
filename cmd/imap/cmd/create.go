package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
	"github.com/polytrackmods/PolyDeobfuscated/internal/deobfuscator"
)

func newCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create or extend source maps from original and deobfuscated files",
		Long: `Compare every file of the original tree with the file at the same path in
the deobfuscated tree and append the identifier renames to the source maps
under <sourcemap>/<name>. Existing mappings are never changed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			cfg := a.cfg
			root := deobfuscator.MappingRoot(cfg.SourcemapDirectory, name)

			d := a.deobfuscator()
			d.OnFile = func(r deobfuscator.FileResult) {
				switch r.Status {
				case deobfuscator.StatusCreated, deobfuscator.StatusUpdated:
					a.out.success(fmt.Sprintf("✓ Source map updated (%d new):", r.Added), location(root, r.Artifacts[0]))
				default:
					a.out.warning("No changes found for", r.Path)
				}
				if r.Mismatch != "" {
					a.out.warning("Regenerated file differs from the deobfuscated file:", r.Path)
					a.out.diff(r.Mismatch)
				}
			}

			report, err := d.CreateSet(cmd.Context(), cfg.OriginalDirectory, cfg.ModifiedDirectory, cfg.SourcemapDirectory, name)
			a.out.summary(report)
			return err
		},
	}

	cmd.Flags().StringP("original", "o", config.DefaultOriginalDirectory, "Directory containing the original files")
	cmd.Flags().StringP("modified", "m", config.DefaultModifiedDirectory, "Directory containing the deobfuscated files")
	cmd.Flags().StringP("sourcemap", "s", config.DefaultSourcemapDirectory, "Directory to store the source maps in")
	cmd.Flags().Bool("verify", true, "Regenerate each deobfuscated file and report differences")
	return cmd
}
