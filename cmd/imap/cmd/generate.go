package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
	"github.com/polytrackmods/PolyDeobfuscated/internal/deobfuscator"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate deobfuscated files from original files and source maps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			d := a.deobfuscator()
			d.OnFile = func(r deobfuscator.FileResult) {
				out := deobfuscator.DisplayPath(filepath.Join(cfg.OutputDirectory, filepath.FromSlash(r.Path)))
				switch r.Status {
				case deobfuscator.StatusGenerated:
					a.out.success("✓ Modified file generated:", out)
				case deobfuscator.StatusCopied:
					a.out.warning("No source maps, copied:", out)
				default:
					a.out.printf("Unchanged: %s\n", pathStyle.Render(out))
				}
			}

			report, err := d.Generate(cmd.Context(), cfg.OriginalDirectory, cfg.SourcemapDirectory, cfg.OutputDirectory)
			a.out.summary(report)
			return err
		},
	}

	cmd.Flags().StringP("original", "o", config.DefaultOriginalDirectory, "Directory containing the original files")
	cmd.Flags().StringP("sourcemap", "s", config.DefaultSourcemapDirectory, "Directory containing the source maps")
	cmd.Flags().StringP("output", "O", config.DefaultOutputDirectory, "Directory to write generated files to")
	cmd.Flags().Bool("allow-unmapped", false, "Copy files without source maps instead of failing")
	return cmd
}
