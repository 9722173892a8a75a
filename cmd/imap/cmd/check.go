package cmd

import (
	"github.com/spf13/cobra"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
)

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check source maps for conflicting identifier mappings",
		Long: `Collect the source maps of every file and fail if two of them rename the
same identifier differently. Identical mappings found in several source
maps are reported once as a warning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			report, err := a.deobfuscator().Check(cmd.Context(), cfg.OriginalDirectory, cfg.SourcemapDirectory)
			if err != nil {
				return err
			}
			a.out.summary(report)
			a.out.printf("%s\n", successStyle.Render("✓ All source maps checked successfully."))
			return nil
		},
	}

	cmd.Flags().StringP("files", "f", config.DefaultOriginalDirectory, "Directory containing the files to check")
	cmd.Flags().StringP("sourcemap", "s", config.DefaultSourcemapDirectory, "Directory containing the source maps")
	cmd.Flags().Bool("allow-unmapped", false, "Skip files without source maps instead of failing")
	return cmd
}
