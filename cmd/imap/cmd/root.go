// Package cmd implements the command line interface for imap.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
	"github.com/polytrackmods/PolyDeobfuscated/internal/deobfuscator"
)

// flagKeys maps command line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"silent":         "silent",
	"verbose":        "log.verbose",
	"log-file":       "log.filename",
	"original":       "original_directory",
	"modified":       "modified_directory",
	"files":          "original_directory",
	"sourcemap":      "sourcemap_directory",
	"output":         "output_directory",
	"verify":         "verify",
	"allow-unmapped": "allow_unmapped",
}

// app holds the state of one command line invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	out     *console
	logs    io.Closer
}

const rootLongDescription = `imap maps the identifiers of obfuscated JavaScript and TypeScript
to the names chosen in a hand-deobfuscated copy.

  create    derive mappings from original and deobfuscated trees
  check     look for conflicting mappings between source map sets
  generate  apply the mappings to a new obfuscated build
  whatis    look up the mappings of one name`

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "imap",
		Short:         "Identifier mapping tool for deobfuscating JavaScript/TypeScript",
		Long:          rootLongDescription,
		SilenceErrors: true,
		SilenceUsage:  true,
		// Load configuration before any subcommand runs; flags explicitly set
		// on the command line win over the file and the environment.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./"+config.DefaultConfigName+")")
	rootCmd.PersistentFlags().Bool("silent", false, "Suppress informational output (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level (overrides config)")
	rootCmd.PersistentFlags().String("log-file", defaultLogFilename, "Log file path (overrides config)")

	rootCmd.AddCommand(newCreateCmd(a))
	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newGenerateCmd(a))
	rootCmd.AddCommand(newWhatisCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	v := config.NewViper()
	var bindErr error
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if key, ok := flagKeys[flag.Name]; ok && bindErr == nil {
			bindErr = bindFlagToConfig(v, flag, key)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	cfg, err := config.LoadConfigWith(v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg
	a.out.silent = cfg.Silent
	a.logs = configureLogger(cfg.Log)
	return nil
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(v *viper.Viper, flag *pflag.Flag, key string) error {
	if err := v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("binding flag %q to %q: %w", flag.Name, key, err)
	}
	return nil
}

func (a *app) deobfuscator() *deobfuscator.Deobfuscator {
	d := deobfuscator.New(a.cfg)
	d.OnDuplicate = a.out.duplicate
	return d
}

func (a *app) close() {
	if a.logs != nil {
		a.logs.Close()
		a.logs = nil
	}
}

// run executes the command line args and returns the command's error after
// printing it to stderr.
func run(args []string, stdout, stderr io.Writer) error {
	a := &app{out: &console{out: stdout, err: stderr}}
	defer a.close()

	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		a.out.failure(err)
		return err
	}
	return nil
}

// Execute runs the command line and exits non-zero on any error.
// This is called by main.main().
func Execute() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
