package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/epiprep/internal/config"
	"github.com/dgallion1/epiprep/internal/preprocess"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "epiprep",
	Short: "Preprocess FHIR ePI documents",
	Long: `Optimizes narrative markup, drops HtmlElementLink annotations that no
longer match a class in the narrative, and optionally strips inline styles.
Stage defaults come from the environment and EPIPREP_CONFIG.`,
	SilenceUsage: true,
}

var (
	optimizeFlag  string
	reconcileFlag string
	cleanupFlag   string
	verbose       bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("epiprep version %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&optimizeFlag, "optimize", "", "Override markup optimization (true/false)")
	pf.StringVar(&reconcileFlag, "reconcile", "", "Override annotation reconciliation (true/false)")
	pf.StringVar(&cleanupFlag, "cleanup", "", "Override style cleanup (true/false)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log each stage to stderr")

	rootCmd.AddCommand(versionCmd)
}

// stageOptions resolves the configured stages and applies flag overrides.
func stageOptions() (preprocess.Options, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return preprocess.Options{}, err
	}
	opts := cfg.PreprocessOptions()
	for _, o := range []struct {
		name string
		val  string
		dst  *bool
	}{
		{"optimize", optimizeFlag, &opts.OptimizeMarkup},
		{"reconcile", reconcileFlag, &opts.ReconcileAnnotations},
		{"cleanup", cleanupFlag, &opts.CleanupStyles},
	} {
		if o.val == "" {
			continue
		}
		b, err := config.ParseFlag(o.val)
		if err != nil {
			return opts, fmt.Errorf("--%s: %w", o.name, err)
		}
		*o.dst = b
	}
	return opts, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
