package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/epiprep/internal/cache"
	"github.com/dgallion1/epiprep/internal/pipeline"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess [file...]",
	Short: "Preprocess Bundle or Composition files",
	Long: `Runs the enabled stages on each file and writes <name>.preprocessed.json
next to the input, or into --out-dir.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPreprocess,
}

var (
	outDir      string
	concurrency int
)

func init() {
	preprocessCmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Directory for output files")
	preprocessCmd.Flags().IntVarP(&concurrency, "concurrency", "j", runtime.NumCPU(), "Files processed in parallel")
	rootCmd.AddCommand(preprocessCmd)
}

type fileReport struct {
	in, out  string
	inBytes  int
	outBytes int
	summary  string
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	opts, err := stageOptions()
	if err != nil {
		return err
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	runner := pipeline.NewRunner(cache.Nop{}, 0, newLogger(cmd), nil)
	reports := make([]fileReport, len(args))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(concurrency, 1))
	for i, path := range args {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			res, err := runner.Run(ctx, data, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			dst := outputPath(path, outDir)
			if err := os.WriteFile(dst, res.Output, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", dst, err)
			}
			reports[i] = fileReport{
				in:       path,
				out:      dst,
				inBytes:  len(data),
				outBytes: len(res.Output),
				summary: fmt.Sprintf("%d compositions, %d fragments optimized, %d annotations removed",
					res.Compositions, res.Stats.FragmentsOptimized, res.Stats.AnnotationsRemoved),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range reports {
		cmd.Printf("%s -> %s (%s -> %s): %s\n", r.in, r.out,
			humanize.Bytes(uint64(r.inBytes)), humanize.Bytes(uint64(r.outBytes)), r.summary)
	}
	return nil
}

// outputPath names the result file for an input.
func outputPath(in, dir string) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ".preprocessed.json"
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, base)
}
