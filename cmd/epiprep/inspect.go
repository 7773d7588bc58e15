package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/epiprep/internal/annotation"
	"github.com/dgallion1/epiprep/internal/bundle"
	"github.com/dgallion1/epiprep/internal/doctree"
	"github.com/dgallion1/epiprep/internal/markup"
)

var errInvalid = errors.New("candidate does not preserve the original content")

var classesCmd = &cobra.Command{
	Use:   "classes [file]",
	Short: "List the classes used in each composition's narrative",
	Args:  cobra.ExactArgs(1),
	RunE:  runClasses,
}

var linksCmd = &cobra.Command{
	Use:   "links [file]",
	Short: "List HtmlElementLink annotations and whether they match",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinks,
}

var validateCmd = &cobra.Command{
	Use:   "validate [original] [candidate]",
	Short: "Check that two markup fragments carry the same content",
	Long: `Compares the text of two fragment files. Whitespace between tags counts
as one space. Exits non-zero when they differ or either fragment cannot be
parsed.`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(validateCmd)
}

func loadCompositions(path string) ([]*doctree.Composition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := bundle.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc.Compositions(), nil
}

func compositionLabel(c *doctree.Composition, i int) string {
	switch {
	case c.ID != "" && c.Title != "":
		return fmt.Sprintf("%s (%s)", c.ID, c.Title)
	case c.ID != "":
		return c.ID
	}
	return fmt.Sprintf("composition #%d", i+1)
}

func runClasses(cmd *cobra.Command, args []string) error {
	comps, err := loadCompositions(args[0])
	if err != nil {
		return err
	}
	for i, c := range comps {
		classes, malformed := annotation.CollectClasses(c)
		cmd.Printf("%s:\n", compositionLabel(c, i))
		for _, cls := range classes.Sorted() {
			cmd.Printf("  %s\n", cls)
		}
		if malformed > 0 {
			cmd.Printf("  (%d malformed fragments skipped)\n", malformed)
		}
	}
	return nil
}

func runLinks(cmd *cobra.Command, args []string) error {
	comps, err := loadCompositions(args[0])
	if err != nil {
		return err
	}
	for i, c := range comps {
		classes, _ := annotation.CollectClasses(c)
		links := annotation.List(c)
		cmd.Printf("%s: %d links\n", compositionLabel(c, i), len(links))
		for _, a := range links {
			state := "unused"
			if classes.Has(a.ElementClass) {
				state = "used"
			}
			codes := make([]string, 0, len(a.Concept))
			for _, cd := range a.Concept {
				codes = append(codes, cd.System+"|"+cd.Code)
			}
			cmd.Printf("  %-24s %-6s %s\n", a.ElementClass, state, strings.Join(codes, ", "))
		}
		if u := annotation.Analyze(c, classes); len(u.Unlinked) > 0 {
			cmd.Printf("  unlinked classes: %s\n", strings.Join(u.Unlinked, ", "))
		}
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	original, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	candidate, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	if !markup.Validate(string(original), string(candidate)) {
		return errInvalid
	}
	cmd.Println("ok")
	return nil
}
