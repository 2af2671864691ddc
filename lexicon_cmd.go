package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/giygas/finddrugs/interfaces"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/validation"
)

func newLexiconCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "lexicon",
		Short: "Show the drug classes and warnings about the drug lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lex, files, err := loadLexicon()
			if err != nil {
				return err
			}
			report := validation.NewDataValidator().ReportLexiconQuality(lex)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Classes []lexicon.Class                  `json:"classes"`
					Quality *interfaces.LexiconQualityReport `json:"quality"`
				}{lex.Classes(), report})
			}
			return printLexicon(cmd.OutOrStdout(), lex, files, report)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the lexicon as JSON")
	return cmd
}

func printLexicon(out io.Writer, lex *lexicon.Lexicon, files []lexicon.ClassFile, report *interfaces.LexiconQualityReport) error {
	paths := make(map[string]string, len(files))
	for _, f := range files {
		paths[f.Name] = f.Path
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tGENERICS\tRANGE\tFILE")
	for _, c := range lex.Classes() {
		fmt.Fprintf(tw, "%s\t%d\t%d-%d\t%s\n", c.Name, len(c.Generics), c.Range.Start, c.Range.End, paths[c.Name])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d generics: %s\n", lex.Len(), strings.Join(lex.FlatList(), ", "))

	if len(report.EmptyClasses) > 0 {
		fmt.Fprintf(out, "\nclasses without generics: %s\n", strings.Join(report.EmptyClasses, ", "))
	}
	printShared(out, "generics in several classes", report.SharedGenerics)
	printShared(out, "brand names shared between generics", report.SharedBrands)
	return nil
}

func printShared(out io.Writer, title string, shared map[string][]string) {
	if len(shared) == 0 {
		return
	}

	fmt.Fprintf(out, "\n%s:\n", title)
	keys := make([]string, 0, len(shared))
	for k := range shared {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %s\n", k, strings.Join(shared[k], ", "))
	}
}
