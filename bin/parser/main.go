package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"webindex/pkg/analysis"
	"webindex/pkg/parser"

	"github.com/spf13/cobra"
)

func main() {
	if err := Execute(os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}

// Execute prints how each page record given as argument is parsed and
// tokenized.
func Execute(args []string, out io.Writer) error {
	var stemmer string
	rootCmd := &cobra.Command{
		Use:          "parser <page.json>...",
		Short:        "Show the zones and tokens extracted from page records",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, files []string) error {
			analyzer, err := analysis.NewAnalyzer(stemmer)
			if err != nil {
				return err
			}
			for _, file := range files {
				if err := printDoc(out, analyzer, file); err != nil {
					return err
				}
			}
			return nil
		},
	}
	rootCmd.Flags().StringVar(&stemmer, "stemmer", analysis.DefaultStemmer, "Stemmer: "+strings.Join(analysis.StemmerNames(), ", "))
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func printDoc(out io.Writer, analyzer *analysis.Analyzer, file string) error {
	rawDoc, err := parser.ReadRawDoc(file)
	if err != nil {
		return err
	}
	page := parser.ParsePage(rawDoc.Content)
	tokens := analyzer.Tokenize(page.Phrases()...)

	fmt.Fprintf(out, "url: %s (canonical %s)\n", rawDoc.URL, parser.Defrag(rawDoc.URL))
	page.Fprint(out)
	fmt.Fprintf(out, "tokens: %v\n", tokens)
	fmt.Fprintf(out, "terms: %d\n\n", len(analyzer.Terms(tokens)))
	return nil
}
