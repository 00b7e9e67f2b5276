package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"
)

const (
	exitCommand    = ":q"
	maxSuggestions = 8
)

// Run starts an interactive prompt printing the top k results of every query.
func (eg *Engine) Run(k int) {
	executor := func(line string) {
		eg.handleQuery(os.Stdout, line, k)
	}
	completer := func(d prompt.Document) []prompt.Suggest {
		word := d.GetWordBeforeCursor()
		suggests := []prompt.Suggest{}
		for _, term := range eg.Complete(word, maxSuggestions) {
			suggests = append(suggests, prompt.Suggest{Text: term})
		}
		return suggests
	}

	p := prompt.New(
		executor,
		completer,
		prompt.OptionPrefix("search> "),
		prompt.OptionTitle("webindex"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && strings.TrimSpace(in) == exitCommand
		}),
	)
	fmt.Printf("Type a query, %s to quit.\n", exitCommand)
	p.Run()
}

func (eg *Engine) handleQuery(w io.Writer, line string, k int) {
	line = strings.TrimSpace(line)
	if line == "" || line == exitCommand {
		return
	}

	result, err := eg.Search(context.Background(), line, k)
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	PrintResult(w, result)
}

// PrintResult writes one line per result followed by the elapsed time.
func PrintResult(w io.Writer, result *SearchResult) {
	if result.NoMatch() {
		fmt.Fprintf(w, "No match for %s\n", strings.Join(result.MissedTerms, ", "))
	}
	for i, res := range result.Results {
		fmt.Fprintf(w, "%d) %d %s %f\n", i+1, res.DocID, res.URL, res.Score)
	}
	if result.Truncated {
		fmt.Fprintln(w, "(scoring cut short by timeout)")
	}
	fmt.Fprintf(w, "Total time: %v\n\n", result.Elapsed)
}
