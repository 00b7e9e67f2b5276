package parser

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
)

const (
	TitleRepeat   = 3
	HeadingRepeat = 2
	BoldRepeat    = 1

	MinParagraphs = 2
	MinWords      = 200
)

var (
	stripPolicy = bluemonday.StripTagsPolicy().AddSpaceWhenStrippingTag(true)
	wordPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)
)

// Containers whose text is ignored when judging page quality.
var boilerplateTags = map[string]bool{
	"nav":      true,
	"footer":   true,
	"header":   true,
	"aside":    true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

var paragraphTags = map[string]bool{
	"p":          true,
	"pre":        true,
	"blockquote": true,
}

// Page is the text of a page split into importance zones.
type Page struct {
	Text       string
	Title      []string
	Headings   []string
	Bold       []string
	Paragraphs int
	Words      int
}

func ParsePage(content string) Page {
	page := ExtractZones(content)
	page.Text = Sanitize(content)
	return page
}

func (p Page) HasContent() bool {
	return strings.TrimSpace(p.Text) != "" || len(p.Title) > 0
}

// Thin reports pages with at most one paragraph and fewer than MinWords words
// outside boilerplate containers.
func (p Page) Thin() bool {
	return p.Paragraphs < MinParagraphs && p.Words < MinWords
}

// Phrases returns the text to tokenize. Zone text is repeated so that the
// term frequency of important words grows with the zone's weight. Text lacks
// the title, so the title gets its base copy here before the repeats.
func (p Page) Phrases() []string {
	phrases := append([]string{p.Text}, p.Title...)
	for _, b := range p.Bold {
		phrases = appendRepeat(phrases, b, BoldRepeat)
	}
	for _, h := range p.Headings {
		phrases = appendRepeat(phrases, h, HeadingRepeat)
	}
	for _, t := range p.Title {
		phrases = appendRepeat(phrases, t, TitleRepeat)
	}
	return phrases
}

func (p Page) Fprint(w io.Writer) {
	fmt.Fprintf(w, "text: %q\n", p.Text)
	fmt.Fprintf(w, "title: %v\n", p.Title)
	fmt.Fprintf(w, "headings: %v\n", p.Headings)
	fmt.Fprintf(w, "bold: %v\n", p.Bold)
	fmt.Fprintf(w, "paragraphs: %d words: %d thin: %v\n", p.Paragraphs, p.Words, p.Thin())
}

func appendRepeat(list []string, s string, n int) []string {
	for range n {
		list = append(list, s)
	}
	return list
}

// Sanitize strips all markup and returns the unescaped plain text.
func Sanitize(s string) string {
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

func ExtractZones(s string) Page {
	var page Page
	doc, err := xhtml.Parse(strings.NewReader(s))
	if err != nil {
		return page
	}

	var crawl func(node *xhtml.Node, boilerplate bool)
	crawl = func(node *xhtml.Node, boilerplate bool) {
		switch node.Type {
		case xhtml.TextNode:
			if !boilerplate {
				page.Words += len(wordPattern.FindAllStringIndex(node.Data, -1))
			}
			return
		case xhtml.ElementNode:
			tag := node.Data
			switch {
			case tag == "title":
				if len(page.Title) == 0 {
					page.Title = appendText(page.Title, node)
				}
				return
			case isHeading(tag):
				page.Headings = appendText(page.Headings, node)
			case tag == "b" || tag == "strong":
				page.Bold = appendText(page.Bold, node)
			}
			if boilerplateTags[tag] {
				boilerplate = true
			}
			if paragraphTags[tag] && !boilerplate {
				page.Paragraphs++
			}
		}

		for c := node.FirstChild; c != nil; c = c.NextSibling {
			crawl(c, boilerplate)
		}
	}

	crawl(doc, false)
	return page
}

func isHeading(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

func appendText(list []string, node *xhtml.Node) []string {
	text := strings.Join(strings.Fields(nodeText(node)), " ")
	if text == "" {
		return list
	}
	return append(list, text)
}

func nodeText(node *xhtml.Node) string {
	var sb strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == xhtml.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return sb.String()
}
