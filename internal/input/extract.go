package input

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var wordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9]{3,15}`)

// Tags whose text content never yields useful candidate words.
var skipTags = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "svg": {},
}

// ExtractWordsFromHTML parses an HTML document and returns candidate words
// found in its visible text, upper-cased and deduplicated.
func ExtractWordsFromHTML(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skipTags[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return ExtractWords(sb.String()), nil
}

// ExtractWords pulls candidate words out of raw text (e.g. a browser paste),
// upper-cased and deduplicated, preserving first-seen order.
func ExtractWords(text string) []string {
	seen := make(map[string]struct{})
	var words []string
	for _, match := range wordPattern.FindAllString(text, -1) {
		word := strings.ToUpper(match)
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words
}

// GeneratePatterns expands extracted words into voucher-shaped patterns.
// With variations enabled, each word also gets common promotional suffixes
// and current/adjacent year suffixes appended.
func GeneratePatterns(words []string, includeVariations bool) []string {
	year := time.Now().Year()
	suffixes := []string{
		"FREE", "GUEST", "VIP", "PASS",
		fmt.Sprintf("%d", year),
		fmt.Sprintf("%d", year%100),
	}

	seen := make(map[string]struct{})
	var patterns []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		patterns = append(patterns, p)
	}

	for _, word := range words {
		add(word)
		if !includeVariations {
			continue
		}
		for _, suffix := range suffixes {
			add(word + suffix)
		}
	}
	sort.Strings(patterns)
	return patterns
}
