package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// State is the position of a Chain evaluation.
type State int

const (
	Trying State = iota
	Found
	Exhausted
)

func (s State) String() string {
	switch s {
	case Trying:
		return "trying"
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Extractor pulls a raw value out of the elements matched by a selector.
// An empty result means "try the next strategy".
type Extractor func(sel *goquery.Selection) string

// Strategy is one (selector, extractor) pair of a fallback chain.
type Strategy struct {
	Name     string
	Selector string
	Extract  Extractor
}

// Match is the outcome of running a Chain.
type Match struct {
	Value    string
	Strategy string
	State    State
}

// Chain is an ordered list of strategies, most reliable first.
type Chain []Strategy

// Run evaluates the strategies in order and stops at the first non-empty
// trimmed value. A missing element is not an error.
func (c Chain) Run(root *goquery.Selection) Match {
	m := Match{State: Trying}
	if root == nil {
		m.State = Exhausted
		return m
	}

	for _, s := range c {
		extract := s.Extract
		if extract == nil {
			extract = FirstTextOf
		}

		if value := strings.TrimSpace(extract(root.Find(s.Selector))); value != "" {
			m.Value = value
			m.Strategy = s.Name
			m.State = Found
			return m
		}
	}

	m.State = Exhausted
	return m
}

// FirstText returns the first non-empty trimmed text among already-selected
// candidates.
func FirstText(candidates ...*goquery.Selection) string {
	for _, c := range candidates {
		if c == nil || c.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(c.Text()); text != "" {
			return text
		}
	}
	return ""
}

// FirstTextOf is the text of the first matched element.
func FirstTextOf(sel *goquery.Selection) string {
	return sel.First().Text()
}

// LastTextOf is the text of the last matched element.
func LastTextOf(sel *goquery.Selection) string {
	return sel.Last().Text()
}

// TextOf is the concatenated text of all matched elements.
func TextOf(sel *goquery.Selection) string {
	return sel.Text()
}

// AttrOf reads an attribute from the first matched element.
func AttrOf(name string) Extractor {
	return func(sel *goquery.Selection) string {
		value, _ := sel.First().Attr(name)
		return value
	}
}

// Then post-processes the value of another extractor.
func Then(extract Extractor, fn func(string) string) Extractor {
	return func(sel *goquery.Selection) string {
		return fn(strings.TrimSpace(extract(sel)))
	}
}
