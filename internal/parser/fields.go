package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	nonPriceChars   = regexp.MustCompile(`[^\d.]`)
	twoDecimalPrice = regexp.MustCompile(`\d+\.\d{2}`)
	nonDigits       = regexp.MustCompile(`[^0-9]`)
	decimalNumber   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	escapedNewline  = regexp.MustCompile(`\\n`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	discountChars   = regexp.MustCompile(`[-%]`)
)

// Currency pairs the symbol shown to users with its ISO code.
type Currency struct {
	Symbol string
	Code   string
}

var DefaultCurrency = Currency{Symbol: "$", Code: "USD"}

var currencies = map[string]Currency{
	"$": {Symbol: "$", Code: "USD"},
	"₹": {Symbol: "₹", Code: "INR"},
	"€": {Symbol: "€", Code: "EUR"},
	"£": {Symbol: "£", Code: "GBP"},
	"¥": {Symbol: "¥", Code: "JPY"},
}

// CleanPrice keeps digits and dots. When the result holds a two-decimal
// amount, the first one wins, so "₹499.00₹599.00" yields "499.00".
func CleanPrice(text string) string {
	clean := nonPriceChars.ReplaceAllString(text, "")
	if clean == "" {
		return ""
	}
	if first := twoDecimalPrice.FindString(clean); first != "" {
		return first
	}
	return clean
}

// ParsePrice converts price text to a number. ok is false when nothing
// numeric could be read or the amount is zero.
func ParsePrice(text string) (float64, bool) {
	clean := CleanPrice(text)
	if clean == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(clean, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// ParseCurrency maps the leading glyph of text to a known currency.
func ParseCurrency(text string) Currency {
	text = strings.TrimSpace(text)
	if text == "" {
		return DefaultCurrency
	}

	r, _ := utf8.DecodeRuneInString(text)
	if c, ok := currencies[string(r)]; ok {
		return c
	}
	return DefaultCurrency
}

// CleanDescription collapses escaped newlines and whitespace runs.
func CleanDescription(text string) string {
	text = escapedNewline.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func parseCount(text string) int {
	digits := nonDigits.ReplaceAllString(text, "")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func parseRating(text string) float64 {
	match := decimalNumber.FindString(strings.Replace(text, ",", ".", 1))
	if match == "" {
		return 0
	}
	rating, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return rating
}

func parseDiscount(text string) float64 {
	text = strings.TrimSpace(discountChars.ReplaceAllString(text, ""))
	if text == "" {
		return 0
	}
	rate, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return rate
}

// dynamicImageURLs returns the keys of a data-a-dynamic-image object in
// document order.
func dynamicImageURLs(raw string) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var urls []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		urls = append(urls, key)
	}

	return urls, nil
}
