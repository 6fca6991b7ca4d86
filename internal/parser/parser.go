package parser

import (
	"github.com/PuerkitoBio/goquery"
)

type Parser interface {
	ParseProductPage(html string) (*Fields, error)
	Parse(doc *goquery.Document) *Fields
}
