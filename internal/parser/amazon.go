package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-tracker/internal/models"
)

const outOfStockText = "currently unavailable"

// Fields holds everything read from a product page before it is assembled
// into a models.Product.
type Fields struct {
	Title               string
	CurrentPrice        float64
	OriginalPrice       float64
	CurrentPriceSource  string
	OriginalPriceSource string
	OutOfStock          bool
	Images              []string
	Currency            Currency
	DiscountRate        float64
	Description         string
	Category            string
	ReviewsCount        int
	Stars               float64
}

type AmazonParser struct {
	currentPrice  Chain
	originalPrice Chain
	images        Chain
	category      Chain
	reviews       Chain
	stars         Chain
	description   []string
}

func NewAmazonParser() *AmazonParser {
	price := Then(FirstTextOf, priceOrEmpty)

	return &AmazonParser{
		currentPrice: Chain{
			{Name: "price-to-pay", Selector: ".priceToPay .a-price-whole", Extract: price},
			{Name: "price-whole", Selector: ".a-price-whole", Extract: price},
			{Name: "color-price", Selector: ".a-size-base.a-color-price", Extract: price},
			{Name: "selected-button", Selector: ".a-button-selected .a-color-base", Extract: price},
			{Name: "offscreen", Selector: ".a-price .a-offscreen", Extract: price},
		},
		originalPrice: Chain{
			{Name: "mrp", Selector: ".a-price.a-text-price .a-offscreen", Extract: price},
			{Name: "list-price", Selector: "#listPrice", Extract: price},
			{Name: "strike", Selector: ".a-text-strike", Extract: price},
			{Name: "our-price", Selector: "#priceblock_ourprice", Extract: price},
			{Name: "deal-price", Selector: "#priceblock_dealprice", Extract: price},
		},
		images: Chain{
			{Name: "front-block", Selector: "#imgBlkFront", Extract: AttrOf("data-a-dynamic-image")},
			{Name: "landing", Selector: "#landingImage", Extract: AttrOf("data-a-dynamic-image")},
		},
		category: Chain{
			{Name: "breadcrumbs", Selector: "#wayfinding-breadcrumbs_container .a-link-normal", Extract: LastTextOf},
			{Name: "nav-image", Selector: ".nav-a-content img", Extract: AttrOf("alt")},
			{Name: "nav-category-image", Selector: ".nav-categ-image", Extract: AttrOf("alt")},
			{Name: "nav-content", Selector: ".nav-a-content"},
			{Name: "subnav", Selector: "#nav-subnav .nav-a-content"},
			{Name: "subheader", Selector: ".a-subheader"},
		},
		reviews: Chain{
			{Name: "review-text", Selector: "#acrCustomerReviewText", Extract: Then(TextOf, digitsOnly)},
			{Name: "reviews-block", Selector: "[data-automation-id='reviews-block'] span", Extract: Then(TextOf, digitsOnly)},
		},
		stars: Chain{
			{Name: "average-reviews", Selector: "#averageCustomerReviews .a-icon-star", Extract: Then(TextOf, ratingOrEmpty)},
			{Name: "reviews-block", Selector: "[data-automation-id='reviews-block'] .a-icon-star", Extract: Then(TextOf, ratingOrEmpty)},
		},
		description: []string{
			".a-unordered-list .a-list-item",
			".a-expander-content p",
		},
	}
}

func (p *AmazonParser) ParseProductPage(html string) (*Fields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return p.Parse(doc), nil
}

func (p *AmazonParser) Parse(doc *goquery.Document) *Fields {
	root := doc.Selection
	fields := &Fields{
		Title:    p.extractTitle(doc),
		Currency: ParseCurrency(doc.Find(".a-price-symbol").First().Text()),
	}

	if m := p.currentPrice.Run(root); m.State == Found {
		fields.CurrentPrice, _ = ParsePrice(m.Value)
		fields.CurrentPriceSource = m.Strategy
	}
	if m := p.originalPrice.Run(root); m.State == Found {
		fields.OriginalPrice, _ = ParsePrice(m.Value)
		fields.OriginalPriceSource = m.Strategy
	}

	fields.OutOfStock = strings.ToLower(strings.TrimSpace(doc.Find("#availability span").Text())) == outOfStockText
	fields.Images = p.extractImages(doc)
	fields.DiscountRate = parseDiscount(doc.Find(".savingsPercentage").Text())
	fields.Description = CleanDescription(p.extractDescription(doc))

	fields.Category = models.DefaultCategory
	if m := p.category.Run(root); m.State == Found {
		fields.Category = m.Value
	}
	if m := p.reviews.Run(root); m.State == Found {
		fields.ReviewsCount = parseCount(m.Value)
	}
	if m := p.stars.Run(root); m.State == Found {
		fields.Stars = parseRating(m.Value)
	}

	return fields
}

func (p *AmazonParser) extractTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("#productTitle").Text())
}

func (p *AmazonParser) extractImages(doc *goquery.Document) []string {
	if m := p.images.Run(doc.Selection); m.State == Found {
		if urls, err := dynamicImageURLs(m.Value); err == nil && len(urls) > 0 {
			return urls
		}
	}

	fallback := FirstAttr(doc, "src", "#landingImage", ".a-dynamic-image")
	if fallback == "" {
		return []string{}
	}
	return []string{fallback}
}

func (p *AmazonParser) extractDescription(doc *goquery.Document) string {
	for _, selector := range p.description {
		elements := doc.Find(selector)
		if elements.Length() == 0 {
			continue
		}

		parts := make([]string, 0, elements.Length())
		elements.Each(func(i int, s *goquery.Selection) {
			parts = append(parts, strings.TrimSpace(s.Text()))
		})
		return strings.Join(parts, "\n")
	}
	return ""
}

// FirstAttr returns the first non-empty attribute value across selectors.
func FirstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, selector := range selectors {
		if value, ok := doc.Find(selector).First().Attr(attr); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func priceOrEmpty(text string) string {
	if _, ok := ParsePrice(text); !ok {
		return ""
	}
	return CleanPrice(text)
}

func digitsOnly(text string) string {
	return nonDigits.ReplaceAllString(text, "")
}

func ratingOrEmpty(text string) string {
	if parseRating(text) <= 0 {
		return ""
	}
	return text
}
