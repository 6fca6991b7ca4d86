package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultCurrency     = "$"
	DefaultCategory     = "category"
	ShoppingCurrency    = "₹"
	ShoppingCategory    = "Tech"
	shoppingPriceSpread = 1000
)

type Product struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	URL           string             `json:"url" bson:"url"`
	GetURL        string             `json:"geturl" bson:"geturl"`
	Currency      string             `json:"currency" bson:"currency"`
	Image         string             `json:"image,omitempty" bson:"image,omitempty"`
	Title         string             `json:"title" bson:"title"`
	CurrentPrice  float64            `json:"currentPrice" bson:"currentPrice"`
	OriginalPrice float64            `json:"originalPrice" bson:"originalPrice"`
	PriceHistory  []PricePoint       `json:"priceHistory" bson:"priceHistory"`
	DiscountRate  float64            `json:"discountRate" bson:"discountRate"`
	Category      string             `json:"category" bson:"category"`
	ReviewsCount  int                `json:"reviewsCount" bson:"reviewsCount"`
	Stars         float64            `json:"stars" bson:"stars"`
	IsOutOfStock  bool               `json:"isOutOfStock" bson:"isOutOfStock"`
	Description   string             `json:"description" bson:"description"`
	LowestPrice   float64            `json:"lowestPrice" bson:"lowestPrice"`
	HighestPrice  float64            `json:"highestPrice" bson:"highestPrice"`
	AveragePrice  float64            `json:"averagePrice" bson:"averagePrice"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PricePoint is one observed price. Entries are appended in observation order.
type PricePoint struct {
	Price float64   `json:"price" bson:"price"`
	Date  time.Time `json:"date" bson:"date"`
}

// ShoppingResult is one item of a shopping search response.
type ShoppingResult struct {
	Position            int      `json:"position"`
	Title               string   `json:"title"`
	Link                string   `json:"link,omitempty"`
	ProductLink         string   `json:"product_link"`
	ProductID           string   `json:"product_id,omitempty"`
	SerpAPIProductAPI   string   `json:"serpapi_product_api,omitempty"`
	Source              string   `json:"source,omitempty"`
	Price               string   `json:"price,omitempty"`
	ExtractedPrice      float64  `json:"extracted_price"`
	SecondHandCondition string   `json:"second_hand_condition,omitempty"`
	Rating              float64  `json:"rating,omitempty"`
	Reviews             int      `json:"reviews,omitempty"`
	Extensions          []string `json:"extensions,omitempty"`
	Thumbnail           string   `json:"thumbnail,omitempty"`
	Delivery            string   `json:"delivery,omitempty"`
}

func NewProduct(url string) *Product {
	return &Product{
		URL:          url,
		Currency:     DefaultCurrency,
		Category:     DefaultCategory,
		PriceHistory: make([]PricePoint, 0),
	}
}

// HasPrice reports whether a price was found anywhere in the fallback chain.
// A zero price means unknown, not free.
func (p *Product) HasPrice() bool {
	return p.CurrentPrice > 0 || p.OriginalPrice > 0
}

// SetPrices applies the symmetric fallback: each side falls back to the other
// when it could not be parsed. Low, high and average start at the current price.
func (p *Product) SetPrices(current, original float64) {
	p.CurrentPrice = firstPositive(current, original)
	p.OriginalPrice = firstPositive(original, current)
	p.LowestPrice = p.CurrentPrice
	p.HighestPrice = p.CurrentPrice
	p.AveragePrice = p.CurrentPrice
}

// FromShoppingResult projects a shopping search item into a Product candidate.
func FromShoppingResult(item ShoppingResult, getURL string) *Product {
	price := item.ExtractedPrice
	return &Product{
		URL:           item.ProductLink,
		GetURL:        getURL,
		Currency:      ShoppingCurrency,
		Image:         item.Thumbnail,
		Title:         item.Title,
		CurrentPrice:  price,
		OriginalPrice: price,
		PriceHistory:  make([]PricePoint, 0),
		DiscountRate:  price + shoppingPriceSpread,
		Category:      ShoppingCategory,
		ReviewsCount:  item.Reviews,
		Stars:         item.Rating,
		IsOutOfStock:  false,
		Description:   item.Title,
		LowestPrice:   price - shoppingPriceSpread,
		HighestPrice:  price + shoppingPriceSpread,
		AveragePrice:  price,
	}
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
