package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "amazon with slug and tracking",
			input:    "https://www.amazon.in/Sony-WH-1000XM4-Cancelling-Headphones/dp/B0863TXGM3/ref=sr_1_3?keywords=sony&qid=1700000000&sr=8-3",
			expected: "https://www.amazon.in/dp/B0863TXGM3",
		},
		{
			name:     "amazon gp product",
			input:    "https://WWW.Amazon.com/gp/product/b08n5wrwnw?th=1#reviews",
			expected: "https://www.amazon.com/dp/B08N5WRWNW",
		},
		{
			name:     "amazon without asin keeps path",
			input:    "https://www.amazon.in/s?k=headphones",
			expected: "https://www.amazon.in/s",
		},
		{
			name:     "other retailer ref segment",
			input:    "https://shop.example.com/item/123/ref=abc?utm_source=x",
			expected: "https://shop.example.com/item/123",
		},
		{
			name:     "escaped slash stays escaped",
			input:    "https://shop.example.com/item/a%2Fb?utm_source=x",
			expected: "https://shop.example.com/item/a%2Fb",
		},
		{
			name:     "already clean",
			input:    "https://www.amazon.in/dp/B0863TXGM3",
			expected: "https://www.amazon.in/dp/B0863TXGM3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"https://www.amazon.in/Sony-WH-1000XM4/dp/B0863TXGM3/ref=sr_1_3?keywords=sony",
		"https://www.amazon.de/dp/B08N5WRWNW/",
		"https://www.amazon.com/gp/aw/d/B07XJ8C8F5?psc=1",
		"https://shop.example.com/item/123/ref=abc?utm_source=x#top",
		"http://example.org/a/b/c/",
		"https://shop.example.com/item/a%2Fb/ref=abc",
		"https://www.amazon.in/s?k=headphones&ref=nb_sb_noss",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once, err := Normalize(in)
			require.NoError(t, err)
			twice, err := Normalize(once)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "not a url", "/dp/B0863TXGM3", "://broken"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrInvalidURL, in)
	}
}

func TestASIN(t *testing.T) {
	asin, err := ASIN("https://www.amazon.in/Sony/dp/B0863TXGM3/ref=x")
	require.NoError(t, err)
	assert.Equal(t, "B0863TXGM3", asin)

	_, err = ASIN("https://www.amazon.in/s?k=sony")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestIsAmazon(t *testing.T) {
	assert.True(t, IsAmazon("www.amazon.in"))
	assert.True(t, IsAmazon("amazon.com"))
	assert.True(t, IsAmazon("smile.amazon.co.uk:443"))
	assert.False(t, IsAmazon("example.com"))
	assert.False(t, IsAmazon("notamazon.com"))
}
