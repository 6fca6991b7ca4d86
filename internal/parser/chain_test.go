package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestChainReturnsOnlyNonEmptyCandidate(t *testing.T) {
	const n = 5

	chain := make(Chain, n)
	for i := 0; i < n; i++ {
		chain[i] = Strategy{Name: fmt.Sprintf("s%d", i), Selector: fmt.Sprintf("#c%d", i)}
	}

	for pos := 0; pos < n; pos++ {
		t.Run(fmt.Sprintf("position %d", pos), func(t *testing.T) {
			var b strings.Builder
			for i := 0; i < n; i++ {
				text := "   "
				if i == pos {
					text = fmt.Sprintf(" value-%d ", i)
				}
				fmt.Fprintf(&b, `<span id="c%d">%s</span>`, i, text)
			}

			m := chain.Run(mustDoc(t, b.String()).Selection)
			assert.Equal(t, Found, m.State)
			assert.Equal(t, fmt.Sprintf("value-%d", pos), m.Value)
			assert.Equal(t, fmt.Sprintf("s%d", pos), m.Strategy)
		})
	}
}

func TestChainPrefersEarlierStrategy(t *testing.T) {
	chain := Chain{
		{Name: "first", Selector: ".a"},
		{Name: "second", Selector: ".b"},
	}

	m := chain.Run(mustDoc(t, `<i class="b">later</i><i class="a">earlier</i>`).Selection)
	assert.Equal(t, "earlier", m.Value)
	assert.Equal(t, "first", m.Strategy)
}

func TestChainExhausted(t *testing.T) {
	chain := Chain{
		{Name: "missing", Selector: "#missing"},
		{Name: "empty", Selector: "#empty"},
	}

	m := chain.Run(mustDoc(t, `<div id="empty"></div>`).Selection)
	assert.Equal(t, Exhausted, m.State)
	assert.Empty(t, m.Value)
	assert.Empty(t, m.Strategy)

	assert.Equal(t, Exhausted, chain.Run(nil).State)
}

func TestChainAttrAndThen(t *testing.T) {
	chain := Chain{
		{Name: "alt", Selector: "img", Extract: AttrOf("alt")},
		{Name: "upper", Selector: "p", Extract: Then(FirstTextOf, strings.ToUpper)},
	}

	m := chain.Run(mustDoc(t, `<img src="x.png"><p> shoes </p>`).Selection)
	assert.Equal(t, "SHOES", m.Value)
	assert.Equal(t, "upper", m.Strategy)
}

func TestFirstText(t *testing.T) {
	doc := mustDoc(t, `<b class="empty"> </b><b class="full"> hello </b>`)

	assert.Equal(t, "hello", FirstText(nil, doc.Find(".missing"), doc.Find(".empty"), doc.Find(".full")))
	assert.Empty(t, FirstText(doc.Find(".missing")))
	assert.Empty(t, FirstText())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "trying", Trying.String())
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "exhausted", Exhausted.String())
}
