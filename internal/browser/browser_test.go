package browser

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ fetch.Fetcher = (*Browser)(nil)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless, "headless by default")
	assert.Equal(t, 60*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "en-IN", opts.Locale)
	assert.Equal(t, "en-US,en;q=0.9", opts.AcceptLanguage)
	assert.NotContains(t, opts.ExtraHeaders, "Accept-Language")
}

type fakeNavigator struct {
	calls   int
	err     error
	timeout float64
}

func (f *fakeNavigator) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	f.calls++
	if len(options) > 0 && options[0].Timeout != nil {
		f.timeout = *options[0].Timeout
	}
	return nil, f.err
}

func testBrowser() *Browser {
	return &Browser{opts: DefaultOptions(), logger: slog.Default()}
}

func TestNavigateFailsAfterOneAttempt(t *testing.T) {
	nav := &fakeNavigator{err: errors.New("net::ERR_CONNECTION_RESET")}

	_, err := testBrowser().navigate(context.Background(), nav, "https://www.amazon.in/dp/B0TEST0001")
	require.Error(t, err)
	assert.ErrorIs(t, err, nav.err)
	assert.Equal(t, 1, nav.calls)
}

func TestNavigateUsesContextDeadline(t *testing.T) {
	nav := &fakeNavigator{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := testBrowser().navigate(ctx, nav, "https://www.amazon.in/dp/B0TEST0001")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, 1, nav.calls)
	assert.LessOrEqual(t, nav.timeout, float64(5000))
}
