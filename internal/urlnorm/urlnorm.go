// Package urlnorm strips tracking noise from product URLs so they can be
// used as fetch and storage keys.
package urlnorm

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidURL = errors.New("invalid product URL")

var asinPath = regexp.MustCompile(`(?i)/(?:dp|gp/product|gp/aw/d)/([A-Z0-9]{10})(?:[/?]|$)`)

// Normalize returns raw without query, fragment and ref segments. Amazon
// product URLs collapse to scheme://host/dp/<ASIN>. Normalize is idempotent.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)

	if IsAmazon(host) {
		if asin := asinFromPath(u.Path); asin != "" {
			return scheme + "://" + host + "/dp/" + asin, nil
		}
	}

	// Work on the escaped path so %2F stays part of a segment.
	path := u.EscapedPath()
	if i := strings.Index(path, "/ref="); i >= 0 {
		path = path[:i]
	}
	return scheme + "://" + host + path, nil
}

// ASIN extracts the Amazon product identifier from a URL.
func ASIN(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}

	asin := asinFromPath(u.Path)
	if asin == "" {
		return "", ErrInvalidURL
	}
	return asin, nil
}

// IsAmazon reports whether host belongs to an Amazon storefront.
func IsAmazon(host string) bool {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host == "amazon.com" || strings.HasPrefix(host, "amazon.") ||
		strings.Contains(host, ".amazon.") || host == "amzn.in"
}

func asinFromPath(path string) string {
	m := asinPath.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
