package collector

import "fmt"

// Platform abstracts everything site-specific: URLs, selectors,
// challenge probes, and record extraction. The session and collect loop
// never touch a selector directly, so markup churn stays inside one
// adapter file per site.
type Platform interface {
	// Name identifies the platform in logs, posts, and job results.
	Name() string

	// BaseURL is loaded before cookie injection so the browser accepts
	// the bundle's domain.
	BaseURL() string

	// SearchURL builds the live search for a keyword.
	SearchURL(keyword string) string

	// WindowedSearchURL bounds the search to one date window. Platforms
	// without date operators fall back to the live search.
	WindowedSearchURL(keyword string, w Window) string

	// ContentSelector is awaited after navigation before collection
	// starts.
	ContentSelector() string

	// LoginWall reports whether a post-navigation URL is the sign-in
	// gate.
	LoginWall(pageURL string) bool

	// ChallengeProbe is a JS expression, true when a challenge frame is
	// hosted on the page.
	ChallengeProbe() string

	// RetryProbe is a JS expression that locates the feed's manual
	// retry widget, nudges it, and reports whether it was showing.
	RetryProbe() string

	// Extract parses rendered page HTML into records. Containers with
	// no analyzable text are dropped; other missing parts come back as
	// Field{Found: false}.
	Extract(html string) ([]Record, error)
}

// ByName returns the adapter for a platform name.
func ByName(name string) (Platform, error) {
	switch name {
	case "x":
		return PlatformX(), nil
	case "facebook":
		return PlatformFacebook(), nil
	}
	return nil, fmt.Errorf("collector: unknown platform %q", name)
}
