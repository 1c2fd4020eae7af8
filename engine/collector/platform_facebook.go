package collector

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// platformFacebook adapts the mobile site's post search. The m-dot
// markup is flat server-rendered HTML and survives scraping far better
// than the desktop client's React shell.
type platformFacebook struct{}

// PlatformFacebook returns the facebook adapter.
func PlatformFacebook() Platform { return platformFacebook{} }

func (platformFacebook) Name() string    { return "facebook" }
func (platformFacebook) BaseURL() string { return "https://m.facebook.com" }

func (platformFacebook) SearchURL(keyword string) string {
	return "https://m.facebook.com/search/posts/?q=" + url.QueryEscape(keyword)
}

// WindowedSearchURL falls back to the live search: mobile post search
// has no date operators, so backfills cannot be bounded per window.
func (p platformFacebook) WindowedSearchURL(keyword string, _ Window) string {
	return p.SearchURL(keyword)
}

func (platformFacebook) ContentSelector() string { return "article, div[data-ft]" }

func (platformFacebook) LoginWall(pageURL string) bool {
	return strings.Contains(pageURL, "login") || strings.Contains(pageURL, "checkpoint")
}

func (platformFacebook) ChallengeProbe() string {
	return `document.querySelectorAll('iframe[src*="captcha"], iframe[src*="challenge"]').length > 0`
}

func (platformFacebook) RetryProbe() string {
	return `(() => {
	const el = [...document.querySelectorAll('a, span, button')].find(s => /^(retry|try again)$/i.test(s.textContent.trim()));
	if (!el) return false;
	el.click();
	return true;
})()`
}

func (platformFacebook) Extract(html string) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("collector: parse facebook page: %w", err)
	}

	cards := doc.Find("article")
	if cards.Length() == 0 {
		cards = doc.Find("div[data-ft]")
	}

	var records []Record
	cards.Each(func(_ int, card *goquery.Selection) {
		text := strings.TrimSpace(card.Find("p").Text())
		if text == "" {
			return
		}
		rec := Record{Text: text}
		if author := strings.TrimSpace(card.Find("h3 a, strong a, header a").First().Text()); author != "" {
			rec.Author = Field{Value: author, Found: true}
		}
		// The mobile site only exposes relative times ("2 hrs ago");
		// kept raw, parsing falls through to scrape time downstream.
		if ts := strings.TrimSpace(card.Find("abbr").First().Text()); ts != "" {
			rec.PostedAt = Field{Value: ts, Found: true}
		}
		records = append(records, rec)
	})
	return records, nil
}
