package collector

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// platformX adapts x.com live search. Selectors follow the current web
// client: post containers are article[data-testid="tweet"], the body is
// div[data-testid="tweetText"], and the timestamp rides the <time>
// element's datetime attribute.
type platformX struct{}

// PlatformX returns the x.com adapter.
func PlatformX() Platform { return platformX{} }

func (platformX) Name() string    { return "x" }
func (platformX) BaseURL() string { return "https://x.com" }

func (platformX) SearchURL(keyword string) string {
	return "https://x.com/search?q=" + url.QueryEscape(keyword) + "&f=live"
}

// WindowedSearchURL uses the since:/until: search operators, which
// bound results to [Since, Until) by calendar day.
func (platformX) WindowedSearchURL(keyword string, w Window) string {
	q := fmt.Sprintf("%s since:%s until:%s",
		keyword, w.Since.Format("2006-01-02"), w.Until.Format("2006-01-02"))
	return "https://x.com/search?q=" + url.QueryEscape(q) + "&f=live"
}

func (platformX) ContentSelector() string { return "article" }

func (platformX) LoginWall(pageURL string) bool {
	return strings.Contains(pageURL, "/login") || strings.Contains(pageURL, "/i/flow/")
}

func (platformX) ChallengeProbe() string {
	return `document.querySelectorAll('iframe[src*="captcha"], iframe[src*="challenge"], iframe[src*="arkose"]').length > 0`
}

// RetryProbe clicks the stalled feed's Retry button as a side effect of
// probing for it, which is the nudge that usually unsticks the
// timeline.
func (platformX) RetryProbe() string {
	return `(() => {
	const span = [...document.querySelectorAll('span')].find(s => s.textContent.trim() === 'Retry');
	if (!span) return false;
	(span.closest('[role="button"]') || span).click();
	return true;
})()`
}

func (platformX) Extract(html string) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("collector: parse x page: %w", err)
	}

	cards := doc.Find(`article[data-testid="tweet"]`)
	if cards.Length() == 0 {
		cards = doc.Find("article")
	}

	var records []Record
	cards.Each(func(_ int, card *goquery.Selection) {
		text := strings.TrimSpace(card.Find(`div[data-testid="tweetText"]`).First().Text())
		if text == "" {
			// Promoted cards and placeholders render without a body.
			return
		}
		rec := Record{Text: text}
		if author := xAuthor(card); author != "" {
			rec.Author = Field{Value: author, Found: true}
		}
		if dt, ok := card.Find("time").First().Attr("datetime"); ok && dt != "" {
			rec.PostedAt = Field{Value: dt, Found: true}
		}
		records = append(records, rec)
	})
	return records, nil
}

// xAuthor prefers the @handle span inside the card header; older markup
// only exposes the display name, which is kept as a fallback.
func xAuthor(card *goquery.Selection) string {
	var handle, display string
	card.Find(`div[dir="ltr"] span`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if t == "" {
			return true
		}
		if display == "" {
			display = t
		}
		if strings.HasPrefix(t, "@") {
			handle = t
			return false
		}
		return true
	})
	if handle != "" {
		return handle
	}
	return display
}
