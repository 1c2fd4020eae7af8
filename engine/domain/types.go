// Package domain defines the post model, project phases, and the
// validation gate applied at pipeline entry points.
package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/VoxPulseAI/voxpulse/pkg/sentiment"
)

// Post is one collected social-media post as it moves through the
// system. The collector fills the capture fields; the worker adds the
// enrichment fields before persistence.
type Post struct {
	Platform  string    `json:"platform"`
	Keyword   string    `json:"keyword"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	PostedAt  string    `json:"posted_at,omitempty"` // platform-native timestamp, raw
	ScrapedAt time.Time `json:"scraped_at"`

	// Enrichment, worker-added.
	CleanText string           `json:"clean_text,omitempty"`
	Sentiment string           `json:"sentiment,omitempty"`
	Scores    sentiment.Scores `json:"scores"`
	Language  string           `json:"language,omitempty"`
	Phase     Phase            `json:"phase,omitempty"`
	Hashtags  []string         `json:"hashtags,omitempty"`
	Mentions  []string         `json:"mentions,omitempty"`
	Links     []string         `json:"links,omitempty"`
}

// uidPrefixRunes bounds the text prefix folded into a post's identity.
const uidPrefixRunes = 64

// UID is the stable uniqueness key for a post: platform, author, raw
// timestamp, and a bounded text prefix. Storage IDs derive from it, so
// it stays fixed regardless of collector key-policy configuration.
func (p Post) UID() string {
	text := p.Text
	if utf8.RuneCountInString(text) > uidPrefixRunes {
		text = string([]rune(text)[:uidPrefixRunes])
	}
	return fmt.Sprintf("%s|%s|%s|%s", p.Platform, p.Author, p.PostedAt, text)
}

// postedAtLayouts are tried in order when parsing platform timestamps.
var postedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// PostedTime parses the platform-native timestamp, falling back to the
// scrape time when the raw form is missing or unparseable (relative
// forms like "3h" deliberately fall through).
func (p Post) PostedTime() time.Time {
	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, p.PostedAt); err == nil {
			return t
		}
	}
	return p.ScrapedAt
}

// Phase buckets a post against the project timeline.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseDuring Phase = "during"
	PhaseAfter  Phase = "after"
)

// PhaseOf places t relative to the project window [start, end]. A zero
// bound is open: with no start nothing is "before", with no end nothing
// is "after".
func PhaseOf(t, start, end time.Time) Phase {
	switch {
	case !start.IsZero() && t.Before(start):
		return PhaseBefore
	case !end.IsZero() && t.After(end):
		return PhaseAfter
	default:
		return PhaseDuring
	}
}

// ValidPlatforms enumerates accepted collection platforms.
var ValidPlatforms = map[string]bool{
	"x":        true,
	"facebook": true,
}
