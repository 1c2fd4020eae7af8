// Package postnlp extracts lightweight signals (hashtags, mentions,
// links) from social post text and provides the analysis-text cleanup
// the worker applies before classification. Regex only, no external
// dependencies.
package postnlp

import (
	"regexp"
	"strings"
)

// Signals are the structured fragments pulled out of a post.
type Signals struct {
	Hashtags []string // lowercased, without '#'
	Mentions []string // lowercased, without '@'
	Links    []string // as written, trailing punctuation trimmed
}

var (
	hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
	linkRe    = regexp.MustCompile(`(?:https?://|www\.)[^\s]+`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Extract pulls all signals from text, deduplicated in first-seen order.
// Hashtags and mentions are lowercased so aggregation treats #Metro and
// #metro as one tag.
func Extract(text string) Signals {
	var s Signals
	if text == "" {
		return s
	}

	seen := make(map[string]bool)
	for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(m[1])
		if !seen["#"+tag] {
			seen["#"+tag] = true
			s.Hashtags = append(s.Hashtags, tag)
		}
	}
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		handle := strings.ToLower(m[1])
		if !seen["@"+handle] {
			seen["@"+handle] = true
			s.Mentions = append(s.Mentions, handle)
		}
	}
	for _, m := range linkRe.FindAllString(text, -1) {
		link := strings.TrimRight(m, ".,;:!?)")
		if !seen[link] {
			seen[link] = true
			s.Links = append(s.Links, link)
		}
	}
	return s
}

// Clean produces the analysis text handed to the classifier: links and
// mentions removed, hashtags kept as plain words, whitespace collapsed.
// The original casing survives; language-level normalization belongs to
// the classifier service.
func Clean(text string) string {
	out := linkRe.ReplaceAllString(text, " ")
	out = mentionRe.ReplaceAllString(out, " ")
	out = strings.ReplaceAll(out, "#", "")
	out = spaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
