package graph

import (
	"time"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
	"github.com/VoxPulseAI/voxpulse/pkg/sentiment"
)

// TagCount is one hashtag aggregation row.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// postProps flattens a post onto node properties. Scores are stored as
// four floats so aggregations can work on them without JSON decoding.
func postProps(p domain.Post) map[string]any {
	return map[string]any{
		"uid":        p.UID(),
		"platform":   p.Platform,
		"keyword":    p.Keyword,
		"text":       p.Text,
		"clean_text": p.CleanText,
		"author":     p.Author,
		"posted_at":  p.PostedAt,
		"scraped_at": p.ScrapedAt.UTC(),
		"sentiment":  p.Sentiment,
		"language":   p.Language,
		"phase":      string(p.Phase),
		"positive":   p.Scores.Positive,
		"negative":   p.Scores.Negative,
		"neutral":    p.Scores.Neutral,
		"compound":   p.Scores.Compound,
		"hashtags":   strList(p.Hashtags),
		"mentions":   strList(p.Mentions),
		"links":      strList(p.Links),
	}
}

// postFromProps rebuilds a post from node properties.
func postFromProps(props map[string]any) domain.Post {
	return domain.Post{
		Platform:  strProp(props, "platform"),
		Keyword:   strProp(props, "keyword"),
		Text:      strProp(props, "text"),
		CleanText: strProp(props, "clean_text"),
		Author:    strProp(props, "author"),
		PostedAt:  strProp(props, "posted_at"),
		ScrapedAt: timeProp(props, "scraped_at"),
		Sentiment: strProp(props, "sentiment"),
		Language:  strProp(props, "language"),
		Phase:     domain.Phase(strProp(props, "phase")),
		Scores: sentiment.Scores{
			Positive: f64Prop(props, "positive"),
			Negative: f64Prop(props, "negative"),
			Neutral:  f64Prop(props, "neutral"),
			Compound: f64Prop(props, "compound"),
		},
		Hashtags: strsProp(props, "hashtags"),
		Mentions: strsProp(props, "mentions"),
		Links:    strsProp(props, "links"),
	}
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func f64Prop(props map[string]any, key string) float64 {
	if v, ok := props[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

// timeProp handles both the driver's native datetime mapping and the
// string form older rows may carry.
func timeProp(props map[string]any, key string) time.Time {
	switch v := props[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func strsProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// strList converts to the []any form the driver expects for list
// parameters. Empty input maps to an empty list, not null, so FOREACH
// clauses always have something to iterate.
func strList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
