package docstore

import (
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
)

// payloadFromPost flattens a post onto the point payload. Scores are
// stored as individual floats so payload filters can range over them.
func payloadFromPost(p domain.Post) map[string]*pb.Value {
	fields := map[string]any{
		"uid":        p.UID(),
		"platform":   p.Platform,
		"keyword":    p.Keyword,
		"text":       p.Text,
		"clean_text": p.CleanText,
		"author":     p.Author,
		"posted_at":  p.PostedAt,
		"scraped_at": p.ScrapedAt.UTC().Format(time.RFC3339),
		"sentiment":  p.Sentiment,
		"language":   p.Language,
		"phase":      string(p.Phase),
		"positive":   p.Scores.Positive,
		"negative":   p.Scores.Negative,
		"neutral":    p.Scores.Neutral,
		"compound":   p.Scores.Compound,
		"hashtags":   p.Hashtags,
		"mentions":   p.Mentions,
		"links":      p.Links,
	}

	payload := make(map[string]*pb.Value, len(fields))
	for k, v := range fields {
		payload[k] = valueFrom(v)
	}
	return payload
}

func valueFrom(v any) *pb.Value {
	switch tv := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	case []string:
		vals := make([]*pb.Value, len(tv))
		for i, s := range tv {
			vals[i] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: vals}}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}
