package collector

import "strings"

// KeyPolicy decides which record parts make up the uniqueness key the
// collect loop deduplicates on. Platforms re-render the same post many
// times while scrolling, so the key has to be stable across renders:
// author and native timestamp plus a text prefix catch the common case
// without letting truncated re-renders slip through.
type KeyPolicy struct {
	IncludeAuthor    bool
	IncludeTimestamp bool
	TextPrefixRunes  int // 0 keys on the full text
}

// DefaultKeyPolicy matches on author, native timestamp, and the first
// 64 runes of text.
var DefaultKeyPolicy = KeyPolicy{
	IncludeAuthor:    true,
	IncludeTimestamp: true,
	TextPrefixRunes:  64,
}

// Key builds the dedup key for r under the policy.
func (p KeyPolicy) Key(r Record) string {
	var b strings.Builder
	if p.IncludeAuthor {
		b.WriteString(r.Author.Value)
	}
	b.WriteByte('|')
	if p.IncludeTimestamp {
		b.WriteString(r.PostedAt.Value)
	}
	b.WriteByte('|')
	text := r.Text
	if p.TextPrefixRunes > 0 {
		if rs := []rune(text); len(rs) > p.TextPrefixRunes {
			text = string(rs[:p.TextPrefixRunes])
		}
	}
	b.WriteString(text)
	return b.String()
}
