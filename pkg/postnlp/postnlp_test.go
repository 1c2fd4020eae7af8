package postnlp

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		input        string
		wantHashtags []string
		wantMentions []string
		wantLinks    []string
	}{
		{
			"Loving the new #metro line! Thanks @CityTransit https://metro.example/map",
			[]string{"metro"},
			[]string{"citytransit"},
			[]string{"https://metro.example/map"},
		},
		{
			"#Metro #metro #METRO all count once",
			[]string{"metro"},
			nil,
			nil,
		},
		{
			"double links www.news.example/a and www.news.example/a again",
			nil,
			nil,
			[]string{"www.news.example/a"},
		},
		{
			"link with trailing punctuation https://example.com/x.",
			nil,
			nil,
			[]string{"https://example.com/x"},
		},
		{
			"@alice @Bob @alice",
			nil,
			[]string{"alice", "bob"},
			nil,
		},
		{
			"unicode tags work too #çevre #ulaşım",
			[]string{"çevre", "ulaşım"},
			nil,
			nil,
		},
		{
			"plain text, nothing to pull out",
			nil,
			nil,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := Extract(tt.input)
			if !reflect.DeepEqual(s.Hashtags, tt.wantHashtags) {
				t.Errorf("Hashtags = %v, want %v", s.Hashtags, tt.wantHashtags)
			}
			if !reflect.DeepEqual(s.Mentions, tt.wantMentions) {
				t.Errorf("Mentions = %v, want %v", s.Mentions, tt.wantMentions)
			}
			if !reflect.DeepEqual(s.Links, tt.wantLinks) {
				t.Errorf("Links = %v, want %v", s.Links, tt.wantLinks)
			}
		})
	}
}

func TestExtractEmpty(t *testing.T) {
	s := Extract("")
	if s.Hashtags != nil || s.Mentions != nil || s.Links != nil {
		t.Errorf("expected zero signals, got %+v", s)
	}
}

func TestExtractFirstSeenOrder(t *testing.T) {
	s := Extract("#b #a #b #c")
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(s.Hashtags, want) {
		t.Errorf("Hashtags = %v, want %v", s.Hashtags, want)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{
			"Loving the new #metro line! Thanks @CityTransit https://metro.example/map",
			"Loving the new metro line! Thanks",
		},
		{
			"no   noise\there\n just   spacing",
			"no noise here just spacing",
		},
		{
			"@only_a_mention",
			"",
		},
		{
			"Casing Is Preserved #Yes",
			"Casing Is Preserved Yes",
		},
		{
			"",
			"",
		},
	}

	for _, tt := range tests {
		if got := Clean(tt.input); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
