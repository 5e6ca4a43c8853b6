package parser

import (
	"testing"
)

func TestExtract_TagsAndLinks(t *testing.T) {
	content := "Planning notes #work #q3\nSee https://example.com/roadmap and #work again."
	r := Extract(content)
	if len(r.Tags) != 2 || r.Tags[0] != "work" || r.Tags[1] != "q3" {
		t.Errorf("tags = %v, want [work q3]", r.Tags)
	}
	if len(r.Hyperlinks) != 1 || r.Hyperlinks[0] != "https://example.com/roadmap" {
		t.Errorf("hyperlinks = %v", r.Hyperlinks)
	}
}

func TestExtractTags_Dedup(t *testing.T) {
	tags := extractTags("#alpha text #beta more #alpha")
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestExtractTags_MidWordHashIgnored(t *testing.T) {
	tags := extractTags("issue#42 is not a tag, but #42issue starts one")
	if len(tags) != 1 || tags[0] != "42issue" {
		t.Errorf("tags = %v, want [42issue]", tags)
	}
}

func TestExtractHyperlinks_TrailingPunctuation(t *testing.T) {
	links := extractHyperlinks("Read http://example.com/a. Then https://example.com/b, done.")
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2: %v", len(links), links)
	}
	if links[0] != "http://example.com/a" || links[1] != "https://example.com/b" {
		t.Errorf("links = %v", links)
	}
}

func TestExtractHyperlinks_Dedup(t *testing.T) {
	links := extractHyperlinks("https://a.example https://a.example")
	if len(links) != 1 {
		t.Errorf("expected 1 link, got %v", links)
	}
}

func TestMergeUnique(t *testing.T) {
	got := MergeUnique([]string{"a", "b"}, []string{"b", "c", ""})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("MergeUnique = %v, want [a b c]", got)
	}
}
