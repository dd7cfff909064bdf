package parser

import (
	"reflect"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nicon: \"*\"\nparent: a.md\nsubcards:\n  - b.md\n  - c.md\ntags:\n  - plan\n---\n# Hello\nBody text.\n")
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Hello" {
		t.Errorf("title = %q, want %q", doc.Title, "Hello")
	}
	if doc.Frontmatter.Icon() != "*" {
		t.Errorf("icon = %q", doc.Frontmatter.Icon())
	}
	if doc.Frontmatter.Parent() != "a.md" {
		t.Errorf("parent = %q", doc.Frontmatter.Parent())
	}
	if got := doc.Frontmatter.Subcards(); !reflect.DeepEqual(got, []string{"b.md", "c.md"}) {
		t.Errorf("subcards = %v", got)
	}
	if len(doc.Tags) != 1 || doc.Tags[0] != "plan" {
		t.Errorf("tags = %v", doc.Tags)
	}
	if doc.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Frontmatter) != 0 {
		t.Errorf("expected empty frontmatter, got %v", doc.Frontmatter)
	}
	if doc.Frontmatter.HasParent() {
		t.Error("document without frontmatter has no parent")
	}
	if doc.Body != string(input) {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestHasParent_NonStringValue(t *testing.T) {
	cases := []struct {
		name string
		fm   Frontmatter
		want bool
	}{
		{"absent", Frontmatter{}, false},
		{"null", Frontmatter{KeyParent: nil}, false},
		{"empty", Frontmatter{KeyParent: ""}, false},
		{"path", Frontmatter{KeyParent: "a.md"}, true},
		{"number", Frontmatter{KeyParent: 2024}, true},
		{"bool", Frontmatter{KeyParent: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fm.HasParent(); got != tc.want {
				t.Errorf("HasParent() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	if _, err := Parse(input); err == nil {
		t.Fatal("expected error for invalid frontmatter")
	}
}

func TestParse_UnclosedFrontmatterIsBody(t *testing.T) {
	input := []byte("---\nicon: x\nno closing fence\n")
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Frontmatter) != 0 {
		t.Errorf("frontmatter = %v", doc.Frontmatter)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	fm := Frontmatter{
		"icon":     "📃",
		"parent":   "../a.md",
		"subcards": []string{"b.md", "sub/c.md"},
		"status":   "open",
		"priority": 3,
	}
	data, err := Render(fm, "# Title\n\nbody\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Body != "# Title\n\nbody\n" {
		t.Errorf("body = %q", doc.Body)
	}
	if doc.Frontmatter.Icon() != "📃" || doc.Frontmatter.Parent() != "../a.md" {
		t.Errorf("reserved keys lost: %v", doc.Frontmatter)
	}
	if got := doc.Frontmatter.Subcards(); !reflect.DeepEqual(got, []string{"b.md", "sub/c.md"}) {
		t.Errorf("subcards = %v", got)
	}
	if doc.Frontmatter["status"] != "open" || doc.Frontmatter["priority"] != 3 {
		t.Errorf("unreserved keys = %v", doc.Frontmatter)
	}
}

func TestRender_EmptyFrontmatter(t *testing.T) {
	data, err := Render(Frontmatter{}, "# Idea")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(data) != "# Idea" {
		t.Errorf("data = %q", data)
	}
}

func TestApplyUpdates(t *testing.T) {
	current := Frontmatter{"parent": "a.md", "keep": true}
	got := ApplyUpdates(current, Frontmatter{"parent": nil, "icon": "x"})

	if _, ok := got["parent"]; ok {
		t.Error("nil update should delete the key")
	}
	if got["icon"] != "x" || got["keep"] != true {
		t.Errorf("got = %v", got)
	}
	if current["parent"] != "a.md" {
		t.Error("ApplyUpdates must not modify its input")
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := Frontmatter{"tags": []any{"alpha"}}
	tags := extractTags("Some text #beta and #alpha again.", fm)
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	title := deriveTitle(nil, "some text\n# My Heading\nmore")
	if title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}
