package parser

import "maps"

// Reserved frontmatter keys.
const (
	KeyIcon     = "icon"
	KeyParent   = "parent"
	KeySubcards = "subcards"
)

// Frontmatter is the key-value metadata block of a document.
// Keys other than the reserved ones are carried through untouched.
type Frontmatter map[string]any

// Icon returns the icon glyph, or "" when unset.
func (f Frontmatter) Icon() string {
	s, _ := f[KeyIcon].(string)
	return s
}

// Parent returns the relative path of the declaring parent, or "".
func (f Frontmatter) Parent() string {
	s, _ := f[KeyParent].(string)
	return s
}

// HasParent reports whether the document declares a parent card.
// Any non-empty value counts, whatever its type.
func (f Frontmatter) HasParent() bool {
	switch v := f[KeyParent].(type) {
	case nil:
		return false
	case string:
		return v != ""
	}
	return true
}

// Subcards returns the declared subcard paths in order.
func (f Frontmatter) Subcards() []string {
	return f.stringList(KeySubcards)
}

func (f Frontmatter) stringList(key string) []string {
	switch v := f[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ApplyUpdates returns a copy of current with updates applied.
// A nil update value removes the key.
func ApplyUpdates(current, updates Frontmatter) Frontmatter {
	out := make(Frontmatter, len(current)+len(updates))
	maps.Copy(out, current)
	for k, v := range updates {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
