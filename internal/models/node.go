// Package models defines the domain types for Planner.
package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind discriminates the two node variants.
type Kind string

const (
	KindDeck Kind = "deck"
	KindCard Kind = "card"
)

// Node is a deck (a directory) or a card (a single document).
//
// Deck children may be decks or root cards. Card children are always cards:
// the subcards declared in the card's frontmatter, in declared order.
// ParentPath is only meaningful for cards and is empty when the card is a root.
type Node struct {
	Kind       Kind    `json:"kind"`
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	Icon       string  `json:"icon"`
	ParentPath string  `json:"parent_path,omitempty"`
	Children   []*Node `json:"children"`
}

// IsCard reports whether n is a card.
func IsCard(n *Node) bool {
	return n != nil && n.Kind == KindCard
}

// IsDeck reports whether n is a deck.
func IsDeck(n *Node) bool {
	return n != nil && n.Kind == KindDeck
}

// HasChildren reports whether n has at least one child.
func HasChildren(n *Node) bool {
	return n != nil && len(n.Children) > 0
}

// Walk visits nodes in pre-order: each node before its children.
func Walk(nodes []*Node, fn func(*Node)) {
	for _, n := range nodes {
		fn(n)
		Walk(n.Children, fn)
	}
}

// NodeRef is a node selection received from outside the process.
// It is validated and then resolved against the tree index; a ref is never
// trusted as a node on its own.
type NodeRef struct {
	Kind Kind   `json:"kind,omitempty"`
	Path string `json:"path"`
}

// Validate validates the reference shape.
func (r NodeRef) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Kind, validation.In(KindDeck, KindCard)),
	)
}

// Matches reports whether n is the node the ref points at.
func (r NodeRef) Matches(n *Node) bool {
	if n == nil || n.Path != r.Path {
		return false
	}
	return r.Kind == "" || r.Kind == n.Kind
}
