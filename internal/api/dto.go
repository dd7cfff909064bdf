package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/planner/internal/deckservice"
	"github.com/starford/planner/internal/index"
	"github.com/starford/planner/internal/models"
)

// Node is a deck or card in API responses (aliased from the domain layer).
type Node = models.Node

// MutationResult is returned by create and delete (aliased from the domain layer).
type MutationResult = deckservice.Result

// SearchResult is a single search hit (aliased from the index layer).
type SearchResult = index.SearchResult

// CreateCardRequest is the request body for creating a card.
type CreateCardRequest struct {
	Target string `json:"target" example:"work/plan.md" validate:"required"`
	Name   string `json:"name" example:"Next steps" validate:"required"`
}

// Validate validates the request shape.
func (r CreateCardRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Target, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
	)
}

// TreeResponse wraps the forest.
type TreeResponse struct {
	Root  string  `json:"root" example:"/home/me/planner" validate:"required"`
	Nodes []*Node `json:"nodes" validate:"required"`
}

// ChildrenResponse wraps the children of a node.
type ChildrenResponse struct {
	Children []*Node `json:"children" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message" example:"Tree refreshed" validate:"required"`
}
