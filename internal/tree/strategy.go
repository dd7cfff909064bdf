package tree

import (
	"fmt"
	"strings"

	"github.com/starford/planner/internal/apperr"
)

// DeleteStrategy selects what happens to the subcards of a deleted card.
type DeleteStrategy string

const (
	// StrategyNone deletes the card only. Intended for cards without subcards.
	StrategyNone DeleteStrategy = ""
	// StrategyCascade deletes every subcard, depth first, before the card.
	StrategyCascade DeleteStrategy = "cascade"
	// StrategyPreserve promotes every subcard to a root card.
	StrategyPreserve DeleteStrategy = "preserve"
)

// ParseStrategy converts a user-supplied string to a DeleteStrategy.
func ParseStrategy(s string) (DeleteStrategy, error) {
	switch DeleteStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyNone:
		return StrategyNone, nil
	case StrategyCascade:
		return StrategyCascade, nil
	case StrategyPreserve:
		return StrategyPreserve, nil
	}
	return StrategyNone, fmt.Errorf("%w: %q", apperr.ErrInvalidStrategy, s)
}
