package tree

import (
	"fmt"
	"io"
	"strings"

	"github.com/starford/planner/internal/models"
)

// Render writes the forest as an indented outline, one node per line with
// its icon. Decks get a trailing slash.
func Render(w io.Writer, roots []*models.Node) error {
	var walk func(nodes []*models.Node, depth int) error
	walk = func(nodes []*models.Node, depth int) error {
		for _, n := range nodes {
			name := n.Name
			if models.IsDeck(n) {
				name += "/"
			}
			if _, err := fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), n.Icon, name); err != nil {
				return err
			}
			if err := walk(n.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(roots, 0)
}
