package mcpserver

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/planner/internal/deckservice"
	"github.com/starford/planner/internal/parser"
	"github.com/starford/planner/internal/storage"
	"github.com/starford/planner/internal/testutil"
	"github.com/starford/planner/internal/tree"
)

func testServer(t *testing.T) (*Server, *storage.FS) {
	t.Helper()
	root, store := testutil.TestRoot(t)
	cache := tree.NewCache(tree.NewBuilder(store, tree.DefaultIcons()), root)
	svc := deckservice.NewService(store, cache, deckservice.WithIndex(testutil.TestDB(t)))
	return New(svc, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called directly.
	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "get_tree":
		result, err = srv.getTree(ctx, req)
	case "find_node":
		result, err = srv.findNode(ctx, req)
	case "create_card":
		result, err = srv.createCard(ctx, req)
	case "delete_node":
		result, err = srv.deleteNode(ctx, req)
	case "refresh_tree":
		result, err = srv.refreshTree(ctx, req)
	case "search_cards":
		result, err = srv.searchCards(ctx, req)
	case "get_card_contract":
		result, err = srv.getCardContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetTree(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "get_tree", map[string]any{})
	if text := resultText(r); text != "the planner is empty" {
		t.Errorf("empty tree = %q", text)
	}

	testutil.WriteCard(t, store, "work/plan.md", parser.Frontmatter{"subcards": []string{"step.md"}}, "plan")
	testutil.WriteCard(t, store, "work/step.md", parser.Frontmatter{"parent": "plan.md"}, "step")
	callTool(t, srv, "refresh_tree", nil)

	r = callTool(t, srv, "get_tree", map[string]any{})
	want := tree.DefaultDeckIcon + " work/\n" +
		"  " + tree.DefaultCardIcon + " plan.md\n" +
		"    " + tree.DefaultCardIcon + " step.md\n"
	if text := resultText(r); text != want {
		t.Errorf("tree = %q, want %q", text, want)
	}

	r = callTool(t, srv, "get_tree", map[string]any{"path": "work/plan.md"})
	if text := resultText(r); !strings.HasPrefix(text, tree.DefaultCardIcon+" plan.md\n") {
		t.Errorf("subtree = %q", text)
	}
}

func TestCreateFindAndDelete(t *testing.T) {
	srv, store := testServer(t)
	testutil.Mkdir(t, store, "ideas")

	r := callTool(t, srv, "create_card", map[string]any{"target": "ideas", "name": "Idea"})
	if text := resultText(r); text != "Created card: Idea.md" {
		t.Errorf("create result = %q", text)
	}
	r = callTool(t, srv, "create_card", map[string]any{"target": "ideas/Idea.md", "name": "Detail"})
	if text := resultText(r); text != "Created subcard: Detail.md" {
		t.Errorf("subcard result = %q", text)
	}

	r = callTool(t, srv, "find_node", map[string]any{"path": "ideas/Idea.md"})
	if r.IsError || !strings.Contains(resultText(r), `"name": "Detail.md"`) {
		t.Errorf("find result = %q", resultText(r))
	}

	r = callTool(t, srv, "delete_node", map[string]any{"path": "ideas/Idea.md"})
	if !r.IsError {
		t.Error("deleting a card with subcards without strategy should fail")
	}
	r = callTool(t, srv, "delete_node", map[string]any{"path": "ideas/Idea.md", "strategy": "cascade"})
	if text := resultText(r); text != "Deleted card: Idea.md" {
		t.Errorf("delete result = %q", text)
	}
	if store.Exists(filepath.Join(store.Root(), "ideas", "Detail.md")) {
		t.Error("cascade should delete the subcard")
	}
}

func TestFindNodeMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "find_node", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing node")
	}
}

func TestCreateCardMissingArgs(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_card", map[string]any{"target": "x"})
	if !r.IsError {
		t.Error("expected error for missing name")
	}
}

func TestSearchCards(t *testing.T) {
	srv, store := testServer(t)
	testutil.Mkdir(t, store, "ideas")
	callTool(t, srv, "create_card", map[string]any{"target": "ideas", "name": "Telescope"})

	r := callTool(t, srv, "search_cards", map[string]any{"query": "Telescope", "limit": 5})
	if r.IsError || !strings.Contains(resultText(r), "Telescope.md") {
		t.Errorf("search result = %q", resultText(r))
	}
}

func TestCardContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_card_contract", nil)
	if !strings.Contains(resultText(r), "subcards") {
		t.Error("contract should document subcards")
	}

	contents, err := srv.readCardFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != CardFormatURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
