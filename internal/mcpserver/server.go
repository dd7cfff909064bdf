// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Planner tree to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/planner/internal/deckservice"
	"github.com/starford/planner/internal/models"
	"github.com/starford/planner/internal/tree"
)

// CardFormatURI is the resource URI of the card format contract.
const CardFormatURI = "planner://card-format"

// Server wraps the MCP server with Planner tools.
type Server struct {
	mcp *server.MCPServer
	svc *deckservice.Service
}

// New creates a new MCP server with all Planner tools registered.
func New(svc *deckservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Planner",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Show the deck and card tree as an indented outline. "+
			"Decks are directories and end with a slash; cards are Markdown documents."),
		mcp.WithString("path", mcp.Description("Optional deck or card path (relative to the planner root) to show only its subtree")),
	), s.getTree)

	s.mcp.AddTool(mcp.NewTool("find_node",
		mcp.WithDescription("Look up a single deck or card by path and return it as JSON, including its children."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Node path relative to the planner root (e.g. work/plan.md)")),
	), s.findNode)

	s.mcp.AddTool(mcp.NewTool("create_card",
		mcp.WithDescription("Create a card. With a deck as target the card is created inside the deck; "+
			"with a card as target it becomes a subcard of that card. Read the contract first via "+
			"the get_card_contract tool or the "+CardFormatURI+" resource."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Deck or card path relative to the planner root")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Card name, used as the file name (no extension, no slashes)")),
	), s.createCard)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a deck (with everything inside) or a card. "+
			"A card with subcards needs a strategy: cascade deletes them, preserve turns them into root cards."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Node path relative to the planner root")),
		mcp.WithString("strategy", mcp.Description("cascade or preserve"), mcp.Enum("cascade", "preserve")),
	), s.deleteNode)

	s.mcp.AddTool(mcp.NewTool("refresh_tree",
		mcp.WithDescription("Drop the cached tree and rebuild it from disk. Use after editing files by other means."),
	), s.refreshTree)

	s.mcp.AddTool(mcp.NewTool("search_cards",
		mcp.WithDescription("Full-text search through card names, titles, tags and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchCards)

	s.mcp.AddTool(mcp.NewTool("get_card_contract",
		mcp.WithDescription("Returns the Planner card format contract: frontmatter keys, "+
			"subcard links and file layout. Call this before creating cards."),
	), s.getCardContract)

	s.mcp.AddResource(
		mcp.NewResource(CardFormatURI, "Card Format Contract",
			mcp.WithResourceDescription("How decks, cards and subcards are stored on disk."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCardFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")

	roots, err := s.svc.Roots(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if path != "" {
		n, err := s.svc.FindByPath(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		roots = []*models.Node{n}
	}
	if len(roots) == 0 {
		return mcp.NewToolResultText("the planner is empty"), nil
	}

	var b strings.Builder
	if err := tree.Render(&b, roots); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) findNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.FindByPath(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(n, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.CreateCard(ctx, target, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Message), nil
}

func (s *Server) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strategy, err := tree.ParseStrategy(req.GetString("strategy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.DeleteNode(ctx, path, strategy)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Message), nil
}

func (s *Server) refreshTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("tree refreshed"), nil
}

func (s *Server) searchCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getCardContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CardFormatContract), nil
}

func (s *Server) readCardFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CardFormatURI,
			MIMEType: "text/markdown",
			Text:     CardFormatContract,
		},
	}, nil
}
