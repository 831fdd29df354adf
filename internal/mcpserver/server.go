// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/postservice"
	"github.com/starford/ansuz/internal/search"
)

// Server wraps the MCP server with Ansuz tools.
//
// search_posts runs through one long-lived search session, so repeated
// calls behave like a reader typing in the search box: the session keeps
// its query text and settings between calls.
type Server struct {
	mcp  *server.MCPServer
	svc  *postservice.Service
	ctrl *search.Controller
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *postservice.Service, engine *search.Engine) *Server {
	s := &Server{
		svc:  svc,
		ctrl: search.NewController(engine, search.DefaultSettings(), nil, nil),
	}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Fuzzy search through post titles, tags, keywords, excerpts, and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPosts)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read the full content of a blog post by slug."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Post slug (e.g. hello-world)")),
	), s.readPost)

	s.mcp.AddTool(mcp.NewTool("create_post",
		mcp.WithDescription("Create a new blog post with the given slug. "+
			"Content MUST follow the canonical post format (YAML frontmatter with title, "+
			"date, tags; Markdown body). Read the contract first via the "+
			"get_post_contract tool or the ansuz://post-format resource."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("URL-safe slug for the new post")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Ansuz post format contract")),
	), s.createPost)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the canonical Ansuz post format contract. "+
			"Call this before creating or updating posts to ensure correct structure."),
	), s.getPostContract)

	s.mcp.AddTool(mcp.NewTool("post_comments",
		mcp.WithDescription("Read the comment thread for a blog post."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Post slug")),
	), s.postComments)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List all posts in display order, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by (empty for all)")),
	), s.listPosts)

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://post-format", "Post Format Contract",
			mcp.WithResourceDescription("Canonical Markdown post format that all posts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
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

func (s *Server) searchPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.ctrl.SetQuery(ctx, query)
	results := s.ctrl.Results()
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.GetPost(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	out, _ := json.MarshalIndent(post, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.CreatePost(ctx, slug, []byte(content)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", slug)), nil
}

func (s *Server) postComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comments, err := s.svc.PostComments(ctx, "", slug, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(comments) == 0 {
		return mcp.NewToolResultText("no comments"), nil
	}
	out, _ := json.MarshalIndent(comments, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := ""
	if v, err := req.RequireString("tag"); err == nil {
		tag = v
	}

	posts := s.svc.ListPosts(ctx, tag)
	if len(posts) == 0 {
		return mcp.NewToolResultText("no posts"), nil
	}
	var lines []string
	for _, p := range posts {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", p.Slug, p.Date, p.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getPostContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://post-format",
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
