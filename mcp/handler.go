// Package mcp exposes the blog's posts to MCP clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/eringen/spacetraveling/feed"
	"github.com/eringen/spacetraveling/post"
	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/richtext"
)

// Source is where the tools read posts from. The web app implements it on
// top of its page cache.
type Source interface {
	// ListPosts returns the first page when cursor is empty, otherwise the
	// page the cursor points to.
	ListPosts(ctx context.Context, cursor string) (feed.State, error)
	GetPost(ctx context.Context, uid string) (post.Detail, error)
}

type ListPostsRequest struct {
	Cursor string `json:"cursor"` // next_page cursor from a previous call
}

type PostSummary struct {
	UID      string `json:"uid"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Date     string `json:"date"`
	Link     string `json:"link"`
}

type ListPostsResponse struct {
	Posts    []PostSummary `json:"posts"`
	NextPage string        `json:"nextPage,omitempty"`
}

type GetPostRequest struct {
	UID string `json:"uid"`
}

type GetPostResponse struct {
	PostSummary
	ReadingTime int    `json:"readingTimeMinutes"`
	BannerURL   string `json:"bannerUrl,omitempty"`
	Markdown    string `json:"markdown"`
}

// NewServer creates an MCP server with the listPosts and getPost tools.
func NewServer(logger *zap.Logger, src Source, version string) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer(
		"spacetraveling",
		version,
		server.WithToolCapabilities(false),
	)

	listTool := mcp.NewTool("listPosts",
		mcp.WithDescription("List blog post summaries, newest first. Pass nextPage from a previous call as cursor to continue."),
		mcp.WithString("cursor",
			mcp.Description("Continuation cursor returned as nextPage; omit for the first page"),
		),
	)
	s.AddTool(listTool, mcp.NewTypedToolHandler(listPostsHandler(logger, src)))

	getTool := mcp.NewTool("getPost",
		mcp.WithDescription("Get a blog post with its content as markdown and its estimated reading time"),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("The post uid, as returned by listPosts"),
		),
	)
	s.AddTool(getTool, mcp.NewTypedToolHandler(getPostHandler(logger, src)))

	return s
}

func listPostsHandler(logger *zap.Logger, src Source) func(ctx context.Context, request mcp.CallToolRequest, args ListPostsRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ListPostsRequest) (*mcp.CallToolResult, error) {
		st, err := src.ListPosts(ctx, args.Cursor)
		if err != nil {
			logger.Error("listPosts failed", zap.String("cursor", args.Cursor), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("failed to list posts: %v", err)), nil
		}
		response := ListPostsResponse{Posts: make([]PostSummary, 0, len(st.Posts)), NextPage: st.NextPage}
		for _, p := range st.Posts {
			response.Posts = append(response.Posts, summary(p))
		}
		return jsonResult(response)
	}
}

func getPostHandler(logger *zap.Logger, src Source) func(ctx context.Context, request mcp.CallToolRequest, args GetPostRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args GetPostRequest) (*mcp.CallToolResult, error) {
		uid := strings.TrimSpace(args.UID)
		if uid == "" {
			return mcp.NewToolResultError("uid is required"), nil
		}
		d, err := src.GetPost(ctx, uid)
		if errors.Is(err, prismic.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("post %q not found", uid)), nil
		}
		if err != nil {
			logger.Error("getPost failed", zap.String("uid", uid), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("failed to get post: %v", err)), nil
		}
		md, err := Markdown(d)
		if err != nil {
			logger.Error("markdown conversion failed", zap.String("uid", uid), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("failed to convert post: %v", err)), nil
		}
		return jsonResult(GetPostResponse{
			PostSummary: summary(d.Summary),
			ReadingTime: d.ReadingTime(),
			BannerURL:   d.BannerURL,
			Markdown:    md,
		})
	}
}

// Markdown renders a post's sections as markdown, headings as level 2.
func Markdown(d post.Detail) (string, error) {
	var b strings.Builder
	for _, s := range d.Content {
		if s.Heading != "" {
			b.WriteString("<h2>")
			b.WriteString(richtext.FormatSpans(s.Heading, nil))
			b.WriteString("</h2>")
		}
		b.WriteString(richtext.AsHTML(s.Body))
	}
	return htmltomarkdown.ConvertString(b.String())
}

func summary(p post.Summary) PostSummary {
	return PostSummary{
		UID:      p.UID,
		Title:    p.Title,
		Subtitle: p.Subtitle,
		Author:   p.Author,
		Date:     p.Date,
		Link:     p.Link(),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
