// Package mcp exposes retrieval over the Model Context Protocol so agent
// hosts can query the document index as a tool.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quillsearch/quill/internal/query"
	"github.com/quillsearch/quill/pkg/version"
)

// AnalyzeInput is the payload for the analyze tool.
type AnalyzeInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

// AnalyzeOutput carries the retrieved chunks.
type AnalyzeOutput struct {
	Sources []SourceChunk `json:"sources" jsonschema:"relevant chunks ordered by reranker score"`
}

// SourceChunk is one retrieved chunk.
type SourceChunk struct {
	Title    string  `json:"title" jsonschema:"source document file name"`
	Chunk    string  `json:"chunk" jsonschema:"chunk text flattened to a single line"`
	Score    float64 `json:"score" jsonschema:"semantic reranker score on a 0-4 scale"`
	Metadata string  `json:"metadata,omitempty" jsonschema:"chunk metadata as a JSON string"`
}

// DocumentsInput is the payload for the documents tool.
type DocumentsInput struct {
	Question string `json:"question" jsonschema:"the topic to find source documents for"`
}

// DocumentsOutput lists matching document titles.
type DocumentsOutput struct {
	Titles []string `json:"titles" jsonschema:"distinct document titles ordered by relevance"`
}

// Server wraps a query engine behind MCP tools.
type Server struct {
	engine *query.Engine
	mcp    *mcp.Server
}

// NewServer creates the MCP server and registers its tools.
func NewServer(engine *query.Engine) (*Server, error) {
	if engine == nil {
		return nil, errors.New("query engine is required")
	}

	s := &Server{engine: engine}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "quill",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze",
		Description: "Answer a question from the indexed document corpus. Returns the most relevant chunks with their source titles and relevance scores.",
	}, s.handleAnalyze)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "documents",
		Description: "Find which source documents cover a topic. Returns distinct document titles only, without chunk text.",
	}, s.handleDocuments)

	slog.Debug("mcp_tools_registered", slog.Int("count", 2))
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves MCP over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp_server_started", slog.String("transport", "stdio"))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (
	*mcp.CallToolResult,
	AnalyzeOutput,
	error,
) {
	if input.Question == "" {
		return nil, AnalyzeOutput{}, errors.New("question parameter is required")
	}

	results, err := s.engine.Search(ctx, input.Question)
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}

	out := AnalyzeOutput{Sources: make([]SourceChunk, 0, len(results))}
	for _, r := range results {
		out.Sources = append(out.Sources, SourceChunk{
			Title:    r.Title,
			Chunk:    r.Chunk,
			Score:    r.Score,
			Metadata: r.Metadata,
		})
	}
	return nil, out, nil
}

func (s *Server) handleDocuments(ctx context.Context, req *mcp.CallToolRequest, input DocumentsInput) (
	*mcp.CallToolResult,
	DocumentsOutput,
	error,
) {
	if input.Question == "" {
		return nil, DocumentsOutput{}, errors.New("question parameter is required")
	}

	titles, err := s.engine.Titles(ctx, input.Question)
	if err != nil {
		return nil, DocumentsOutput{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return nil, DocumentsOutput{Titles: titles}, nil
}
