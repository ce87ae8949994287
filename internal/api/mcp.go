package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vasanth/minuteman/internal/pipeline"
	"github.com/vasanth/minuteman/internal/retrieval"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline Asker
	Vectors  retrieval.VectorStore
}

// NewMCPServer creates an MCP server exposing the meeting corpus to agent
// clients: semantic search, question answering, and corpus statistics.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"minuteman",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("minuteman: semantic search and Q&A over a corpus of meeting transcripts."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_meetings",
			mcp.WithDescription("Semantically search meeting chunks and return ranked raw results."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
			mcp.WithString("type", mcp.Description("Filter by chunk type: minute, action_item, or key_insight")),
			mcp.WithString("meeting", mcp.Description("Filter by meeting identifier")),
			mcp.WithString("speaker", mcp.Description("Filter by speaker name")),
		),
		mcpSearchMeetings(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_meetings",
			mcp.WithDescription("Ask a natural-language question over the meeting corpus and get a cited, confidence-scored answer."),
			mcp.WithString("query", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of chunks to retrieve (default 10)")),
			mcp.WithString("session_id", mcp.Description("Optional conversation session identifier; generated when omitted")),
		),
		mcpAskMeetings(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"meetings://stats",
			"Corpus Statistics",
			mcp.WithResourceDescription("Chunk counts by type and meeting, plus vector dimension"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpSearchMeetings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)

		preq := pipeline.Request{Query: query, Mode: pipeline.ModeRaw, Limit: limit}
		if t := req.GetString("type", ""); t != "" {
			ct, err := retrieval.ParseChunkType(t)
			if err != nil {
				return mcpError(fmt.Sprintf("invalid type filter: %v", err)), nil
			}
			preq.Filter.Type = ct
		}
		preq.Filter.MeetingID = req.GetString("meeting", "")
		preq.Filter.Speaker = req.GetString("speaker", "")

		resp, err := deps.Pipeline.Ask(ctx, preq)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(resp.Results) == 0 {
			return mcpText("[]"), nil
		}

		type resultEntry struct {
			ID        string  `json:"id"`
			MeetingID string  `json:"meeting_id"`
			Type      string  `json:"type"`
			Speaker   string  `json:"speaker,omitempty"`
			Text      string  `json:"text"`
			Score     float32 `json:"score"`
			Rank      int     `json:"rank"`
		}

		entries := make([]resultEntry, len(resp.Results))
		for i, r := range resp.Results {
			entries[i] = resultEntry{
				ID:        r.Chunk.ID,
				MeetingID: r.Chunk.MeetingID,
				Type:      string(r.Chunk.Type),
				Speaker:   r.Chunk.Speaker,
				Text:      r.Chunk.Text,
				Score:     r.Score,
				Rank:      r.Rank,
			}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskMeetings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		sessionID := req.GetString("session_id", "")
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		preq := pipeline.Request{
			Query:     query,
			Mode:      pipeline.ModeGenerate,
			Limit:     req.GetInt("limit", 10),
			SessionID: sessionID,
		}

		resp, err := deps.Pipeline.Ask(ctx, preq)
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		out := map[string]any{
			"session_id": sessionID,
			"confidence": resp.Confidence,
			"degraded":   resp.Degraded,
		}
		if resp.Answer != nil {
			out["answer"] = resp.Answer.Answer
			sources := make([]map[string]any, len(resp.Answer.Sources))
			for i, s := range resp.Answer.Sources {
				sources[i] = map[string]any{
					"id":         s.Chunk.ID,
					"meeting_id": s.Chunk.MeetingID,
					"score":      s.Score,
				}
			}
			out["sources"] = sources
		} else {
			// Degraded path: raw results only.
			ids := make([]string, len(resp.Results))
			for i, r := range resp.Results {
				ids[i] = r.Chunk.ID
			}
			out["result_ids"] = ids
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Vectors.Stats()
		if err != nil {
			return nil, fmt.Errorf("failed to get corpus stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
