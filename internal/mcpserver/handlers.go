package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"sessionvault/internal/types"
)

// SessionSummary is the ListSessions entry for one session
type SessionSummary struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"messageCount"`
	ProjectDir   string    `json:"projectDir,omitempty"`
}

// handleListSessions handles the ListSessions tool call
func (s *MCPService) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}

	var sessions []types.Session
	if project := req.GetString("project", ""); project != "" {
		sessions = s.sessions.GetProjectSessions(ctx, project)
	} else {
		sessions = s.sessions.GetAllSessions(ctx)
	}
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:           sess.ID,
			Label:        sess.Label,
			Timestamp:    sess.Timestamp,
			MessageCount: sess.MessageCount(),
			ProjectDir:   sess.ProjectDir,
		})
	}
	s.logger.Debug("ListSessions", zap.Int("returned", len(summaries)))
	return jsonResult(summaries)
}

// handleGetSession handles the GetSession tool call
func (s *MCPService) handleGetSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	sess, ok := s.sessions.GetSession(ctx, id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Session '%s' not found", id)), nil
	}
	return jsonResult(sess)
}

// jsonResult encodes v as the text content of a tool result
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
