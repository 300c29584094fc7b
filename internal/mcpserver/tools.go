package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	ToolListSessions = "ListSessions"
	ToolGetSession   = "GetSession"
)

// defaultListLimit caps ListSessions when no limit is given
const defaultListLimit = 50

// CreateListSessionsTool creates the ListSessions tool definition
func CreateListSessionsTool() mcp.Tool {
	return mcp.NewTool(ToolListSessions,
		mcp.WithDescription("List previously recorded agent conversations, most recent first. Returns id, label, last activity time and message count for each session."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of sessions to return (default: 50, 0 = all)"),
		),
		mcp.WithString("project",
			mcp.Description("Absolute project path to restrict the listing to (optional)"),
		),
	)
}

// CreateGetSessionTool creates the GetSession tool definition
func CreateGetSessionTool() mcp.Tool {
	return mcp.NewTool(ToolGetSession,
		mcp.WithDescription("Return one recorded conversation with its full ordered message list."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id as returned by ListSessions"),
		),
	)
}
