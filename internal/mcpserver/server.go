package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"sessionvault/internal/types"
)

const (
	serverName    = "sessionvault"
	serverVersion = "0.1.0"
)

// SessionSource is the read side of the session service
type SessionSource interface {
	GetAllSessions(ctx context.Context) []types.Session
	GetProjectSessions(ctx context.Context, projectPath string) []types.Session
	GetSession(ctx context.Context, id string) (types.Session, bool)
}

// MCPService exposes recorded sessions to MCP clients over SSE
type MCPService struct {
	server     *server.MCPServer
	sessions   SessionSource
	logger     *zap.Logger
	port       int
	httpServer *http.Server
	mu         sync.RWMutex
	running    bool
}

// NewMCPService creates a new MCP service on the specified port
func NewMCPService(port int, sessions SessionSource, logger *zap.Logger) *MCPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MCPService{
		sessions: sessions,
		logger:   logger.With(zap.String("component", "mcp")),
		port:     port,
	}
	s.server = s.newMCPServer()
	return s
}

// newMCPServer builds the MCP server with its tools registered
func (s *MCPService) newMCPServer() *server.MCPServer {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)
	mcpServer.AddTool(CreateListSessionsTool(), s.handleListSessions)
	mcpServer.AddTool(CreateGetSessionTool(), s.handleGetSession)
	return mcpServer
}

// GetPort returns the port the MCP server listens on
func (s *MCPService) GetPort() int {
	return s.port
}

// Start starts the SSE server in the background
func (s *MCPService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil // Already running
	}

	sseServer := server.NewSSEServer(s.server,
		server.WithBaseURL(fmt.Sprintf("http://localhost:%d", s.port)),
	)
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           sseServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	httpServer := s.httpServer
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("MCP server error", zap.Error(err))
		}
	}()

	s.running = true
	s.logger.Info("MCP server started", zap.Int("port", s.port))
	return nil
}

// Stop shuts the SSE server down
func (s *MCPService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	err := s.httpServer.Shutdown(ctx)
	s.logger.Info("MCP server stopped")
	return err
}

// IsRunning returns whether the MCP server is currently running
func (s *MCPService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
