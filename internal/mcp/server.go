package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/dshills/r2md/internal/collector"
	"github.com/dshills/r2md/internal/config"
	"github.com/dshills/r2md/internal/pipeline"
	"github.com/dshills/r2md/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "r2md"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the database used when the config names none
	DefaultDBPath = "~/.r2md/r2md.db"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	config  *config.Config
	lock    pipeline.RunLock
}

// NewServer creates a new MCP server instance. A nil config uses
// config.Default.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbFile, err := resolveDBPath(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:     mcpServer,
		storage: store,
		config:  cfg,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	log.Debug().Str("db", dbFile).Str("build", storage.BuildMode).Msg("mcp server ready")
	return s, nil
}

// resolveDBPath expands a leading ~ and creates the parent directory
func resolveDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if dbPath == ":memory:" {
		return dbPath, nil
	}
	if rest, ok := strings.CutPrefix(dbPath, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, rest)
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return dbPath, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases the database
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(chunkRepositoryTool(), s.handleChunkRepository)
	s.mcp.AddTool(dependencyOrderTool(), s.handleDependencyOrder)
	s.mcp.AddTool(generateSamplesTool(), s.handleGenerateSamples)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}

// newCollector builds a collector from the server config
func (s *Server) newCollector() *collector.Collector {
	return collector.New(collector.Options{
		IgnorePatterns: s.config.IgnorePatterns,
		MaxFileSize:    s.config.MaxFileSize,
	})
}

// pipelineConfig maps the server config onto a pipeline config
func (s *Server) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Workers:          s.config.Workers,
		MaxContextTokens: s.config.MaxContextTokens,
		SplitRatio:       s.config.SplitRatio,
		Tokenizer:        s.config.Tokenizer,
		ParseTimeout:     s.config.ParseTimeout,
	}
}
