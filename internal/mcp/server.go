package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oklog/ulid/v2"

	"github.com/Aman-CERP/amanlaunch/internal/launcher"
	"github.com/Aman-CERP/amanlaunch/internal/telemetry"
	"github.com/Aman-CERP/amanlaunch/pkg/version"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "amanlaunch"

// Server is the MCP server for amanlaunch.
// It lets AI clients run launcher queries and carry out candidates.
type Server struct {
	mcp     *mcp.Server
	engine  *launcher.Engine
	metrics *telemetry.QueryMetrics
	logger  *slog.Logger

	// selectMu serializes launch_search and launch_select so a select
	// always refers to the turn the same client just saw.
	selectMu sync.Mutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics registers the query_metrics resource backed by m.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new MCP server over engine.
func NewServer(engine *launcher.Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("launcher engine is required")
	}

	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	if s.metrics != nil {
		s.registerQueryMetricsResource()
	}
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "launch_search",
			Description: "Run a launcher query. Returns ranked candidates from applications, quicklinks, files, the calculator and web search, or a single shortcut candidate when the text starts with an alias.",
		},
		{
			Name:        "launch_select",
			Description: "Carry out a candidate from the most recent launch_search: open its URL, launch its application or copy its text. Selections improve future ranking.",
		},
		{
			Name:        "alias_list",
			Description: "List the stored shortcut aliases and their targets.",
		},
		{
			Name:        "source_list",
			Description: "List the candidate sources in tie-break order with their enabled and circuit state.",
		},
	}
}

func (s *Server) registerTools() {
	tools := s.ListTools()
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpSelectHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpAliasListHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpSourceListHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the MCP SDK handler for the launch_search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	requestID := ulid.Make().String()
	limit := clampLimit(input.Limit, defaultLimit, maxLimit)

	s.selectMu.Lock()
	res := s.engine.Submit(ctx, input.Query)
	s.selectMu.Unlock()

	if res.Outcome == launcher.OutcomeCanceled {
		s.logger.Warn("mcp_search_canceled", slog.String("request_id", requestID))
		return nil, SearchOutput{}, MapError(ctx.Err())
	}

	cands := res.Candidates
	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := SearchOutput{
		TurnID:     res.TurnID,
		Outcome:    string(res.Outcome),
		Direct:     res.Direct,
		Candidates: make([]CandidateOutput, 0, len(cands)),
		Sources:    toSourceReports(res.Reports),
		DurationMS: res.Duration.Milliseconds(),
	}
	for _, c := range cands {
		out.Candidates = append(out.Candidates, toCandidateOutput(c))
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.String("turn_id", res.TurnID),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("result_count", len(out.Candidates)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatResult(res)}},
	}, out, nil
}

// mcpSelectHandler is the MCP SDK handler for the launch_select tool.
func (s *Server) mcpSelectHandler(ctx context.Context, _ *mcp.CallToolRequest, input SelectInput) (
	*mcp.CallToolResult,
	SelectOutput,
	error,
) {
	id := strings.TrimSpace(input.CandidateID)
	if id == "" {
		return nil, SelectOutput{}, NewInvalidParamsError("candidate_id parameter is required")
	}

	s.selectMu.Lock()
	sel, err := s.engine.Select(ctx, id)
	s.selectMu.Unlock()
	if err != nil {
		s.logger.Warn("mcp_select_failed", slog.String("candidate", id), slog.String("error", err.Error()))
		return nil, SelectOutput{}, MapError(err)
	}

	return nil, SelectOutput{
		Candidate:   toCandidateOutput(sel.Candidate),
		Recorded:    sel.Recorded,
		KeepVisible: sel.KeepVisible,
	}, nil
}

// mcpAliasListHandler is the MCP SDK handler for the alias_list tool.
func (s *Server) mcpAliasListHandler(_ context.Context, _ *mcp.CallToolRequest, _ AliasListInput) (
	*mcp.CallToolResult,
	AliasListOutput,
	error,
) {
	out := AliasListOutput{Aliases: []AliasOutput{}}
	ix := s.engine.Aliases()
	if ix == nil {
		return nil, out, nil
	}
	for _, e := range ix.Entries() {
		out.Aliases = append(out.Aliases, AliasOutput{
			Key:       e.Key,
			Kind:      string(e.Target.Kind),
			TargetID:  e.Target.ID,
			Label:     e.Target.Label,
			CreatedAt: formatTime(e.CreatedAt),
		})
	}
	return nil, out, nil
}

// mcpSourceListHandler is the MCP SDK handler for the source_list tool.
func (s *Server) mcpSourceListHandler(_ context.Context, _ *mcp.CallToolRequest, _ SourceListInput) (
	*mcp.CallToolResult,
	SourceListOutput,
	error,
) {
	infos := s.engine.Sources()
	out := SourceListOutput{
		Sources:      make([]SourceOutput, 0, len(infos)),
		UseFrequency: s.engine.Settings().UseFrequency,
	}
	for _, in := range infos {
		out.Sources = append(out.Sources, SourceOutput{
			ID:          in.ID,
			DisplayName: in.DisplayName,
			Position:    in.Position,
			Enabled:     in.Enabled,
			Circuit:     in.Circuit,
		})
	}
	return nil, out, nil
}

// CallTool invokes a tool by name. It backs tests and in-process callers
// that bypass JSON-RPC.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "launch_search":
		in := SearchInput{}
		in.Query, _ = args["query"].(string)
		if l, ok := args["limit"].(float64); ok {
			in.Limit = int(l)
		}
		_, out, err := s.mcpSearchHandler(ctx, nil, in)
		return out, err
	case "launch_select":
		id, _ := args["candidate_id"].(string)
		_, out, err := s.mcpSelectHandler(ctx, nil, SelectInput{CandidateID: id})
		return out, err
	case "alias_list":
		_, out, err := s.mcpAliasListHandler(ctx, nil, AliasListInput{})
		return out, err
	case "source_list":
		_, out, err := s.mcpSourceListHandler(ctx, nil, SourceListInput{})
		return out, err
	default:
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
}

// Serve starts the MCP server on the given transport and blocks until ctx
// is canceled or the client disconnects.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
