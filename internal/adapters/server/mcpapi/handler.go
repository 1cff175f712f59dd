// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/kanview/internal/adapters/server/common"
	"github.com/evanschultz/kanview/internal/app"
	"github.com/evanschultz/kanview/internal/domain"
	"github.com/evanschultz/kanview/internal/wire"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the kanban card tools.
func NewHandler(cfg Config, cards common.CardService) (*Handler, error) {
	if cards == nil {
		return nil, fmt.Errorf("card service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerListCardsTool(mcpSrv, cards)
	registerCreateCardTool(mcpSrv, cards)
	registerMoveCardTool(mcpSrv, cards)
	registerActivityTools(mcpSrv, cards)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "kanview"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerListCardsTool registers the `kanban.list_cards` tool.
func registerListCardsTool(srv *mcpserver.MCPServer, cards common.CardService) {
	srv.AddTool(
		mcp.NewTool(
			"kanban.list_cards",
			mcp.WithDescription("List kanban cards with optional filters."),
			mcp.WithString("status", mcp.Description("Exact status (column id)")),
			mcp.WithString("priority", mcp.Description("Exact priority"), mcp.Enum("low", "medium", "high")),
			mcp.WithString("assignee", mcp.Description("Exact assignee")),
			mcp.WithString("company", mcp.Description("Exact company")),
			mcp.WithArray("tags", mcp.Description("Cards must carry every tag"), mcp.WithStringItems()),
			mcp.WithString("search", mcp.Description("Case-insensitive text search")),
			mcp.WithBoolean("include_inactive", mcp.Description("Include archived cards")),
			mcp.WithString("ordering", mcp.Description("created_at, updated_at, priority or due_date; prefix '-' for descending")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := cards.ListCards(ctx, app.ListQuery{
				Status:          req.GetString("status", ""),
				Priority:        req.GetString("priority", ""),
				Assignee:        req.GetString("assignee", ""),
				Company:         req.GetString("company", ""),
				Tags:            domain.NormalizeTags(req.GetStringSlice("tags", nil)),
				Search:          req.GetString("search", ""),
				IncludeInactive: req.GetBool("include_inactive", false),
				Ordering:        req.GetString("ordering", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"cards": wire.RecordsFromCards(rows)})
			if err != nil {
				return nil, fmt.Errorf("encode list_cards result: %w", err)
			}
			return result, nil
		},
	)
}

// registerCreateCardTool registers the `kanban.create_card` tool.
func registerCreateCardTool(srv *mcpserver.MCPServer, cards common.CardService) {
	srv.AddTool(
		mcp.NewTool(
			"kanban.create_card",
			mcp.WithDescription("Create a kanban card."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Card title")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Column id the card starts in")),
			mcp.WithString("description", mcp.Description("Markdown description")),
			mcp.WithString("priority", mcp.Description("Priority, defaults to medium"), mcp.Enum("low", "medium", "high")),
			mcp.WithString("due_date", mcp.Description("Due date as YYYY-MM-DD")),
			mcp.WithString("assignee", mcp.Description("Assignee")),
			mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
			mcp.WithString("company", mcp.Description("Customer company")),
			mcp.WithString("company_contact_name", mcp.Description("Customer contact name")),
			mcp.WithString("company_contact_phone", mcp.Description("Customer contact phone")),
			mcp.WithString("job_number", mcp.Description("Job number")),
			mcp.WithString("service_quote", mcp.Description("Service quote reference")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			payload := wire.CardPayload{
				Title:               title,
				Status:              status,
				Description:         req.GetString("description", ""),
				Priority:            req.GetString("priority", ""),
				Assignee:            req.GetString("assignee", ""),
				Tags:                req.GetStringSlice("tags", nil),
				Company:             req.GetString("company", ""),
				CompanyContactName:  req.GetString("company_contact_name", ""),
				CompanyContactPhone: req.GetString("company_contact_phone", ""),
				JobNumber:           req.GetString("job_number", ""),
				ServiceQuote:        req.GetString("service_quote", ""),
			}
			if due := strings.TrimSpace(req.GetString("due_date", "")); due != "" {
				payload.DueDate = &due
			}
			in, err := payload.Input()
			if err != nil {
				return toolResultFromError(err), nil
			}
			card, err := cards.CreateCard(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return cardResult("create_card", card)
		},
	)
}

// registerMoveCardTool registers the `kanban.move_card` tool.
func registerMoveCardTool(srv *mcpserver.MCPServer, cards common.CardService) {
	srv.AddTool(
		mcp.NewTool(
			"kanban.move_card",
			mcp.WithDescription("Move a card to another column by changing its status."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Card id")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target column id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := requireCardID(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			card, err := cards.MoveCard(ctx, id, status)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return cardResult("move_card", card)
		},
	)
}

// registerActivityTools registers the archive and restore tools.
func registerActivityTools(srv *mcpserver.MCPServer, cards common.CardService) {
	tools := []struct {
		name        string
		description string
		run         func(context.Context, int64) (domain.Card, error)
	}{
		{name: "archive_card", description: "Archive a card. Archived cards are hidden from default listings.", run: cards.ArchiveCard},
		{name: "restore_card", description: "Restore an archived card.", run: cards.RestoreCard},
	}
	for _, tool := range tools {
		srv.AddTool(
			mcp.NewTool(
				"kanban."+tool.name,
				mcp.WithDescription(tool.description),
				mcp.WithNumber("id", mcp.Required(), mcp.Description("Card id")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				id, err := requireCardID(req)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				card, err := tool.run(ctx, id)
				if err != nil {
					return toolResultFromError(err), nil
				}
				return cardResult(tool.name, card)
			},
		)
	}
}

// requireCardID reads a positive integer `id` argument.
func requireCardID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive, got %d", id)
	}
	return int64(id), nil
}

func cardResult(tool string, card domain.Card) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(wire.RecordFromCard(card))
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("unknown error")
	}
	class := common.Classify(err)
	msg := class.Code + ": " + err.Error()
	if class.Hint != "" {
		msg += " (" + class.Hint + ")"
	}
	return mcp.NewToolResultError(msg)
}
