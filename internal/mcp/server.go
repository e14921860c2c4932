package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/clmcore/internal/diff"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
)

// ContractService defines contract operations needed by MCP.
type ContractService interface {
	Create(ctx context.Context, tenantID string, req contract.CreateRequest) (*contract.Contract, error)
	Get(ctx context.Context, tenantID, id string) (*contract.Contract, error)
	Transition(ctx context.Context, tenantID string, req contract.TransitionRequest) (*contract.Result, error)
	CreateVersion(ctx context.Context, tenantID string, req contract.CreateVersionRequest) (*contract.Result, error)
	UpdateDraftVersion(ctx context.Context, tenantID string, req contract.UpdateDraftRequest) (*contract.Result, error)
	AdvanceSigning(ctx context.Context, tenantID, contractID, actorID string) (*contract.Result, error)
	AddRenewalFeedback(ctx context.Context, tenantID string, req contract.FeedbackRequest) (*contract.Result, error)
	LifetimeValue(ctx context.Context, tenantID, id string) (*contract.LifetimeValue, error)
	DiffVersions(ctx context.Context, tenantID, id string, from, to int) ([]diff.Edit, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Contracts ContractService
	Activity  ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      TenantResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	DefaultTenant string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaultTenant := cfg.DefaultTenant
	if defaultTenant == "" {
		defaultTenant = "default"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "clmcore",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	// Registered first so it runs inside the tenant middleware and can log
	// the resolved tenant.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	// Stdio mode: always disable auth (local dev only)
	if cfg.TransportMode == "stdio" || !cfg.AuthEnabled {
		server.AddReceivingMiddleware(tenantMiddleware(fixedTenant(defaultTenant)))
	} else {
		server.AddReceivingMiddleware(tenantMiddleware(bearerTenant(cfg.Resolver)))
	}

	registerTools(server, cfg.Services, logger)

	return server
}
