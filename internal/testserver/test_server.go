// Package testserver runs the complete HTTP stack, REST routes and the MCP
// streamable endpoint, over an in-memory database with API-key auth.
package testserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/clmcore/internal/cache"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
	"github.com/rpggio/clmcore/internal/mcp"
	"github.com/rpggio/clmcore/internal/sqlite"
	"github.com/rpggio/clmcore/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Keys     *sqlite.APIKeyStore
	Token    string
	TenantID string
}

// New starts a server whose only API key is token, bound to tenantID.
func New(t *testing.T, token, tenantID string) *TestServer {
	t.Helper()

	db, err := sqlite.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	contracts := contract.NewService(
		sqlite.NewContractStore(db),
		cache.New[*contract.Contract](64, (*contract.Contract).Clone),
		contract.DefaultPolicy(),
		nil,
	)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	keys := sqlite.NewAPIKeyStore(db)

	mcpServer := mcp.NewServer(mcp.Config{
		Services:      mcp.Services{Contracts: contracts, Activity: activitySvc},
		Resolver:      keys,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)

	server := httptest.NewServer(transport.NewServer(transport.Config{
		Contracts: contracts,
		Activity:  activitySvc,
		Auth:      transport.AuthMiddleware(keys),
		MCP:       mcpHandler,
	}))

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Keys:     keys,
		Token:    token,
		TenantID: tenantID,
	}
	require.NoError(t, ts.AddAPIKey(token, tenantID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, tenantID string) error {
	return ts.Keys.Add(context.Background(), token, tenantID, "test")
}

// Request builds a REST request carrying the bearer token and actor header.
func (ts *TestServer) Request(t *testing.T, method, path string, body io.Reader, token, actor string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, ts.Server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if actor != "" {
		req.Header.Set(transport.ActorHeader, actor)
	}
	return req
}

// MCPClient connects an MCP client to /mcp, sending token and actor on
// every request.
func (ts *TestServer) MCPClient(t *testing.T, token, actor string) *sdkmcp.ClientSession {
	t.Helper()
	httpClient := &http.Client{Transport: &headerTransport{token: token, actor: actor, base: http.DefaultTransport}}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "testserver-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: httpClient,
		MaxRetries: -1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

type headerTransport struct {
	token string
	actor string
	base  http.RoundTripper
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	if h.actor != "" {
		req.Header.Set(transport.ActorHeader, h.actor)
	}
	return h.base.RoundTrip(req)
}
