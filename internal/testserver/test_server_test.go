package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, ts *TestServer, method, path string, body any, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	resp, err := http.DefaultClient.Do(ts.Request(t, method, path, reader, token, "olivia"))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func toolText(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestRESTAndMCPShareOneCore(t *testing.T) {
	ts := New(t, "acme-token", "acme")
	ctx := context.Background()

	status, data := do(t, ts, http.MethodPost, "/contracts", map[string]any{
		"title":          "Support Agreement",
		"owner_id":       "olivia",
		"value":          "24000",
		"effective_date": "2024-03-01",
		"end_date":       "2025-02-28",
		"content":        "1. Scope",
	}, ts.Token)
	require.Equal(t, http.StatusCreated, status, string(data))
	var created contract.Contract
	require.NoError(t, json.Unmarshal(data, &created))

	cs := ts.MCPClient(t, ts.Token, "olivia")

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "get_contract",
		Arguments: map[string]any{"id": created.ID},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, toolText(t, res))
	var fetched contract.Contract
	require.NoError(t, json.Unmarshal([]byte(toolText(t, res)), &fetched))
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, "acme", fetched.TenantID)

	// The actor falls back to the X-Actor-Id header of the MCP request.
	res, err = cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "transition_contract",
		Arguments: map[string]any{"id": created.ID, "action": "IN_REVIEW"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, toolText(t, res))

	status, data = do(t, ts, http.MethodGet, "/contracts/"+created.ID, nil, ts.Token)
	require.Equal(t, http.StatusOK, status, string(data))
	var current contract.Contract
	require.NoError(t, json.Unmarshal(data, &current))
	require.Equal(t, contract.StatusInReview, current.Status)
	require.Equal(t, created.Revision+1, current.Revision)

	status, data = do(t, ts, http.MethodGet, "/contracts/"+created.ID+"/activity?limit=1", nil, ts.Token)
	require.Equal(t, http.StatusOK, status, string(data))
	var page struct {
		Entries []activity.ActivityEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Entries, 1)
	require.Equal(t, "IN_REVIEW", page.Entries[0].ToStatus)
	require.Equal(t, "olivia", page.Entries[0].ActorID)
}

func TestTenantIsolation(t *testing.T) {
	ts := New(t, "acme-token", "acme")
	require.NoError(t, ts.AddAPIKey("globex-token", "globex"))

	status, data := do(t, ts, http.MethodPost, "/contracts", map[string]any{
		"title":          "NDA",
		"owner_id":       "olivia",
		"effective_date": "2024-01-01",
	}, ts.Token)
	require.Equal(t, http.StatusCreated, status, string(data))
	var created contract.Contract
	require.NoError(t, json.Unmarshal(data, &created))

	status, _ = do(t, ts, http.MethodGet, "/contracts/"+created.ID, nil, "globex-token")
	require.Equal(t, http.StatusNotFound, status)

	cs := ts.MCPClient(t, "globex-token", "olivia")
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "get_contract",
		Arguments: map[string]any{"id": created.ID},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, toolText(t, res), "NOT_FOUND")
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts := New(t, "acme-token", "acme")

	status, _ := do(t, ts, http.MethodGet, "/contracts/anything", nil, "")
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, ts, http.MethodGet, "/contracts/anything", nil, "wrong-token")
	require.Equal(t, http.StatusUnauthorized, status)

	cs := ts.MCPClient(t, "wrong-token", "olivia")
	_, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "get_contract",
		Arguments: map[string]any{"id": "anything"},
	})
	require.Error(t, err)
}
