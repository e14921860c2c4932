package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/clmcore/internal/cache"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
	"github.com/rpggio/clmcore/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type staticResolver struct{}

func (staticResolver) ResolveTenant(context.Context, string) (string, error) {
	return "tenant1", nil
}

func newServices(t *testing.T) Services {
	t.Helper()
	db, err := sqlite.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	return Services{
		Contracts: contract.NewService(
			sqlite.NewContractStore(db),
			cache.New[*contract.Contract](16, (*contract.Contract).Clone),
			contract.DefaultPolicy(),
			nil,
		),
		Activity: activity.NewService(sqlite.NewActivityRepository(db), nil),
	}
}

func connect(t *testing.T, cfg Config) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(cfg)
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func mustCall[T any](t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) T {
	t.Helper()
	text, isErr := callTool(t, cs, name, args)
	require.False(t, isErr, "tool %s failed: %s", name, text)
	var out T
	require.NoError(t, json.Unmarshal([]byte(text), &out), text)
	return out
}

func toolError(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) APIError {
	t.Helper()
	text, isErr := callTool(t, cs, name, args)
	require.True(t, isErr, "tool %s unexpectedly succeeded: %s", name, text)
	var apiErr APIError
	require.NoError(t, json.Unmarshal([]byte(text), &apiErr), text)
	return apiErr
}

func TestTools_Listed(t *testing.T) {
	cs := connect(t, Config{Services: newServices(t), TransportMode: "stdio"})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"create_contract", "get_contract", "transition_contract", "create_version",
		"update_draft_version", "advance_signing", "add_renewal_feedback",
		"lifetime_value", "diff_text", "diff_versions", "list_activity",
	} {
		require.True(t, names[want], "missing tool %s", want)
	}
}

func TestTools_ContractToExecution(t *testing.T) {
	cs := connect(t, Config{Services: newServices(t), TransportMode: "stdio"})

	c := mustCall[contract.Contract](t, cs, "create_contract", map[string]any{
		"actor_id":       "olivia",
		"title":          "Hosting Agreement",
		"owner_id":       "olivia",
		"value":          "100000",
		"effective_date": "2023-01-15",
		"end_date":       "2024-01-14",
		"content":        "1. Services\n2. Fees",
	})
	require.Equal(t, contract.StatusDraft, c.Status)
	require.Equal(t, "default", c.TenantID)

	mustCall[contract.Result](t, cs, "transition_contract", map[string]any{
		"id": c.ID, "actor_id": "olivia", "action": "IN_REVIEW",
	})
	res := mustCall[contract.Result](t, cs, "transition_contract", map[string]any{
		"id": c.ID, "actor_id": "olivia", "action": "PENDING_APPROVAL",
		"payload": map[string]any{"version_id": c.Versions[0].ID, "approvers": []string{"alice"}},
	})
	require.Len(t, res.Notifications, 1)
	require.Equal(t, "alice", res.Notifications[0].TargetUserID)

	res = mustCall[contract.Result](t, cs, "transition_contract", map[string]any{
		"id": c.ID, "actor_id": "alice", "action": "APPROVE_STEP",
		"payload": map[string]any{"step_id": res.Contract.ApprovalSteps[0].ID},
	})
	require.Equal(t, contract.StatusApproved, res.Contract.Status)

	mustCall[contract.Result](t, cs, "transition_contract", map[string]any{
		"id": c.ID, "actor_id": "olivia", "action": "SENT_FOR_SIGNATURE",
	})
	mustCall[contract.Result](t, cs, "advance_signing", map[string]any{"id": c.ID, "actor_id": "olivia"})
	res = mustCall[contract.Result](t, cs, "advance_signing", map[string]any{"id": c.ID, "actor_id": "acme"})
	require.Equal(t, contract.StatusFullyExecuted, res.Contract.Status)

	got := mustCall[contract.Contract](t, cs, "get_contract", map[string]any{"id": c.ID})
	require.Equal(t, contract.StatusFullyExecuted, got.Status)

	entries := mustCall[struct {
		Entries []activity.ActivityEntry `json:"entries"`
	}](t, cs, "list_activity", map[string]any{"contract_id": c.ID}).Entries
	require.Len(t, entries, 7)
	require.Equal(t, "ADVANCE_SIGNING", entries[0].Action)
}

func TestTools_ErrorCodes(t *testing.T) {
	cs := connect(t, Config{Services: newServices(t), TransportMode: "stdio"})

	c := mustCall[contract.Contract](t, cs, "create_contract", map[string]any{
		"title": "NDA", "owner_id": "olivia", "effective_date": "2024-03-01",
	})

	apiErr := toolError(t, cs, "get_contract", map[string]any{"id": "missing"})
	require.Equal(t, "NOT_FOUND", apiErr.Code)
	require.Equal(t, "contract not found", apiErr.Message)

	apiErr = toolError(t, cs, "transition_contract", map[string]any{"id": c.ID, "action": "ACTIVE"})
	require.Equal(t, "INVALID_TRANSITION", apiErr.Code)
	require.Equal(t, "cannot move from DRAFT to ACTIVE", apiErr.Message)

	apiErr = toolError(t, cs, "transition_contract", map[string]any{"id": c.ID, "action": "IN_REVIEW", "expected_revision": 5})
	require.Equal(t, "CONFLICT", apiErr.Code)

	apiErr = toolError(t, cs, "transition_contract", map[string]any{
		"id": c.ID, "action": "APPROVE_STEP", "payload": map[string]any{"step": "x"},
	})
	require.Equal(t, "VALIDATION_ERROR", apiErr.Code)

	apiErr = toolError(t, cs, "create_contract", map[string]any{
		"title": "NDA", "owner_id": "olivia", "effective_date": "March 1",
	})
	require.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

func TestTools_Versions(t *testing.T) {
	cs := connect(t, Config{Services: newServices(t), TransportMode: "stdio"})

	c := mustCall[contract.Contract](t, cs, "create_contract", map[string]any{
		"actor_id": "olivia", "title": "NDA", "owner_id": "olivia",
		"effective_date": "2024-03-01", "content": "a\nb\nc",
	})

	res := mustCall[contract.Result](t, cs, "update_draft_version", map[string]any{
		"id": c.ID, "version_id": c.Versions[0].ID, "content": "a\nB\nc",
		"terms": map[string]any{"value": "2500"},
	})
	require.Equal(t, "2500", res.Version.Value.String())

	res = mustCall[contract.Result](t, cs, "create_version", map[string]any{
		"id": c.ID, "actor_id": "olivia", "content": "a\nB\nc\nd",
	})
	require.Equal(t, 2, res.Version.VersionNumber)

	d := mustCall[DiffResult](t, cs, "diff_versions", map[string]any{"id": c.ID, "from": 1, "to": 2})
	require.Equal(t, 1, d.Stats.Added)
	require.Equal(t, 0, d.Stats.Removed)

	d = mustCall[DiffResult](t, cs, "diff_text", map[string]any{"old": "x\ny", "new": "y\nx"})
	require.Len(t, d.Edits, 3)
	require.NotEmpty(t, d.Text)

	ltv := mustCall[contract.LifetimeValue](t, cs, "lifetime_value", map[string]any{"id": c.ID})
	require.Len(t, ltv.Chain, 1)

	apiErr := toolError(t, cs, "add_renewal_feedback", map[string]any{"id": c.ID, "actor_id": "olivia", "body": "hi"})
	require.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestTools_AuthRequiredOverHTTP(t *testing.T) {
	cs := connect(t, Config{
		Services:      newServices(t),
		TransportMode: "http",
		AuthEnabled:   true,
		Resolver:      staticResolver{},
	})

	_, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "get_contract",
		Arguments: map[string]any{"id": "anything"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unauthorized")
}

func TestDocResources(t *testing.T) {
	cs := connect(t, Config{Services: newServices(t), TransportMode: "stdio"})

	res, err := cs.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "clm://docs/renewals"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "RENEW_AS_IS")
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Nil(t, MapError(fmt.Errorf("disk full")))
	require.Equal(t, "VALIDATION_ERROR", MapError(activity.ErrInvalidInput).Code)

	_, err := contract.ParseAction("NOPE", nil)
	apiErr := MapError(err)
	require.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	require.Equal(t, `unknown action "NOPE"`, apiErr.Message)
}
