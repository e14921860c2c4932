package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rpggio/clmcore/internal/cache"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
	"github.com/rpggio/clmcore/internal/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, auth func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	db, err := sqlite.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	contracts := contract.NewService(
		sqlite.NewContractStore(db),
		cache.New[*contract.Contract](16, (*contract.Contract).Clone),
		contract.DefaultPolicy(),
		nil,
	)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)

	if auth == nil {
		auth = StaticTenant("tenant1")
	}
	server := httptest.NewServer(NewServer(Config{
		Contracts: contracts,
		Activity:  activitySvc,
		Auth:      auth,
	}))
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, server *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "olivia")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeAs[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func createContract(t *testing.T, server *httptest.Server) *contract.Contract {
	t.Helper()
	status, data := call(t, server, http.MethodPost, "/contracts", map[string]any{
		"title":          "Hosting Agreement",
		"owner_id":       "olivia",
		"value":          "100000",
		"effective_date": "2023-01-15",
		"end_date":       "2024-01-14",
		"content":        "1. Services\n2. Fees",
	})
	require.Equal(t, http.StatusCreated, status, string(data))
	return decodeAs[*contract.Contract](t, data)
}

func transition(t *testing.T, server *httptest.Server, id string, body map[string]any) (int, []byte) {
	t.Helper()
	return call(t, server, http.MethodPost, "/contracts/"+id+"/transitions", body)
}

func TestHTTPServer_Health(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_ApprovalFlow(t *testing.T) {
	server := newTestServer(t, nil)
	c := createContract(t, server)
	require.Equal(t, contract.StatusDraft, c.Status)

	status, data := transition(t, server, c.ID, map[string]any{"action": "IN_REVIEW"})
	require.Equal(t, http.StatusOK, status, string(data))

	status, data = transition(t, server, c.ID, map[string]any{
		"action":  "PENDING_APPROVAL",
		"payload": map[string]any{"version_id": c.Versions[0].ID, "approvers": []string{"olivia"}},
	})
	require.Equal(t, http.StatusOK, status, string(data))
	res := decodeAs[contract.Result](t, data)
	require.Equal(t, contract.StatusPendingApproval, res.Contract.Status)
	require.Len(t, res.Contract.ApprovalSteps, 1)

	status, data = transition(t, server, c.ID, map[string]any{
		"action":  "APPROVE_STEP",
		"payload": map[string]any{"step_id": res.Contract.ApprovalSteps[0].ID},
	})
	require.Equal(t, http.StatusOK, status, string(data))
	res = decodeAs[contract.Result](t, data)
	require.Equal(t, contract.StatusApproved, res.Contract.Status)

	status, data = call(t, server, http.MethodGet, "/contracts/"+c.ID, nil)
	require.Equal(t, http.StatusOK, status)
	got := decodeAs[contract.Contract](t, data)
	require.Equal(t, contract.StatusApproved, got.Status)

	status, data = call(t, server, http.MethodGet, "/contracts/"+c.ID+"/activity?limit=2", nil)
	require.Equal(t, http.StatusOK, status)
	entries := decodeAs[struct {
		Entries []activity.ActivityEntry `json:"entries"`
	}](t, data).Entries
	require.Len(t, entries, 2)
	require.Equal(t, "APPROVE_STEP", entries[0].Action)
	require.Equal(t, "olivia", entries[0].ActorID)
}

func TestHTTPServer_ErrorMapping(t *testing.T) {
	server := newTestServer(t, nil)
	c := createContract(t, server)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		code    string
		message string
	}{
		{
			name: "unknown contract", method: http.MethodGet, path: "/contracts/missing",
			status: http.StatusNotFound, code: "NOT_FOUND", message: "contract not found",
		},
		{
			name: "unknown action", method: http.MethodPost, path: "/contracts/" + c.ID + "/transitions",
			body:   map[string]any{"action": "TELEPORT"},
			status: http.StatusBadRequest, code: "VALIDATION_ERROR", message: `unknown action "TELEPORT"`,
		},
		{
			name: "illegal move", method: http.MethodPost, path: "/contracts/" + c.ID + "/transitions",
			body:   map[string]any{"action": "ACTIVE"},
			status: http.StatusUnprocessableEntity, code: "INVALID_TRANSITION", message: "cannot move from DRAFT to ACTIVE",
		},
		{
			name: "stale revision", method: http.MethodPost, path: "/contracts/" + c.ID + "/transitions",
			body:   map[string]any{"action": "IN_REVIEW", "expected_revision": 7},
			status: http.StatusConflict, code: "CONFLICT",
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/contracts",
			body:   map[string]any{"title": "x", "surprise": true},
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name: "bad date", method: http.MethodPost, path: "/contracts",
			body:   map[string]any{"title": "x", "owner_id": "o", "effective_date": "tomorrow"},
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name: "feedback without renewal", method: http.MethodPost, path: "/contracts/" + c.ID + "/renewal/feedback",
			body:   map[string]any{"body": "thoughts"},
			status: http.StatusNotFound, code: "NOT_FOUND",
		},
		{
			name: "unknown activity type", method: http.MethodGet, path: "/contracts/" + c.ID + "/activity?type=deleted",
			status: http.StatusBadRequest, code: "VALIDATION_ERROR", message: `invalid activity query: unknown activity type "deleted"`,
		},
		{
			name: "diff without versions", method: http.MethodGet, path: "/contracts/" + c.ID + "/versions/diff?from=1",
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := call(t, server, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, status, string(data))
			body := decodeAs[errorBody](t, data)
			require.Equal(t, tt.code, body.Error.Code)
			require.NotEmpty(t, body.RequestID)
			if tt.message != "" {
				require.Equal(t, tt.message, body.Error.Message)
			}
		})
	}
}

func TestHTTPServer_Versions(t *testing.T) {
	server := newTestServer(t, nil)
	c := createContract(t, server)

	status, data := call(t, server, http.MethodPut, "/contracts/"+c.ID+"/versions/"+c.Versions[0].ID, map[string]any{
		"content": "1. Services\n2. Fees\n3. Term",
		"terms":   map[string]any{"value": "120000"},
	})
	require.Equal(t, http.StatusOK, status, string(data))
	res := decodeAs[contract.Result](t, data)
	require.Equal(t, "120000", res.Version.Value.String())

	status, data = call(t, server, http.MethodPost, "/contracts/"+c.ID+"/versions", map[string]any{
		"content": "1. Services\n2. Fees (revised)\n3. Term",
	})
	require.Equal(t, http.StatusCreated, status, string(data))
	res = decodeAs[contract.Result](t, data)
	require.Equal(t, 2, res.Version.VersionNumber)

	status, data = call(t, server, http.MethodGet, "/contracts/"+c.ID+"/versions/diff?from=1&to=2", nil)
	require.Equal(t, http.StatusOK, status, string(data))
	d := decodeAs[diffResponse](t, data)
	require.Equal(t, 1, d.Stats.Added)
	require.Equal(t, 1, d.Stats.Removed)
	require.Equal(t, 2, d.Stats.Common)
}

func TestHTTPServer_DiffText(t *testing.T) {
	server := newTestServer(t, nil)

	status, data := call(t, server, http.MethodPost, "/diff", map[string]any{"old": "a\nb", "new": "b\na"})
	require.Equal(t, http.StatusOK, status, string(data))
	d := decodeAs[diffResponse](t, data)
	require.Len(t, d.Edits, 3)
	require.NotEmpty(t, d.Text)
}

func TestHTTPServer_LifetimeValue(t *testing.T) {
	server := newTestServer(t, nil)
	c := createContract(t, server)

	status, data := call(t, server, http.MethodGet, "/contracts/"+c.ID+"/lifetime-value", nil)
	require.Equal(t, http.StatusOK, status, string(data))
	ltv := decodeAs[contract.LifetimeValue](t, data)
	require.Equal(t, "100000", ltv.Total.String())
	require.Len(t, ltv.Chain, 1)
}

func TestHTTPServer_RequiresAuth(t *testing.T) {
	resolver := &keyResolver{keys: map[string]string{"good": "tenant1"}}
	server := newTestServer(t, AuthMiddleware(resolver))

	status, _ := call(t, server, http.MethodGet, "/contracts/anything", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
