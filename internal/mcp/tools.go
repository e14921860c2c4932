package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/clmcore/internal/diff"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
)

type toolset struct {
	contracts ContractService
	activity  ActivityService
	logger    *slog.Logger
}

func registerTools(server *sdkmcp.Server, services Services, logger *slog.Logger) {
	t := &toolset{contracts: services.Contracts, activity: services.Activity, logger: logger}

	// Contracts
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_contract",
		Description: "Create a contract in DRAFT with its first version",
	}, t.createContract)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_contract",
		Description: "Get a contract with its versions, active approval round and renewal request",
	}, t.getContract)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name: "transition_contract",
		Description: "Apply one lifecycle action: a target status (IN_REVIEW, PENDING_APPROVAL, APPROVED, " +
			"SENT_FOR_SIGNATURE, ACTIVE, EXPIRED, TERMINATED, ARCHIVED, ...) or a workflow verb " +
			"(APPROVE_STEP, REJECT_STEP, REQUEST_CHANGES, START_RENEWAL, RENEW_AS_IS, RENEW_AMEND_START, " +
			"RENEW_RENEGOTIATE_START, RENEW_DECIDE_TERMINATE, CANCEL_RENEWAL). Returns the contract and notification intents",
	}, t.transition)

	// Versions
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_version",
		Description: "Append a version. Resets any approval round or signature in flight",
	}, t.createVersion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_draft_version",
		Description: "Edit the latest version of a DRAFT contract in place, if it was never submitted for approval",
	}, t.updateDraftVersion)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "diff_versions",
		Description: "Line diff between two versions of a contract, by version number",
	}, t.diffVersions)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "diff_text",
		Description: "Minimal line diff between two texts",
	}, t.diffText)

	// Signing and renewal
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "advance_signing",
		Description: "Record the next signature on a contract SENT_FOR_SIGNATURE",
	}, t.advanceSigning)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_renewal_feedback",
		Description: "Comment on the live renewal request and notify mentioned users",
	}, t.addRenewalFeedback)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "lifetime_value",
		Description: "Sum of the contract's value and every predecessor it renewed",
	}, t.lifetimeValue)

	// Audit
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_activity",
		Description: "Recent audit trail entries, newest first",
	}, t.listActivity)
}

func actor(req *sdkmcp.CallToolRequest, actorID string) string {
	if id := strings.TrimSpace(actorID); id != "" {
		return id
	}
	return actorFromRequest(req)
}

func (t *toolset) createContract(ctx context.Context, req *sdkmcp.CallToolRequest, p CreateContractParams) (*sdkmcp.CallToolResult, any, error) {
	in, err := p.input().Request(actor(req, p.ActorID))
	if err != nil {
		return t.fail(err)
	}
	c, err := t.contracts.Create(ctx, getTenantID(ctx), in)
	if err != nil {
		return t.fail(err)
	}
	return t.ok(c)
}

func (t *toolset) getContract(ctx context.Context, _ *sdkmcp.CallToolRequest, p ContractIDParams) (*sdkmcp.CallToolResult, any, error) {
	c, err := t.contracts.Get(ctx, getTenantID(ctx), p.ID)
	if err != nil {
		return t.fail(err)
	}
	return t.ok(c)
}

func (t *toolset) transition(ctx context.Context, req *sdkmcp.CallToolRequest, p TransitionParams) (*sdkmcp.CallToolResult, any, error) {
	var payload json.RawMessage
	if p.Payload != nil {
		data, err := json.Marshal(p.Payload)
		if err != nil {
			return nil, nil, err
		}
		payload = data
	}
	action, err := contract.ParseAction(p.Action, payload)
	if err != nil {
		return t.fail(err)
	}
	res, err := t.contracts.Transition(ctx, getTenantID(ctx), contract.TransitionRequest{
		ContractID:       p.ID,
		ActorID:          actor(req, p.ActorID),
		Action:           action,
		ExpectedRevision: p.ExpectedRevision,
	})
	if err != nil {
		return t.fail(err)
	}
	return t.ok(res)
}

func (t *toolset) createVersion(ctx context.Context, req *sdkmcp.CallToolRequest, p CreateVersionParams) (*sdkmcp.CallToolResult, any, error) {
	terms, err := p.Terms.terms()
	if err != nil {
		return t.fail(err)
	}
	res, err := t.contracts.CreateVersion(ctx, getTenantID(ctx), contract.CreateVersionRequest{
		ContractID: p.ID,
		ActorID:    actor(req, p.ActorID),
		Content:    p.Content,
		Terms:      terms,
	})
	if err != nil {
		return t.fail(err)
	}
	return t.ok(res)
}

func (t *toolset) updateDraftVersion(ctx context.Context, req *sdkmcp.CallToolRequest, p UpdateDraftVersionParams) (*sdkmcp.CallToolResult, any, error) {
	terms, err := p.Terms.terms()
	if err != nil {
		return t.fail(err)
	}
	res, err := t.contracts.UpdateDraftVersion(ctx, getTenantID(ctx), contract.UpdateDraftRequest{
		ContractID: p.ID,
		VersionID:  p.VersionID,
		ActorID:    actor(req, p.ActorID),
		Content:    p.Content,
		Terms:      terms,
	})
	if err != nil {
		return t.fail(err)
	}
	return t.ok(res)
}

func (t *toolset) advanceSigning(ctx context.Context, req *sdkmcp.CallToolRequest, p AdvanceSigningParams) (*sdkmcp.CallToolResult, any, error) {
	res, err := t.contracts.AdvanceSigning(ctx, getTenantID(ctx), p.ID, actor(req, p.ActorID))
	if err != nil {
		return t.fail(err)
	}
	return t.ok(res)
}

func (t *toolset) addRenewalFeedback(ctx context.Context, req *sdkmcp.CallToolRequest, p RenewalFeedbackParams) (*sdkmcp.CallToolResult, any, error) {
	res, err := t.contracts.AddRenewalFeedback(ctx, getTenantID(ctx), contract.FeedbackRequest{
		ContractID: p.ID,
		ActorID:    actor(req, p.ActorID),
		Body:       p.Body,
		Mentions:   p.Mentions,
	})
	if err != nil {
		return t.fail(err)
	}
	return t.ok(res)
}

func (t *toolset) lifetimeValue(ctx context.Context, _ *sdkmcp.CallToolRequest, p ContractIDParams) (*sdkmcp.CallToolResult, any, error) {
	ltv, err := t.contracts.LifetimeValue(ctx, getTenantID(ctx), p.ID)
	if err != nil {
		return t.fail(err)
	}
	return t.ok(ltv)
}

func (t *toolset) diffVersions(ctx context.Context, _ *sdkmcp.CallToolRequest, p DiffVersionsParams) (*sdkmcp.CallToolResult, any, error) {
	edits, err := t.contracts.DiffVersions(ctx, getTenantID(ctx), p.ID, p.From, p.To)
	if err != nil {
		return t.fail(err)
	}
	return t.ok(DiffResult{Edits: edits, Stats: diff.Summarize(edits), Text: diff.Render(edits)})
}

func (t *toolset) diffText(_ context.Context, _ *sdkmcp.CallToolRequest, p DiffTextParams) (*sdkmcp.CallToolResult, any, error) {
	edits := diff.Lines(p.Old, p.New)
	return t.ok(DiffResult{Edits: edits, Stats: diff.Summarize(edits), Text: diff.Render(edits)})
}

func (t *toolset) listActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, p ListActivityParams) (*sdkmcp.CallToolResult, any, error) {
	opts := activity.ListActivityOptions{
		ContractID: p.ContractID,
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
	if p.ActorID != "" {
		opts.ActorID = &p.ActorID
	}
	if p.Type != "" {
		kind := activity.ActivityType(p.Type)
		opts.ActivityType = &kind
	}
	entries, err := t.activity.GetRecentActivity(ctx, getTenantID(ctx), opts)
	if err != nil {
		return t.fail(err)
	}
	return t.ok(map[string]any{"entries": entries})
}

// ok returns v as the JSON text content of the result.
func (t *toolset) ok(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// fail reports err as a tool error carrying an APIError. Errors without a
// lifecycle kind are logged and reported as INTERNAL.
func (t *toolset) fail(err error) (*sdkmcp.CallToolResult, any, error) {
	apiErr := MapError(err)
	if apiErr == nil {
		t.logger.Error("tool call failed", "error", err)
		apiErr = &APIError{Code: "INTERNAL", Message: "internal error"}
	}
	data, mErr := json.Marshal(apiErr)
	if mErr != nil {
		return nil, nil, mErr
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
