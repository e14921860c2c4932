package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `clmcore manages contracts from drafting through approval, signature, activity and renewal.

Core concepts:
- Contract: the aggregate. Owns its versions, the active approval round and at most one live renewal request.
- Version: numbered snapshot of content and terms. Submitting a version for approval locks it.
- Approval round: one step per approver. Any rejection or change request sends the contract back to IN_REVIEW.
- Renewal request: opened on an ACTIVE contract, then decided as renew as-is, amend, renegotiate or terminate.

Workflow:
1) create_contract, then transition_contract with action IN_REVIEW.
2) transition_contract PENDING_APPROVAL with payload {version_id, approvers}; each approver calls APPROVE_STEP, REJECT_STEP or REQUEST_CHANGES with {step_id}.
3) SENT_FOR_SIGNATURE, then advance_signing twice (internal, counterparty), then ACTIVE.
4) START_RENEWAL, then one of RENEW_AS_IS, RENEW_AMEND_START, RENEW_RENEGOTIATE_START, RENEW_DECIDE_TERMINATE.

Every mutating tool returns {contract, notifications}. Pass expected_revision to transition_contract to
fail with CONFLICT instead of acting on a contract someone else changed.

Docs:
- clm://docs/lifecycle
- clm://docs/renewals
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "clm://docs/lifecycle",
		Name:        "docs_lifecycle",
		Title:       "Contract lifecycle",
		Description: "Statuses, legal moves and what each move resets.",
		Content: `# Contract lifecycle

| From | Allowed targets |
|---|---|
| DRAFT | IN_REVIEW, PENDING_APPROVAL, ARCHIVED |
| IN_REVIEW | DRAFT, PENDING_APPROVAL, ARCHIVED |
| PENDING_APPROVAL | IN_REVIEW (round voided), ARCHIVED; APPROVED only through approvals |
| APPROVED | SENT_FOR_SIGNATURE, IN_REVIEW, ARCHIVED |
| SENT_FOR_SIGNATURE | FULLY_EXECUTED (normally via advance_signing), APPROVED, ARCHIVED |
| FULLY_EXECUTED | ACTIVE, ARCHIVED |
| ACTIVE | EXPIRED, TERMINATED, ARCHIVED, SUPERSEDED (renewal only) |
| EXPIRED, TERMINATED | ARCHIVED |

ARCHIVED and SUPERSEDED are terminal.

## Versions

- create_version is allowed up to SENT_FOR_SIGNATURE. Past IN_REVIEW it voids the approval round and
  returns the contract to IN_REVIEW.
- update_draft_version edits the latest version in place only while the contract is DRAFT and the
  version was never submitted.

## Errors

VALIDATION_ERROR, NOT_FOUND, CONFLICT and INVALID_TRANSITION carry a message meant for the user.
`,
	},
	{
		URI:         "clm://docs/renewals",
		Name:        "docs_renewals",
		Title:       "Renewals",
		Description: "The renewal decision tree and how successors settle their parent.",
		Content: `# Renewals

START_RENEWAL {renewal_owner_id?, renewal_term_months?, notice_period_days?, uplift_percent}
opens a request in DECISION_NEEDED. Only one live request per contract.

- RENEW_AS_IS {require_reexecution?}: successor ACTIVE with uplifted value, dates shifted by the term;
  the original becomes SUPERSEDED.
- RENEW_AMEND_START {content?}: a new version on the same contract; the request completes when the
  contract is ACTIVE again.
- RENEW_RENEGOTIATE_START {title?}: successor in DRAFT; the original is SUPERSEDED when the successor
  reaches ACTIVE, and the request is cancelled if the successor is archived.
- RENEW_DECIDE_TERMINATE {policy?: immediate | at_end_date}
- CANCEL_RENEWAL {reason?}

lifetime_value sums a contract with every predecessor it renewed.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
