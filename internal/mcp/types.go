package mcp

import (
	"github.com/rpggio/clmcore/internal/diff"
	"github.com/rpggio/clmcore/internal/domain/contract"
)

type CreateContractParams struct {
	ActorID        string `json:"actor_id,omitempty" jsonschema:"user performing the operation"`
	Title          string `json:"title" jsonschema:"contract title"`
	OwnerID        string `json:"owner_id" jsonschema:"user responsible for the contract"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
	RiskLevel      string `json:"risk_level,omitempty" jsonschema:"low, medium or high"`
	Value          string `json:"value,omitempty" jsonschema:"contract value as a decimal string"`
	Frequency      string `json:"frequency,omitempty" jsonschema:"billing frequency, e.g. annual"`
	EffectiveDate  string `json:"effective_date" jsonschema:"start date, YYYY-MM-DD"`
	EndDate        string `json:"end_date,omitempty" jsonschema:"end date, YYYY-MM-DD"`
	Content        string `json:"content,omitempty" jsonschema:"text of version 1"`
}

func (p CreateContractParams) input() contract.CreateInput {
	return contract.CreateInput{
		Title:          p.Title,
		OwnerID:        p.OwnerID,
		CounterpartyID: p.CounterpartyID,
		RiskLevel:      p.RiskLevel,
		Value:          p.Value,
		Frequency:      p.Frequency,
		EffectiveDate:  p.EffectiveDate,
		EndDate:        p.EndDate,
		Content:        p.Content,
	}
}

type ContractIDParams struct {
	ID string `json:"id" jsonschema:"contract ID"`
}

type TransitionParams struct {
	ID               string         `json:"id" jsonschema:"contract ID"`
	ActorID          string         `json:"actor_id,omitempty" jsonschema:"user performing the operation"`
	Action           string         `json:"action" jsonschema:"target status (e.g. IN_REVIEW, PENDING_APPROVAL) or workflow verb (e.g. APPROVE_STEP, RENEW_AS_IS)"`
	Payload          map[string]any `json:"payload,omitempty" jsonschema:"action payload"`
	ExpectedRevision int64          `json:"expected_revision,omitempty" jsonschema:"reject the action if the contract is no longer at this revision"`
}

type TermsParams struct {
	Value         *string `json:"value,omitempty" jsonschema:"decimal string"`
	Frequency     *string `json:"frequency,omitempty"`
	EffectiveDate *string `json:"effective_date,omitempty" jsonschema:"YYYY-MM-DD"`
	EndDate       *string `json:"end_date,omitempty" jsonschema:"YYYY-MM-DD"`
}

func (p *TermsParams) terms() (contract.VersionTerms, error) {
	if p == nil {
		return contract.VersionTerms{}, nil
	}
	return contract.TermsInput{
		Value:         p.Value,
		Frequency:     p.Frequency,
		EffectiveDate: p.EffectiveDate,
		EndDate:       p.EndDate,
	}.Terms()
}

type CreateVersionParams struct {
	ID      string       `json:"id" jsonschema:"contract ID"`
	ActorID string       `json:"actor_id,omitempty"`
	Content string       `json:"content" jsonschema:"full text of the new version"`
	Terms   *TermsParams `json:"terms,omitempty" jsonschema:"term overrides; omitted fields keep the previous value"`
}

type UpdateDraftVersionParams struct {
	ID        string       `json:"id" jsonschema:"contract ID"`
	VersionID string       `json:"version_id" jsonschema:"ID of the latest, never-submitted version"`
	ActorID   string       `json:"actor_id,omitempty"`
	Content   *string      `json:"content,omitempty"`
	Terms     *TermsParams `json:"terms,omitempty"`
}

type AdvanceSigningParams struct {
	ID      string `json:"id" jsonschema:"contract ID"`
	ActorID string `json:"actor_id,omitempty"`
}

type RenewalFeedbackParams struct {
	ID       string   `json:"id" jsonschema:"contract ID"`
	ActorID  string   `json:"actor_id,omitempty" jsonschema:"feedback author"`
	Body     string   `json:"body"`
	Mentions []string `json:"mentions,omitempty" jsonschema:"user IDs to notify"`
}

type DiffTextParams struct {
	Old string `json:"old" jsonschema:"original text"`
	New string `json:"new" jsonschema:"revised text"`
}

type DiffVersionsParams struct {
	ID   string `json:"id" jsonschema:"contract ID"`
	From int    `json:"from" jsonschema:"base version number"`
	To   int    `json:"to" jsonschema:"compared version number"`
}

type ListActivityParams struct {
	ContractID string `json:"contract_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Type       string `json:"type,omitempty" jsonschema:"activity type, e.g. transition or version_created"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

type DiffResult struct {
	Edits []diff.Edit `json:"edits"`
	Stats diff.Stats  `json:"stats"`
	Text  string      `json:"text"`
}
