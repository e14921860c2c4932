package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/clmcore/internal/diff"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
)

type transitionBody struct {
	Action           string          `json:"action"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	ExpectedRevision int64           `json:"expected_revision,omitempty"`
}

type versionBody struct {
	Content string              `json:"content"`
	Terms   contract.TermsInput `json:"terms"`
}

type draftBody struct {
	Content *string             `json:"content,omitempty"`
	Terms   contract.TermsInput `json:"terms"`
}

type feedbackBody struct {
	Body     string   `json:"body"`
	Mentions []string `json:"mentions,omitempty"`
}

type diffTextBody struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type diffResponse struct {
	Edits []diff.Edit `json:"edits"`
	Stats diff.Stats  `json:"stats"`
	Text  string      `json:"text,omitempty"`
}

func tenantOf(r *http.Request) string {
	tenantID, _ := TenantFromContext(r.Context())
	return tenantID
}

// decode reads the body into dst, answering 400 on malformed JSON.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := readJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in contract.CreateInput
	if !decode(w, r, &in) {
		return
	}
	req, err := in.Request(ActorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.contracts.Create(r.Context(), tenantOf(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.contracts.Get(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if !decode(w, r, &body) {
		return
	}
	action, err := contract.ParseAction(body.Action, body.Payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.contracts.Transition(r.Context(), tenantOf(r), contract.TransitionRequest{
		ContractID:       chi.URLParam(r, "id"),
		ActorID:          ActorFromContext(r.Context()),
		Action:           action,
		ExpectedRevision: body.ExpectedRevision,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	var body versionBody
	if !decode(w, r, &body) {
		return
	}
	terms, err := body.Terms.Terms()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.contracts.CreateVersion(r.Context(), tenantOf(r), contract.CreateVersionRequest{
		ContractID: chi.URLParam(r, "id"),
		ActorID:    ActorFromContext(r.Context()),
		Content:    body.Content,
		Terms:      terms,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var body draftBody
	if !decode(w, r, &body) {
		return
	}
	terms, err := body.Terms.Terms()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.contracts.UpdateDraftVersion(r.Context(), tenantOf(r), contract.UpdateDraftRequest{
		ContractID: chi.URLParam(r, "id"),
		VersionID:  chi.URLParam(r, "versionID"),
		ActorID:    ActorFromContext(r.Context()),
		Content:    body.Content,
		Terms:      terms,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdvanceSigning(w http.ResponseWriter, r *http.Request) {
	res, err := s.contracts.AdvanceSigning(r.Context(), tenantOf(r), chi.URLParam(r, "id"), ActorFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRenewalFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackBody
	if !decode(w, r, &body) {
		return
	}
	res, err := s.contracts.AddRenewalFeedback(r.Context(), tenantOf(r), contract.FeedbackRequest{
		ContractID: chi.URLParam(r, "id"),
		ActorID:    ActorFromContext(r.Context()),
		Body:       body.Body,
		Mentions:   body.Mentions,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleLifetimeValue(w http.ResponseWriter, r *http.Request) {
	ltv, err := s.contracts.LifetimeValue(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ltv)
}

func (s *Server) handleDiffVersions(w http.ResponseWriter, r *http.Request) {
	from, okFrom := queryInt(r, "from")
	to, okTo := queryInt(r, "to")
	if !okFrom || !okTo {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "from and to must be version numbers")
		return
	}
	edits, err := s.contracts.DiffVersions(r.Context(), tenantOf(r), chi.URLParam(r, "id"), from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diffResponse{Edits: edits, Stats: diff.Summarize(edits)})
}

func (s *Server) handleDiffText(w http.ResponseWriter, r *http.Request) {
	var body diffTextBody
	if !decode(w, r, &body) {
		return
	}
	edits := diff.Lines(body.Old, body.New)
	writeJSON(w, http.StatusOK, diffResponse{
		Edits: edits,
		Stats: diff.Summarize(edits),
		Text:  diff.Render(edits),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	opts := activity.ListActivityOptions{ContractID: chi.URLParam(r, "id")}
	if v, ok := queryInt(r, "limit"); ok {
		opts.Limit = v
	}
	if v, ok := queryInt(r, "offset"); ok {
		opts.Offset = v
	}
	if v := r.URL.Query().Get("type"); v != "" {
		kind := activity.ActivityType(v)
		opts.ActivityType = &kind
	}
	entries, err := s.activity.GetRecentActivity(r.Context(), tenantOf(r), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
