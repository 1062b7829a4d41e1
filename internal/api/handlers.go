package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/insightservice"
	"github.com/starford/mindyard/internal/models"
)

// maxBodyBytes bounds request bodies; the service enforces the note limit.
const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *insightservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *insightservice.Service) *Handler {
	return &Handler{svc: svc}
}

// decode reads a JSON body into v and runs its Validate method.
func decode(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// SubmitNote handles POST /api/submissions.
//
//	@Summary		Submit a raw note for asynchronous distillation
//	@Tags			submissions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SubmitNoteRequest	true	"Raw note"
//	@Success		202		{object}	SubmissionAccepted
//	@Failure		400		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/submissions [post]
func (h *Handler) SubmitNote(w http.ResponseWriter, r *http.Request) {
	var req SubmitNoteRequest
	if !decode(w, r, &req) {
		return
	}
	var ts time.Time
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	id, err := h.svc.SubmitRawNote(r.Context(), req.UserID, req.Text, ts)
	if err != nil {
		writeError(w, "submit note", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmissionAccepted{SubmissionID: id, Status: models.SubmissionPending})
}

// GetSubmission handles GET /api/submissions/{id}.
//
//	@Summary		Get the status of a submission
//	@Tags			submissions
//	@Produce		json
//	@Param			id	path		string	true	"Submission id"
//	@Success		200	{object}	Submission
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/submissions/{id} [get]
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get submission", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ListMatches handles GET /api/matches.
//
//	@Summary		List serendipitous matches for a user
//	@Tags			matches
//	@Produce		json
//	@Param			user_id		query		string	true	"User id"
//	@Param			min_score	query		number	false	"Minimum score in [0,1]; configured default when omitted"
//	@Success		200			{object}	MatchesResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/matches [get]
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minScore := -1.0
	if raw := q.Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
			writeJSON(w, http.StatusBadRequest, errorBody(apperr.MsgInvalid))
			return
		}
		minScore = v
	}

	matches, err := h.svc.ListMatches(r.Context(), q.Get("user_id"), minScore)
	if err != nil && !errors.Is(err, apperr.ErrMatchTimeout) {
		writeError(w, "list matches", err)
		return
	}
	resp := MatchesResponse{Matches: matches}
	if resp.Matches == nil {
		resp.Matches = []models.MatchCandidate{}
	}
	if len(resp.Matches) == 0 || err != nil {
		resp.Message = apperr.MsgNoMatches
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListInsights handles GET /api/insights.
//
//	@Summary		List or search stored insights
//	@Tags			insights
//	@Produce		json
//	@Param			q		query		string	false	"Full-text query over abstracted statements"
//	@Param			topic	query		string	false	"Filter by topic tag"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	InsightListResponse
//	@Security		BearerAuth
//	@Router			/insights [get]
func (h *Handler) ListInsights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	if query := q.Get("q"); query != "" {
		results, err := h.svc.SearchInsights(r.Context(), query, limit)
		if err != nil {
			writeError(w, "search insights", err)
			return
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: results})
		return
	}

	items, total, err := h.svc.ListInsights(r.Context(), limit, offset, q.Get("topic"))
	if err != nil {
		writeError(w, "list insights", err)
		return
	}
	if items == nil {
		items = []models.InsightRecord{}
	}
	writeJSON(w, http.StatusOK, InsightListResponse{Insights: items, Total: total})
}

// GetInsight handles GET /api/insights/{id}.
//
//	@Summary		Get one insight record for audit views
//	@Tags			insights
//	@Produce		json
//	@Param			id	path		string	true	"Record id"
//	@Success		200	{object}	InsightView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/insights/{id} [get]
func (h *Handler) GetInsight(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetInsightRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get insight", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SubmitCorrection handles POST /api/insights/{id}/corrections.
//
//	@Summary		Correct one of the user's insights
//	@Tags			insights
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Record id"
//	@Param			body	body		CorrectionRequest	true	"Corrected note"
//	@Success		202		{object}	SubmissionAccepted
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/insights/{id}/corrections [post]
func (h *Handler) SubmitCorrection(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.svc.SubmitCorrection(r.Context(), req.UserID, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, "submit correction", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmissionAccepted{SubmissionID: id, Status: models.SubmissionPending})
}

// AuditLog handles GET /api/audit.
//
//	@Summary		Page through the sanitization audit log
//	@Tags			audit
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries"
//	@Param			after	query		int	false	"Return entries after this sequence number"
//	@Success		200		{object}	AuditResponse
//	@Security		BearerAuth
//	@Router			/audit [get]
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
	entries, err := h.svc.AuditLog(r.Context(), limit, after)
	if err != nil {
		writeError(w, "audit log", err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, AuditResponse{Entries: entries})
}
