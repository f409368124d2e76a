package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/review"
	"github.com/vitaehq/vitae/internal/store"
	"github.com/vitaehq/vitae/internal/svcctx"
)

// reviewService builds the review service from request context services.
// Returns nil when the store or home directory are not available yet.
func reviewService(r *http.Request) *review.Service {
	st := svcctx.StoreFrom(r.Context())
	homeDir := svcctx.HomeFrom(r.Context())
	if st == nil || homeDir == nil {
		return nil
	}
	return review.NewService(st, homeDir, svcctx.LoggerFrom(r.Context()))
}

// ReviewQueueResponse lists documents waiting for review.
type ReviewQueueResponse struct {
	Documents []*store.Document `json:"documents"`
	Count     int               `json:"count"`
}

// ReviewQueueEndpoint handles GET /v1/review/queue.
type ReviewQueueEndpoint struct{}

var _ api.Endpoint = (*ReviewQueueEndpoint)(nil)

func (e *ReviewQueueEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/review/queue", e.handler
}

func (e *ReviewQueueEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List the review queue
//	@Description	List flagged documents with a pending review
//	@Tags			review
//	@Produce		json
//	@Success		200	{object}	ReviewQueueResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/review/queue [get]
func (e *ReviewQueueEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := reviewService(r)
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "review service not initialized")
		return
	}

	docs, err := svc.Queue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ReviewQueueResponse{Documents: docs, Count: len(docs)})
}

func (e *ReviewQueueEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List documents waiting for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReviewQueueResponse
			if err := client.Get(cmd.Context(), "/v1/review/queue", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetReviewEndpoint handles GET /v1/review/{id}.
// The detail bundles the document row, its recorded issues and the
// assembled result so a reviewer sees everything in one read.
type GetReviewEndpoint struct{}

func (e *GetReviewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/review/{id}", e.handler
}

func (e *GetReviewEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get review detail
//	@Description	Get a document with its issues and extraction result for review
//	@Tags			review
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	review.Detail
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/review/{id} [get]
func (e *GetReviewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := reviewService(r)
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "review service not initialized")
		return
	}

	detail, err := svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (e *GetReviewEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <document-id>",
		Short: "Get review detail for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp review.Detail
			if err := client.Get(cmd.Context(), "/v1/review/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// FeedbackRequest is the request body for review feedback.
type FeedbackRequest struct {
	Reviewer string `json:"reviewer,omitempty"`
	Verdict  string `json:"verdict"`
	Notes    string `json:"notes,omitempty"`
}

// FeedbackEndpoint handles POST /v1/review/{id}/feedback.
type FeedbackEndpoint struct{}

func (e *FeedbackEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/review/{id}/feedback", e.handler
}

func (e *FeedbackEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Record review feedback
//	@Description	Record a reviewer verdict with optional notes
//	@Tags			review
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Document ID"
//	@Param			body	body		FeedbackRequest	true	"Feedback"
//	@Success		201		{object}	FeedbackRequest
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/v1/review/{id}/feedback [post]
func (e *FeedbackEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := reviewService(r)
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "review service not initialized")
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	err := svc.SubmitFeedback(r.Context(), r.PathValue("id"), req.Reviewer, req.Verdict, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (e *FeedbackEndpoint) Command(getServerURL func() string) *cobra.Command {
	var reviewer, verdict, notes string
	cmd := &cobra.Command{
		Use:   "feedback <document-id>",
		Short: "Record review feedback for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := FeedbackRequest{Reviewer: reviewer, Verdict: verdict, Notes: notes}
			var resp FeedbackRequest
			if err := client.Post(cmd.Context(), "/v1/review/"+args[0]+"/feedback", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer name")
	cmd.Flags().StringVar(&verdict, "verdict", "", "Verdict (approve, reject, correct)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("verdict")
	return cmd
}

// CorrectionsRequest carries field-level corrections for a document.
type CorrectionsRequest struct {
	Fields map[string]any `json:"fields"`
}

// CorrectionsEndpoint handles POST /v1/review/{id}/corrections.
type CorrectionsEndpoint struct{}

func (e *CorrectionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/review/{id}/corrections", e.handler
}

func (e *CorrectionsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Apply corrections
//	@Description	Apply reviewer corrections to an extraction result. The corrected record must still pass schema validation.
//	@Tags			review
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Document ID"
//	@Param			body	body		CorrectionsRequest	true	"Corrected fields"
//	@Success		200		{object}	review.Detail
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/v1/review/{id}/corrections [post]
func (e *CorrectionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := reviewService(r)
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "review service not initialized")
		return
	}

	var req CorrectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to correct")
		return
	}

	id := r.PathValue("id")
	if err := svc.ApplyCorrections(r.Context(), id, req.Fields); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, review.ErrUnknownField):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	detail, err := svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (e *CorrectionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var fieldsJSON string
	cmd := &cobra.Command{
		Use:   "correct <document-id>",
		Short: "Apply field corrections to an extraction result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields map[string]any
			if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
				return errors.New("--fields must be a JSON object, e.g. '{\"Name\": \"Jane Doe\"}'")
			}

			client := api.NewClient(getServerURL())
			var resp review.Detail
			err := client.Post(cmd.Context(), "/v1/review/"+args[0]+"/corrections", CorrectionsRequest{Fields: fields}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&fieldsJSON, "fields", "", "Corrected fields as a JSON object")
	_ = cmd.MarkFlagRequired("fields")
	return cmd
}

// ReviewActionResponse reports the document state after approve/reject.
type ReviewActionResponse struct {
	Document *store.Document `json:"document"`
}

// ApproveEndpoint handles POST /v1/review/{id}/approve.
type ApproveEndpoint struct{}

func (e *ApproveEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/review/{id}/approve", e.handler
}

func (e *ApproveEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Approve a document
//	@Description	Resolve a pending review as approved; the document becomes validated
//	@Tags			review
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	ReviewActionResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/review/{id}/approve [post]
func (e *ApproveEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolveReview(w, r, func(svc *review.Service, id string) error {
		return svc.Approve(r.Context(), id)
	})
}

func (e *ApproveEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <document-id>",
		Short: "Approve a reviewed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReviewActionResponse
			if err := client.Post(cmd.Context(), "/v1/review/"+args[0]+"/approve", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RejectEndpoint handles POST /v1/review/{id}/reject.
type RejectEndpoint struct{}

func (e *RejectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/review/{id}/reject", e.handler
}

func (e *RejectEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Reject a document
//	@Description	Resolve a pending review as rejected; the extraction stays unvalidated
//	@Tags			review
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	ReviewActionResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/review/{id}/reject [post]
func (e *RejectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolveReview(w, r, func(svc *review.Service, id string) error {
		return svc.Reject(r.Context(), id)
	})
}

func (e *RejectEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <document-id>",
		Short: "Reject a reviewed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReviewActionResponse
			if err := client.Post(cmd.Context(), "/v1/review/"+args[0]+"/reject", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// resolveReview runs an approve/reject action and writes the updated
// document row back.
func resolveReview(w http.ResponseWriter, r *http.Request, action func(*review.Service, string) error) {
	svc := reviewService(r)
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "review service not initialized")
		return
	}

	id := r.PathValue("id")
	if err := action(svc, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	doc, err := svcctx.StoreFrom(r.Context()).GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ReviewActionResponse{Document: doc})
}
