package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitaehq/vitae/internal/api"
	"github.com/vitaehq/vitae/internal/correction"
	"github.com/vitaehq/vitae/internal/ingest"
	"github.com/vitaehq/vitae/internal/store"
	"github.com/vitaehq/vitae/internal/svcctx"
)

// UploadResponse lists the documents registered by an upload.
type UploadResponse struct {
	Documents []ingest.Result `json:"documents"`
	Count     int             `json:"count"`
}

// UploadDocumentsEndpoint handles POST /v1/documents with multipart file upload.
type UploadDocumentsEndpoint struct{}

var _ api.Endpoint = (*UploadDocumentsEndpoint)(nil)

func (e *UploadDocumentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/documents", e.handler
}

func (e *UploadDocumentsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Upload resume PDFs
//	@Description	Upload one or more PDF files to register as documents
//	@Tags			documents
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"PDF files to register"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/v1/documents [post]
func (e *UploadDocumentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 100 << 20 // 100MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	for _, fh := range files {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", fh.Filename))
			return
		}
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not initialized")
		return
	}
	homeDir := svcctx.HomeFrom(r.Context())
	if homeDir == nil {
		writeError(w, http.StatusServiceUnavailable, "home directory not initialized")
		return
	}
	logger := svcctx.LoggerFrom(r.Context())

	resp := UploadResponse{}
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to open uploaded file: %v", err))
			return
		}

		res, err := ingest.Register(r.Context(), st, homeDir, ingest.Request{
			Source:   src,
			Filename: fh.Filename,
			Logger:   logger,
		})
		src.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to register %s: %v", fh.Filename, err))
			return
		}
		resp.Documents = append(resp.Documents, *res)
	}
	resp.Count = len(resp.Documents)

	writeJSON(w, http.StatusCreated, resp)
}

func (e *UploadDocumentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <pdf> [pdf...]",
		Short: "Upload resume PDFs to the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			var all []ingest.Result
			for _, path := range args {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("cannot read %s: %w", path, err)
				}
				var resp UploadResponse
				if err := client.Upload(ctx, "/v1/documents", path, nil, &resp); err != nil {
					return fmt.Errorf("upload %s: %w", path, err)
				}
				all = append(all, resp.Documents...)
			}
			return api.Output(UploadResponse{Documents: all, Count: len(all)})
		},
	}
}

// DocumentsResponse is the response for document list queries.
type DocumentsResponse struct {
	Documents []*store.Document `json:"documents"`
	Count     int               `json:"count"`
}

// ListDocumentsEndpoint handles GET /v1/documents.
type ListDocumentsEndpoint struct{}

func (e *ListDocumentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/documents", e.handler
}

func (e *ListDocumentsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List documents
//	@Description	List registered documents, optionally filtered by status
//	@Tags			documents
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status (uploaded, processing, ocr_complete, extracted, validated, failed)"
//	@Success		200		{object}	DocumentsResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/v1/documents [get]
func (e *ListDocumentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not initialized")
		return
	}

	docs, err := st.ListDocuments(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DocumentsResponse{Documents: docs, Count: len(docs)})
}

func (e *ListDocumentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/v1/documents"
			if status != "" {
				path += "?status=" + status
			}
			var resp DocumentsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}

// DocumentResponse is the response for a single document query.
type DocumentResponse struct {
	Document *store.Document  `json:"document"`
	Issues   []store.IssueRow `json:"issues,omitempty"`
}

// GetDocumentEndpoint handles GET /v1/documents/{id}.
type GetDocumentEndpoint struct{}

func (e *GetDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/documents/{id}", e.handler
}

func (e *GetDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a document
//	@Description	Get a document with its recorded validation issues
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	DocumentResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/documents/{id} [get]
func (e *GetDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not initialized")
		return
	}

	id := r.PathValue("id")
	doc, err := st.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	issues, err := st.ListIssues(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DocumentResponse{Document: doc, Issues: issues})
}

func (e *GetDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <document-id>",
		Short: "Get a document by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DocumentResponse
			if err := client.Get(cmd.Context(), "/v1/documents/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetRecordEndpoint handles GET /v1/documents/{id}/record.
// It serves the assembled extraction result for a document.
type GetRecordEndpoint struct{}

func (e *GetRecordEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/documents/{id}/record", e.handler
}

func (e *GetRecordEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get an extraction result
//	@Description	Get the assembled extraction result for a document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	correction.FinalRecord
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/documents/{id}/record [get]
func (e *GetRecordEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not initialized")
		return
	}
	homeDir := svcctx.HomeFrom(r.Context())
	if homeDir == nil {
		writeError(w, http.StatusServiceUnavailable, "home directory not initialized")
		return
	}

	id := r.PathValue("id")
	if _, err := st.GetDocument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := os.ReadFile(homeDir.RecordPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "no extraction result for document")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *GetRecordEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "record <document-id>",
		Short: "Get the extraction result for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp correction.FinalRecord
			if err := client.Get(cmd.Context(), "/v1/documents/"+args[0]+"/record", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
