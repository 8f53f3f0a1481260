package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apperrors "tktcli/internal/errors"
	"tktcli/internal/infrastructure"
	"tktcli/internal/services"
	"tktcli/internal/tools"
)

// ToolsHandler serves the bookkeeping tool endpoints.
type ToolsHandler struct {
	service services.ToolsService
	logger  *slog.Logger
}

// NewToolsHandler creates a tools handler.
func NewToolsHandler(service services.ToolsService, logger *slog.Logger) *ToolsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "tools")),
	}
}

// CountRequest starts a file counting run.
type CountRequest struct {
	Root          string   `json:"root" validate:"required"`
	Extensions    []string `json:"extensions,omitempty"`
	RootOnly      bool     `json:"root_only,omitempty"`
	MaxDepth      *int     `json:"max_depth,omitempty"`
	CheckSequence bool     `json:"check_sequence,omitempty"`
	Export        bool     `json:"export,omitempty"`
	ReportName    string   `json:"report_name,omitempty"`
}

func (c *CountRequest) Bind(r *http.Request) error {
	return validate.Struct(c)
}

// PageCountRequest starts a PDF page counting run.
type PageCountRequest struct {
	Root       string `json:"root" validate:"required"`
	Export     bool   `json:"export,omitempty"`
	ReportName string `json:"report_name,omitempty"`
}

func (p *PageCountRequest) Bind(r *http.Request) error {
	return validate.Struct(p)
}

// MergeRequest merges PDF files in order.
type MergeRequest struct {
	Inputs  []string `json:"inputs" validate:"required,min=2,dive,required"`
	OutFile string   `json:"out_file" validate:"required"`
}

func (m *MergeRequest) Bind(r *http.Request) error {
	return validate.Struct(m)
}

// SplitRequest splits a PDF into page chunks.
type SplitRequest struct {
	InFile string `json:"in_file" validate:"required"`
	OutDir string `json:"out_dir" validate:"required"`
	Span   int    `json:"span" validate:"omitempty,min=1"`
}

func (s *SplitRequest) Bind(r *http.Request) error {
	return validate.Struct(s)
}

// ResizeRequest scales pages to a target A-series paper size. An empty
// page selection resizes the whole document.
type ResizeRequest struct {
	InFile  string   `json:"in_file" validate:"required"`
	OutFile string   `json:"out_file" validate:"required"`
	Form    string   `json:"form,omitempty"`
	Pages   []string `json:"pages,omitempty"`
}

func (rr *ResizeRequest) Bind(r *http.Request) error {
	return validate.Struct(rr)
}

// CountResponse carries a count report and the export location when one
// was written.
type CountResponse struct {
	Report     *tools.CountReport `json:"report"`
	ReportFile string             `json:"report_file,omitempty"`
}

// PageCountResponse carries a page count report and the export location.
type PageCountResponse struct {
	Report     *tools.PDFReport `json:"report"`
	ReportFile string           `json:"report_file,omitempty"`
}

// MergeResponse reports the merged output file.
type MergeResponse struct {
	OutFile string `json:"out_file"`
}

// SplitResponse lists the produced chunk files.
type SplitResponse struct {
	Outputs []string `json:"outputs"`
}

// ResizeResponse reports the resized output file.
type ResizeResponse struct {
	OutFile string `json:"out_file"`
}

// Routes returns the tools sub-router.
func (h *ToolsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Post("/count", h.Count)
	r.Post("/pdf/pages", h.CountPages)
	r.Post("/pdf/merge", h.Merge)
	r.Post("/pdf/split", h.Split)
	r.Post("/pdf/resize", h.Resize)
	return r
}

// Count runs a file counting job.
func (h *ToolsHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CountRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusBadRequest, err))
		return
	}

	opts := tools.CountOptions{
		Extensions:    req.Extensions,
		RootOnly:      req.RootOnly,
		MaxDepth:      -1,
		CheckSequence: req.CheckSequence,
	}
	if req.MaxDepth != nil {
		opts.MaxDepth = *req.MaxDepth
	}

	report, err := h.service.CountFiles(ctx, req.Root, opts)
	if err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusUnprocessableEntity, err))
		return
	}

	resp := CountResponse{Report: report}
	if req.Export {
		path, err := h.service.ExportCountReport(ctx, report, req.ReportName)
		if err != nil {
			render.Render(w, r, toolProblem(ctx, http.StatusInternalServerError, err))
			return
		}
		resp.ReportFile = path
	}

	render.JSON(w, r, resp)
}

// CountPages runs a PDF page counting job.
func (h *ToolsHandler) CountPages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PageCountRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusBadRequest, err))
		return
	}

	report, err := h.service.CountPages(ctx, req.Root)
	if err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusUnprocessableEntity, err))
		return
	}

	resp := PageCountResponse{Report: report}
	if req.Export {
		path, err := h.service.ExportPDFReport(ctx, report, req.ReportName)
		if err != nil {
			render.Render(w, r, toolProblem(ctx, http.StatusInternalServerError, err))
			return
		}
		resp.ReportFile = path
	}

	render.JSON(w, r, resp)
}

// Merge concatenates PDFs.
func (h *ToolsHandler) Merge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req MergeRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusBadRequest, err))
		return
	}

	if err := h.service.MergePDFs(ctx, req.Inputs, req.OutFile); err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusUnprocessableEntity, err))
		return
	}
	render.JSON(w, r, MergeResponse{OutFile: req.OutFile})
}

// Split cuts a PDF into chunks.
func (h *ToolsHandler) Split(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SplitRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusBadRequest, err))
		return
	}
	if req.Span == 0 {
		req.Span = 1
	}

	outputs, err := h.service.SplitPDF(ctx, req.InFile, req.OutDir, req.Span)
	if err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusUnprocessableEntity, err))
		return
	}
	render.JSON(w, r, SplitResponse{Outputs: outputs})
}

// Resize scales pages to a target paper size.
func (h *ToolsHandler) Resize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ResizeRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusBadRequest, err))
		return
	}

	if err := h.service.ResizePDF(ctx, req.InFile, req.OutFile, req.Form, req.Pages); err != nil {
		render.Render(w, r, toolProblem(ctx, http.StatusUnprocessableEntity, err))
		return
	}
	render.JSON(w, r, ResizeResponse{OutFile: req.OutFile})
}

func toolProblem(ctx context.Context, status int, err error) *apperrors.ProblemDetails {
	return apperrors.NewProblemDetails(
		status,
		"/errors/tool-operation-failed",
		"Tool Operation Failed",
		err.Error(),
		"",
	).WithExtension("trace_id", infrastructure.GetTraceID(ctx))
}
