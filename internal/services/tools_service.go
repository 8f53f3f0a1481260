package services

import (
	"context"
	"log/slog"

	"tktcli/internal/exporter"
	"tktcli/internal/tools"
)

// ToolsService exposes the bookkeeping tools to the HTTP layer and
// fans progress out to the given callback.
type ToolsService interface {
	CountFiles(ctx context.Context, root string, opts tools.CountOptions) (*tools.CountReport, error)
	CountPages(ctx context.Context, root string) (*tools.PDFReport, error)
	MergePDFs(ctx context.Context, inputs []string, outFile string) error
	SplitPDF(ctx context.Context, inFile, outDir string, span int) ([]string, error)
	ResizePDF(ctx context.Context, inFile, outFile, form string, pages []string) error
	ExportCountReport(ctx context.Context, report *tools.CountReport, name string) (string, error)
	ExportPDFReport(ctx context.Context, report *tools.PDFReport, name string) (string, error)
}

type toolsService struct {
	writer   *exporter.ExcelWriter
	progress tools.ProgressFunc
	logger   *slog.Logger
}

// NewToolsService creates the tools service. progress may be nil.
func NewToolsService(writer *exporter.ExcelWriter, progress tools.ProgressFunc, logger *slog.Logger) ToolsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &toolsService{
		writer:   writer,
		progress: progress,
		logger:   logger.With(slog.String("service", "tools")),
	}
}

func (s *toolsService) CountFiles(ctx context.Context, root string, opts tools.CountOptions) (*tools.CountReport, error) {
	s.logger.InfoContext(ctx, "file count started", slog.String("root", root))
	report, err := tools.CountFiles(ctx, root, opts, s.progress)
	if err != nil {
		s.logger.WarnContext(ctx, "file count failed", slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.InfoContext(ctx, "file count finished",
		slog.Int("folders", len(report.Folders)),
		slog.Int("total_files", report.TotalFiles),
	)
	return report, nil
}

func (s *toolsService) CountPages(ctx context.Context, root string) (*tools.PDFReport, error) {
	s.logger.InfoContext(ctx, "page count started", slog.String("root", root))
	report, err := tools.CountPages(ctx, root, s.progress)
	if err != nil {
		s.logger.WarnContext(ctx, "page count failed", slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.InfoContext(ctx, "page count finished",
		slog.Int("files", len(report.Files)),
		slog.Int("total_pages", report.TotalPages),
		slog.Int("a4_equivalent", report.A4Equivalent),
	)
	return report, nil
}

func (s *toolsService) MergePDFs(ctx context.Context, inputs []string, outFile string) error {
	s.logger.InfoContext(ctx, "merge started",
		slog.Int("inputs", len(inputs)),
		slog.String("out", outFile),
	)
	return tools.MergePDFs(ctx, inputs, outFile)
}

func (s *toolsService) SplitPDF(ctx context.Context, inFile, outDir string, span int) ([]string, error) {
	s.logger.InfoContext(ctx, "split started",
		slog.String("in", inFile),
		slog.Int("span", span),
	)
	return tools.SplitPDF(ctx, inFile, outDir, span)
}

func (s *toolsService) ResizePDF(ctx context.Context, inFile, outFile, form string, pages []string) error {
	s.logger.InfoContext(ctx, "resize started",
		slog.String("in", inFile),
		slog.String("form", form),
	)
	return tools.ResizePDF(ctx, inFile, outFile, form, pages)
}

func (s *toolsService) ExportCountReport(ctx context.Context, report *tools.CountReport, name string) (string, error) {
	return s.writer.WriteCountReport(report, name)
}

func (s *toolsService) ExportPDFReport(ctx context.Context, report *tools.PDFReport, name string) (string, error) {
	return s.writer.WritePDFReport(report, name)
}
