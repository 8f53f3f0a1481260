package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/sync/errgroup"
)

// paperSize is an ISO 216 A-series size in millimeters, short edge
// first.
type paperSize struct {
	name   string
	width  float64
	height float64
}

// aSizes is ordered largest to smallest.
var aSizes = []paperSize{
	{"A0", 841, 1189},
	{"A1", 594, 841},
	{"A2", 420, 594},
	{"A3", 297, 420},
	{"A4", 210, 297},
	{"A5", 148, 210},
}

// a4Factors converts each size to its A4-sheet equivalent for print
// cost accounting.
var a4Factors = map[string]int{
	"A0": 16, "A1": 8, "A2": 4, "A3": 2, "A4": 1, "A5": 1,
}

// SizeOversize labels pages larger than A0 with tolerance.
const SizeOversize = "oversize"

const mmPerPoint = 25.4 / 72

// sizeTolerance absorbs printer margins and near-standard scans; a page
// up to 15% over the nominal dimensions still counts as that size.
const sizeTolerance = 1.15

// ClassifyPageSize maps a page media box in points to the smallest
// A-series size that contains it. Orientation does not matter.
func ClassifyPageSize(dim types.Dim) string {
	w := dim.Width * mmPerPoint
	h := dim.Height * mmPerPoint
	if w > h {
		w, h = h, w
	}
	for i := len(aSizes) - 1; i >= 0; i-- {
		size := aSizes[i]
		if w <= size.width*sizeTolerance && h <= size.height*sizeTolerance {
			return size.name
		}
	}
	return SizeOversize
}

// A4Equivalent folds a per-size page count into A4-sheet equivalents.
// Oversize pages do not contribute.
func A4Equivalent(counts map[string]int) int {
	total := 0
	for size, n := range counts {
		total += a4Factors[size] * n
	}
	return total
}

// PDFFileInfo is the per-file outcome of a page counting run. A file
// that cannot be read carries its error and zero counts.
type PDFFileInfo struct {
	Path  string         `json:"path"`
	Pages int            `json:"pages"`
	Sizes map[string]int `json:"sizes,omitempty"`
	Error string         `json:"error,omitempty"`
}

// PDFReport is the outcome of a page counting run over a folder tree.
type PDFReport struct {
	Root         string         `json:"root"`
	Files        []PDFFileInfo  `json:"files"`
	TotalPages   int            `json:"total_pages"`
	SizeCounts   map[string]int `json:"size_counts"`
	A4Equivalent int            `json:"a4_equivalent"`
	FailedFiles  int            `json:"failed_files"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// CountPages walks root for .pdf files and tallies page counts grouped
// by paper size. Files are processed concurrently; a corrupt file is
// reported, not fatal.
func CountPages(ctx context.Context, root string, progress ProgressFunc) (*PDFReport, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("cannot open folder: %w", err)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk folder: %w", err)
	}

	report := &PDFReport{
		Root:        root,
		Files:       make([]PDFFileInfo, len(files)),
		SizeCounts:  make(map[string]int),
		GeneratedAt: time.Now().UTC(),
	}

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info := inspectPDF(path)

			mu.Lock()
			report.Files[i] = info
			done++
			ev := ProgressEvent{Tool: "pdf-counter", Path: path, Done: done, Total: len(files)}
			mu.Unlock()

			progress.emit(ev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, info := range report.Files {
		if info.Error != "" {
			report.FailedFiles++
			continue
		}
		report.TotalPages += info.Pages
		for size, n := range info.Sizes {
			report.SizeCounts[size] += n
		}
	}
	report.A4Equivalent = A4Equivalent(report.SizeCounts)

	return report, nil
}

// inspectPDF reads one file's page dimensions and classifies each page.
func inspectPDF(path string) PDFFileInfo {
	info := PDFFileInfo{Path: path}

	dims, err := api.PageDimsFile(path)
	if err != nil {
		info.Error = err.Error()
		return info
	}

	info.Pages = len(dims)
	info.Sizes = make(map[string]int)
	for _, dim := range dims {
		info.Sizes[ClassifyPageSize(dim)]++
	}
	return info
}

// MergePDFs concatenates the input files into outFile in the given
// order.
func MergePDFs(ctx context.Context, inputs []string, outFile string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(inputs) < 2 {
		return fmt.Errorf("merging needs at least two input files, got %d", len(inputs))
	}
	for _, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("cannot open input file: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}
	if err := api.MergeCreateFile(inputs, outFile, false, nil); err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	return nil
}

// SplitPDF splits inFile into chunks of span pages each, written to
// outDir. A span of 1 yields one file per page.
func SplitPDF(ctx context.Context, inFile, outDir string, span int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if span < 1 {
		return nil, fmt.Errorf("span must be at least 1, got %d", span)
	}
	if _, err := os.Stat(inFile); err != nil {
		return nil, fmt.Errorf("cannot open input file: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create output folder: %w", err)
	}

	if err := api.SplitFile(inFile, outDir, span, nil); err != nil {
		return nil, fmt.Errorf("split failed: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("cannot list output folder: %w", err)
	}
	var outputs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			outputs = append(outputs, filepath.Join(outDir, entry.Name()))
		}
	}
	sort.Strings(outputs)
	return outputs, nil
}

// ResizePDF scales pages of inFile to the given A-series form size and
// writes the result to outFile. An empty pages selection resizes every
// page; orientation is preserved.
func ResizePDF(ctx context.Context, inFile, outFile, form string, pages []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	form = strings.ToUpper(strings.TrimSpace(form))
	if form == "" {
		form = "A4"
	}
	res, err := pdfcpu.ParseResizeConfig("form:"+form, types.POINTS)
	if err != nil {
		return fmt.Errorf("invalid target size %q: %w", form, err)
	}
	if _, err := os.Stat(inFile); err != nil {
		return fmt.Errorf("cannot open input file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}
	if err := api.ResizeFile(inFile, outFile, pages, res, nil); err != nil {
		return fmt.Errorf("resize failed: %w", err)
	}
	return nil
}

// PageCount returns the page count of a single file.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("cannot read page count: %w", err)
	}
	return n, nil
}
