package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CountOptions controls a file counting run.
type CountOptions struct {
	// Extensions filters counted files by suffix, case-insensitive.
	// Empty means every regular file counts.
	Extensions []string `json:"extensions,omitempty"`

	// RootOnly counts only the root folder itself, no descent.
	RootOnly bool `json:"root_only,omitempty"`

	// MaxDepth bounds the descent below the root. Negative means
	// unlimited.
	MaxDepth int `json:"max_depth,omitempty"`

	// CheckSequence scans trailing numbers in file and folder names
	// and reports gaps in the numbering.
	CheckSequence bool `json:"check_sequence,omitempty"`
}

// FolderCount is the number of matching files directly inside one folder.
type FolderCount struct {
	Folder string `json:"folder"`
	Count  int    `json:"count"`
}

// SequenceGap is a number missing from an otherwise consecutive run of
// trailing numbers inside one folder.
type SequenceGap struct {
	Folder string `json:"folder"`
	Number int    `json:"number"`
}

// CountReport is the outcome of a counting run.
type CountReport struct {
	Root        string        `json:"root"`
	Folders     []FolderCount `json:"folders"`
	TotalFiles  int           `json:"total_files"`
	Gaps        []SequenceGap `json:"gaps,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// CountFiles counts matching files per folder under root. Folders are
// enumerated sequentially to honor the depth bound, then counted
// concurrently. Unreadable folders count as zero rather than failing
// the run.
func CountFiles(ctx context.Context, root string, opts CountOptions, progress ProgressFunc) (*CountReport, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot open folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", root)
	}

	exts := normalizeExtensions(opts.Extensions)

	folders, err := listFolders(ctx, root, opts)
	if err != nil {
		return nil, err
	}

	report := &CountReport{
		Root:        root,
		Folders:     make([]FolderCount, len(folders)),
		GeneratedAt: time.Now().UTC(),
	}

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, folder := range folders {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			count := countInFolder(folder, exts)

			mu.Lock()
			report.Folders[i] = FolderCount{Folder: folder, Count: count}
			done++
			ev := ProgressEvent{Tool: "counter", Path: folder, Done: done, Total: len(folders)}
			mu.Unlock()

			progress.emit(ev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, fc := range report.Folders {
		report.TotalFiles += fc.Count
	}

	if opts.CheckSequence {
		report.Gaps = findSequenceGaps(folders, exts)
	}

	return report, nil
}

// listFolders enumerates root and its subfolders up to the depth bound,
// in deterministic walk order.
func listFolders(ctx context.Context, root string, opts CountOptions) ([]string, error) {
	if opts.RootOnly {
		return []string{root}, nil
	}

	baseDepth := strings.Count(filepath.Clean(root), string(os.PathSeparator))
	var folders []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		depth := strings.Count(filepath.Clean(path), string(os.PathSeparator)) - baseDepth
		if opts.MaxDepth >= 0 && depth > opts.MaxDepth {
			return filepath.SkipDir
		}
		folders = append(folders, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// countInFolder counts matching regular files directly inside folder.
func countInFolder(folder string, exts []string) int {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if matchesExtension(entry.Name(), exts) {
			count++
		}
	}
	return count
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func matchesExtension(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

var trailingNumberRe = regexp.MustCompile(`(\d+)$`)

// trailingNumber extracts the number a name ends with, if any.
func trailingNumber(name string) (int, bool) {
	match := trailingNumberRe.FindString(name)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// findSequenceGaps reports, per folder, the numbers missing between the
// smallest and largest trailing number found on matching files and on
// subfolder names.
func findSequenceGaps(folders []string, exts []string) []SequenceGap {
	var gaps []SequenceGap
	for _, folder := range folders {
		entries, err := os.ReadDir(folder)
		if err != nil {
			continue
		}
		var fileNums, dirNums []int
		for _, entry := range entries {
			if entry.IsDir() {
				if n, ok := trailingNumber(entry.Name()); ok {
					dirNums = append(dirNums, n)
				}
				continue
			}
			if !matchesExtension(entry.Name(), exts) {
				continue
			}
			stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			if n, ok := trailingNumber(stem); ok {
				fileNums = append(fileNums, n)
			}
		}
		gaps = append(gaps, missingNumbers(folder, fileNums)...)
		gaps = append(gaps, missingNumbers(folder, dirNums)...)
	}
	return gaps
}

// missingNumbers returns the gaps in the range [min(nums), max(nums)].
func missingNumbers(folder string, nums []int) []SequenceGap {
	if len(nums) == 0 {
		return nil
	}
	sort.Ints(nums)
	seen := make(map[int]bool, len(nums))
	for _, n := range nums {
		seen[n] = true
	}
	var gaps []SequenceGap
	for expected := nums[0]; expected <= nums[len(nums)-1]; expected++ {
		if !seen[expected] {
			gaps = append(gaps, SequenceGap{Folder: folder, Number: expected})
		}
	}
	return gaps
}
