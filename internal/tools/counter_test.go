package tools

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func folderCount(report *CountReport, folder string) (int, bool) {
	for _, fc := range report.Folders {
		if fc.Folder == folder {
			return fc.Count, true
		}
	}
	return 0, false
}

func TestCountFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("counts per folder with extension filter", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "a.pdf", "b.PDF", "notes.txt")
		writeFiles(t, filepath.Join(root, "sub"), "c.pdf")

		report, err := CountFiles(ctx, root, CountOptions{Extensions: []string{".pdf"}, MaxDepth: -1}, nil)
		require.NoError(t, err)

		rootN, ok := folderCount(report, root)
		require.True(t, ok)
		assert.Equal(t, 2, rootN)

		subN, ok := folderCount(report, filepath.Join(root, "sub"))
		require.True(t, ok)
		assert.Equal(t, 1, subN)

		assert.Equal(t, 3, report.TotalFiles)
	})

	t.Run("extension without leading dot", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "a.pdf", "b.txt")

		report, err := CountFiles(ctx, root, CountOptions{Extensions: []string{"pdf"}, RootOnly: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, report.TotalFiles)
	})

	t.Run("no filter counts everything", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "a.pdf", "b.txt", "c")

		report, err := CountFiles(ctx, root, CountOptions{RootOnly: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, report.TotalFiles)
	})

	t.Run("root only ignores subfolders", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "a.pdf")
		writeFiles(t, filepath.Join(root, "sub"), "b.pdf")

		report, err := CountFiles(ctx, root, CountOptions{RootOnly: true}, nil)
		require.NoError(t, err)
		assert.Len(t, report.Folders, 1)
		assert.Equal(t, 1, report.TotalFiles)
	})

	t.Run("max depth bounds the descent", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, filepath.Join(root, "l1"), "a.pdf")
		writeFiles(t, filepath.Join(root, "l1", "l2"), "b.pdf")

		report, err := CountFiles(ctx, root, CountOptions{MaxDepth: 1}, nil)
		require.NoError(t, err)

		_, deepListed := folderCount(report, filepath.Join(root, "l1", "l2"))
		assert.False(t, deepListed)
		assert.Equal(t, 1, report.TotalFiles)
	})

	t.Run("missing root is an error", func(t *testing.T) {
		_, err := CountFiles(ctx, filepath.Join(t.TempDir(), "nope"), CountOptions{}, nil)
		assert.Error(t, err)
	})

	t.Run("file as root is an error", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "a.pdf")
		_, err := CountFiles(ctx, filepath.Join(root, "a.pdf"), CountOptions{}, nil)
		assert.Error(t, err)
	})

	t.Run("reports progress per folder", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, filepath.Join(root, "sub1"), "a.pdf")
		writeFiles(t, filepath.Join(root, "sub2"), "b.pdf")

		var mu sync.Mutex
		var events []ProgressEvent
		report, err := CountFiles(ctx, root, CountOptions{MaxDepth: -1}, func(ev ProgressEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		})
		require.NoError(t, err)

		assert.Len(t, events, len(report.Folders))
		for _, ev := range events {
			assert.Equal(t, "counter", ev.Tool)
			assert.Equal(t, len(report.Folders), ev.Total)
		}
	})

	t.Run("canceled context aborts", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "a.pdf")

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := CountFiles(canceled, root, CountOptions{}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSequenceGaps(t *testing.T) {
	ctx := context.Background()

	t.Run("detects gaps in file numbering", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "scan_001.pdf", "scan_002.pdf", "scan_005.pdf")

		report, err := CountFiles(ctx, root, CountOptions{RootOnly: true, CheckSequence: true}, nil)
		require.NoError(t, err)

		assert.ElementsMatch(t, []SequenceGap{
			{Folder: root, Number: 3},
			{Folder: root, Number: 4},
		}, report.Gaps)
	})

	t.Run("detects gaps in folder numbering", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "box 1"), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Join(root, "box 3"), 0o755))

		report, err := CountFiles(ctx, root, CountOptions{MaxDepth: 0, CheckSequence: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, []SequenceGap{{Folder: root, Number: 2}}, report.Gaps)
	})

	t.Run("consecutive numbering reports nothing", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "p1.pdf", "p2.pdf", "p3.pdf")

		report, err := CountFiles(ctx, root, CountOptions{RootOnly: true, CheckSequence: true}, nil)
		require.NoError(t, err)
		assert.Empty(t, report.Gaps)
	})

	t.Run("names without numbers are ignored", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, "readme.pdf", "cover.pdf")

		report, err := CountFiles(ctx, root, CountOptions{RootOnly: true, CheckSequence: true}, nil)
		require.NoError(t, err)
		assert.Empty(t, report.Gaps)
	})
}

func TestTrailingNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
		ok   bool
	}{
		{"plain suffix", "scan_042", 42, true},
		{"whole name numeric", "7", 7, true},
		{"number not at end", "12_final", 0, false},
		{"no number", "cover", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := trailingNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
