// Package tools implements the bookkeeping utilities exposed behind the
// licensed shell: per-folder file counting with sequence gap detection,
// and PDF page counting, merging, and splitting.
//
// Every operation takes a context and an optional progress callback.
// Progress events are advisory; a nil callback disables reporting
// without changing behavior.
package tools
