// Package exporter writes tool reports to Excel workbooks under the
// per-user reports directory.
package exporter
