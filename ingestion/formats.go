// Package ingestion parses documents, chunks them, and persists them to the
// vector and graph stores the retrieval engine reads.
package ingestion

import (
	"path/filepath"
	"strings"
)

type DocumentFormat string

const (
	FormatUnknown  DocumentFormat = ""
	FormatMarkdown DocumentFormat = "markdown"
	FormatPDF      DocumentFormat = "pdf"
	FormatCSV      DocumentFormat = "csv"
)

// DetectFormat infers a document format from the path's extension.
func DetectFormat(path string) DocumentFormat {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	case ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}
