package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aperturelabs/deepquery/internal/research"
	"github.com/ledongthuc/pdf"
)

// PDFReadTool extracts text content from PDF files. query is treated as the
// file path; it is a supplementary Tool per SPEC_FULL.md §11, grounding
// Config.Sources.Supplementary entries that name a local document corpus.
type PDFReadTool struct {
	maxPages int // Maximum pages to extract (0 = all)
}

// NewPDFReadTool creates a new PDF reading tool.
func NewPDFReadTool() *PDFReadTool {
	return &PDFReadTool{
		maxPages: 50, // Default: first 50 pages
	}
}

func (t *PDFReadTool) Name() string { return "read_pdf" }

func (t *PDFReadTool) Description() string {
	return "Extract the text of a PDF file. The query is the file path."
}

func (t *PDFReadTool) Execute(ctx context.Context, query, sourceTarget string, limit int) ([]research.SearchResult, error) {
	text, err := t.readPDF(query)
	if err != nil {
		return nil, err
	}
	return []research.SearchResult{{URL: query, Title: query, Snippet: text}}, nil
}

func (t *PDFReadTool) readPDF(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("read_pdf requires a path")
	}

	// Validate file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", path)
	}

	// Open PDF file
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var text strings.Builder
	numPages := r.NumPage()
	maxPages := t.maxPages
	if maxPages <= 0 || maxPages > numPages {
		maxPages = numPages
	}

	for i := 1; i <= maxPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("--- Page %d ---\n", i))
		text.WriteString(content)
		text.WriteString("\n\n")
	}

	if maxPages < numPages {
		text.WriteString(fmt.Sprintf("\n...[truncated after %d of %d pages]\n", maxPages, numPages))
	}

	result := text.String()
	const maxLen = 100000
	if len(result) > maxLen {
		result = result[:maxLen] + "\n...[truncated]"
	}

	return result, nil
}
