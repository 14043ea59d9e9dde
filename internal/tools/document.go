package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aperturelabs/deepquery/internal/research"
)

// DocumentReadTool reads documents of various formats (PDF, DOCX, XLSX).
// It auto-detects the format based on file extension. query is the path.
type DocumentReadTool struct {
	pdfTool  *PDFReadTool
	docxTool *DOCXReadTool
	xlsxTool *XLSXReadTool
}

// NewDocumentReadTool creates a new document reading tool.
func NewDocumentReadTool() *DocumentReadTool {
	return &DocumentReadTool{
		pdfTool:  NewPDFReadTool(),
		docxTool: NewDOCXReadTool(),
		xlsxTool: NewXLSXReadTool(),
	}
}

func (t *DocumentReadTool) Name() string { return "read_document" }

func (t *DocumentReadTool) Description() string {
	return "Read a PDF, DOCX or XLSX file, chosen by its extension. The query is the file path."
}

func (t *DocumentReadTool) Execute(ctx context.Context, query, sourceTarget string, limit int) ([]research.SearchResult, error) {
	ext := strings.ToLower(filepath.Ext(query))

	switch ext {
	case ".pdf":
		return t.pdfTool.Execute(ctx, query, sourceTarget, limit)
	case ".docx":
		return t.docxTool.Execute(ctx, query, sourceTarget, limit)
	case ".xlsx":
		return t.xlsxTool.Execute(ctx, query, sourceTarget, limit)
	default:
		return nil, fmt.Errorf("read_document: unsupported file format: %s (supported: .pdf, .docx, .xlsx)", ext)
	}
}
