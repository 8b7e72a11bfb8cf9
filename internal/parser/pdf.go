package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"docchat/internal/domain"
)

// PDFParser extracts one record per page that carries text.
type PDFParser struct{}

// NewPDFParser creates a new PDF parser.
func NewPDFParser() *PDFParser { return &PDFParser{} }

// Extensions returns the file extensions handled by this parser.
func (p *PDFParser) Extensions() []string { return []string{".pdf"} }

// Parse reads the PDF at path. Page numbers in metadata are zero-based.
func (p *PDFParser) Parse(path string) (records []domain.Record, err error) {
	defer func() {
		// The PDF reader panics on some malformed inputs.
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("read PDF %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only or problematic page.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		records = append(records, domain.Record{
			Content: text,
			Metadata: map[string]string{
				MetaSource:     path,
				MetaPage:       strconv.Itoa(i - 1),
				MetaTotalPages: strconv.Itoa(total),
			},
		})
	}
	return records, nil
}
