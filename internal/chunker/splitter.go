package chunker

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Splitter counts pages and cuts a page range out of a PDF.
type Splitter interface {
	PageCount(data []byte) (int, error)
	// Extract returns a standalone PDF holding pages first..last (1-indexed, inclusive).
	Extract(data []byte, first, last int) ([]byte, error)
}

// PDFSplitter implements Splitter with pdfcpu.
type PDFSplitter struct{}

func NewPDFSplitter() *PDFSplitter {
	// pdfcpu otherwise writes a config directory under the user's home.
	api.DisableConfigDir()
	return &PDFSplitter{}
}

func (s *PDFSplitter) PageCount(data []byte) (int, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

func (s *PDFSplitter) Extract(data []byte, first, last int) ([]byte, error) {
	if first < 1 || last < first {
		return nil, fmt.Errorf("invalid page range %d-%d", first, last)
	}
	var buf bytes.Buffer
	selected := []string{fmt.Sprintf("%d-%d", first, last)}
	if err := api.Trim(bytes.NewReader(data), &buf, selected, model.NewDefaultConfiguration()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
