package storage

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"

	"github.com/garyjia/travel-expense/internal/application/port"
)

// allowedTypes maps the accepted MIME types to their canonical extension
var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// DocumentInspector sniffs uploaded documents and rasterises PDFs with MuPDF
type DocumentInspector struct {
	quality int
}

// NewDocumentInspector creates a new DocumentInspector
func NewDocumentInspector() port.DocumentInspector {
	return &DocumentInspector{quality: 85}
}

// Detect returns the MIME type and extension of a PDF, JPEG or PNG document.
// The declared file name is ignored; only the content counts.
func (i *DocumentInspector) Detect(content []byte) (string, string, error) {
	if len(content) == 0 {
		return "", "", fmt.Errorf("empty document")
	}
	mime := mimetype.Detect(content)
	for m := mime; m != nil; m = m.Parent() {
		if ext, ok := allowedTypes[m.String()]; ok {
			return m.String(), ext, nil
		}
	}
	return "", "", fmt.Errorf("unsupported document type %s", mime.String())
}

// PageCount returns the number of pages of a PDF
func (i *DocumentInspector) PageCount(content []byte) (int, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// FirstPageJPEG renders the first page of a PDF as a JPEG image
func (i *DocumentInspector) FirstPageJPEG(content []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: i.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
