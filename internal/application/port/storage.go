package port

import "context"

// FileStorage defines file storage operations
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// DocumentInspector checks and renders uploaded supporting documents
type DocumentInspector interface {
	// Detect returns the MIME type and canonical extension of an allowed document
	Detect(content []byte) (mimeType string, ext string, err error)

	// PageCount returns the number of pages of a PDF
	PageCount(content []byte) (int, error)

	// FirstPageJPEG renders the first page of a PDF as a JPEG image
	FirstPageJPEG(content []byte) ([]byte, error)
}
