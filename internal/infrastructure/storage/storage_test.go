package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocalFileStorage(dir, zap.NewNop())

	require.NoError(t, s.Save(ctx, "proofs/1/receipt.pdf", []byte("%PDF-1.4")))
	assert.True(t, s.Exists(ctx, "proofs/1/receipt.pdf"))
	assert.FileExists(t, filepath.Join(dir, "proofs", "1", "receipt.pdf"))

	content, err := s.Read(ctx, "proofs/1/receipt.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), content)

	require.NoError(t, s.Save(ctx, "proofs/1/receipt.pdf", []byte("%PDF-1.7")))
	content, err = s.Read(ctx, "proofs/1/receipt.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), content)

	entries, err := os.ReadDir(filepath.Join(dir, "proofs", "1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.Delete(ctx, "proofs/1/receipt.pdf"))
	assert.False(t, s.Exists(ctx, "proofs/1/receipt.pdf"))
	assert.NoDirExists(t, filepath.Join(dir, "proofs", "1"))
	assert.NoError(t, s.Delete(ctx, "proofs/1/receipt.pdf"))
}

func TestLocalFileStorage_RejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())

	for _, path := range []string{"../outside.txt", "proofs/../../outside.txt", ""} {
		assert.Error(t, s.Save(ctx, path, []byte("x")), path)
		_, err := s.Read(ctx, path)
		assert.Error(t, err, path)
		assert.False(t, s.Exists(ctx, path), path)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDocumentInspector_Detect(t *testing.T) {
	inspector := NewDocumentInspector()

	tests := []struct {
		name     string
		content  []byte
		wantMime string
		wantExt  string
		wantErr  bool
	}{
		{name: "pdf", content: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"), wantMime: "application/pdf", wantExt: ".pdf"},
		{name: "png", content: pngBytes(t), wantMime: "image/png", wantExt: ".png"},
		{name: "text", content: []byte("just some notes"), wantErr: true},
		{name: "empty", content: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, ext, err := inspector.Detect(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mime)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestDocumentInspector_BrokenPDF(t *testing.T) {
	inspector := NewDocumentInspector()

	pages, err := inspector.PageCount([]byte("%PDF-1.4 truncated"))
	if err == nil {
		assert.Zero(t, pages)
	}
	_, err = inspector.FirstPageJPEG([]byte("%PDF-1.4 truncated"))
	assert.Error(t, err)
}
