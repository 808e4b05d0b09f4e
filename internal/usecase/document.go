package usecase

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// OpenDocument opens a PDF from disk for SubmitDocument, refusing other file
// types and anything larger than maxBytes.
func OpenDocument(path string, maxBytes int64) (Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Document{}, fmt.Errorf("usecase: document path is required")
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return Document{}, fmt.Errorf("usecase: %s is not a .pdf file", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("usecase: open document: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return Document{}, fmt.Errorf("usecase: stat document: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return Document{}, fmt.Errorf("usecase: %s is a directory", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		_ = f.Close()
		return Document{}, fmt.Errorf("usecase: %s is %s, larger than the %s limit",
			filepath.Base(path), humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(maxBytes)))
	}
	doc := Document{Name: filepath.Base(path), Size: info.Size(), Body: f}
	if maxBytes > 0 {
		doc.Body = &cappedBody{Closer: f, r: &io.LimitedReader{R: f, N: maxBytes + 1}, name: doc.Name, limit: maxBytes}
	}
	return doc, nil
}

// cappedBody fails the read that takes a file past its limit, so a file
// that grows after OpenDocument is still bounded.
type cappedBody struct {
	io.Closer
	r     *io.LimitedReader
	name  string
	limit int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if b.r.N == 0 {
		return n, fmt.Errorf("usecase: %s grew past the %s limit", b.name, humanize.Bytes(uint64(b.limit)))
	}
	return n, err
}
