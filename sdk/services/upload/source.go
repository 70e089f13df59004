// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// FileSource is a local file opened for ranged reads.
type FileSource struct {
	f           *os.File
	name        string
	size        int64
	contentType string
}

// OpenFile opens path and sniffs its content type.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat local file: %w", err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectReader(io.NewSectionReader(f, 0, st.Size()))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}

	return &FileSource{
		f:           f,
		name:        filepath.Base(path),
		size:        st.Size(),
		contentType: mt.String(),
	}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *FileSource) Size() int64                               { return s.size }
func (s *FileSource) Name() string                              { return s.name }
func (s *FileSource) ContentType() string                       { return s.contentType }
func (s *FileSource) Close() error                              { return s.f.Close() }

type readerSource struct {
	io.ReaderAt
	name string
	size int64
}

func (s *readerSource) Size() int64  { return s.size }
func (s *readerSource) Name() string { return s.name }

// NewReaderSource wraps an in-memory or already opened reader.
func NewReaderSource(name string, r io.ReaderAt, size int64) Source {
	return &readerSource{ReaderAt: r, name: name, size: size}
}
