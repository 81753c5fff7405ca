// Package fileutil provides the staged-write primitive used by every
// batch artifact: write to a temporary sibling, rename into place on
// commit, remove the temporary on any other exit path. Readers of the
// final path never observe a partial file.
package fileutil

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StagedFile is a write handle to <path>.tmp that becomes <path> on
// Commit. Abort (or a missed Commit) discards the temporary file, so the
// usual pattern is:
//
//	sf, err := fileutil.NewStaged(path, true)
//	if err != nil { ... }
//	defer sf.Abort()
//	... writes ...
//	return sf.Commit()
type StagedFile struct {
	finalPath string
	tmpPath   string
	file      *os.File
	buf       *bufio.Writer
	gz        *gzip.Writer
	done      bool
}

// NewStaged creates the temporary file, creating parent directories as
// needed. With compress set, writes pass through gzip.
func NewStaged(path string, compress bool) (*StagedFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	sf := &StagedFile{
		finalPath: path,
		tmpPath:   tmpPath,
		file:      f,
		buf:       bufio.NewWriter(f),
	}
	if compress {
		sf.gz = gzip.NewWriter(sf.buf)
	}
	return sf, nil
}

// Write implements io.Writer against the staged target.
func (s *StagedFile) Write(p []byte) (int, error) {
	return s.writer().Write(p)
}

func (s *StagedFile) writer() io.Writer {
	if s.gz != nil {
		return s.gz
	}
	return s.buf
}

// Commit flushes, closes and renames the temporary file into place.
// After Commit the staged file is spent; Abort becomes a no-op.
func (s *StagedFile) Commit() error {
	if s.done {
		return fmt.Errorf("staged file already finished")
	}
	s.done = true

	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			s.discard()
			return fmt.Errorf("failed to finish compressed stream: %w", err)
		}
	}
	if err := s.buf.Flush(); err != nil {
		s.discard()
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if err := s.file.Close(); err != nil {
		os.Remove(s.tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(s.tmpPath, s.finalPath); err != nil {
		os.Remove(s.tmpPath)
		return fmt.Errorf("failed to publish %s: %w", s.finalPath, err)
	}
	return nil
}

// Abort removes the temporary file. Safe to call after Commit.
func (s *StagedFile) Abort() {
	if s.done {
		return
	}
	s.done = true
	s.discard()
}

func (s *StagedFile) discard() {
	s.file.Close()
	os.Remove(s.tmpPath)
}
