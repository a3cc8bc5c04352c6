package intake

import (
	"errors"
	"fmt"
	"io"
	"os"

	apperrors "github.com/Skryldev/doc-intake/errors"
	"github.com/Skryldev/doc-intake/utils"
)

// Staged is an uploaded file copied to local disk for the duration of one
// request.  Remove it on every exit path; Remove is idempotent.
type Staged struct {
	Name     string
	MimeType string
	Size     int64

	f *os.File
}

// Stage copies r into a new file under dir ("" = os.TempDir()).  More than
// max bytes is a validation error and leaves no file behind.
func Stage(dir string, r io.Reader, max int64, name, mimeType string) (*Staged, error) {
	f, err := os.CreateTemp(dir, "intake-*")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "intake.stage", err)
	}
	s := &Staged{Name: name, MimeType: mimeType, f: f}

	n, err := utils.CopyLimited(f, r, max)
	if err != nil {
		s.Remove()
		if errors.Is(err, apperrors.ErrTooLarge) {
			return nil, apperrors.Validation("intake.stage", "file exceeds %d bytes: %w", max, err)
		}
		return nil, apperrors.Wrap(apperrors.CategoryInput, "intake.stage", err)
	}
	s.Size = n
	return s, nil
}

// Open rewinds the staged file and returns it for reading.
func (s *Staged) Open() (io.Reader, error) {
	if s.f == nil {
		return nil, fmt.Errorf("staged file %q already removed", s.Name)
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return s.f, nil
}

// Path returns the on-disk location, or "" once removed.
func (s *Staged) Path() string {
	if s.f == nil {
		return ""
	}
	return s.f.Name()
}

// Remove closes and deletes the staged file.
func (s *Staged) Remove() error {
	if s == nil || s.f == nil {
		return nil
	}
	path := s.f.Name()
	s.f.Close()
	s.f = nil
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
