// Package intake accepts a document upload and carries it through
// transform, storage, record and notification.
package intake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	docintake "github.com/Skryldev/doc-intake"
	"github.com/Skryldev/doc-intake/config"
	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
	"github.com/Skryldev/doc-intake/notify"
	"github.com/Skryldev/doc-intake/records"
)

// TimeLayout is how submission times are written to the record table.
const TimeLayout = "2006/01/02 15:04:05"

// Transformer produces the watermarked artifact.
type Transformer interface {
	Transform(ctx context.Context, r io.Reader, mimeType string, now time.Time) (*docintake.Output, error)
}

// Recorder appends submission rows.
type Recorder interface {
	Append(ctx context.Context, s records.Submission) error
}

// Dispatcher queues a best-effort notification.
type Dispatcher interface {
	Dispatch(m notify.Message)
}

// Request is one upload.  File is owned by Submit, which removes it.
type Request struct {
	File           *Staged
	Name           string
	Phone          string
	GroupID        string
	ExternalUserID string
}

// Result is a stored submission.
type Result struct {
	Link     string
	RecordID string
	FileName string
}

// Service runs the intake steps in order: validate, transform, upload,
// record, notify.  It holds no per-request state.
type Service struct {
	transformer Transformer
	store       core.BlobStore
	records     Recorder
	dispatcher  Dispatcher

	uploadTimeout time.Duration
	recordTimeout time.Duration
	loc           *time.Location
	now           func() time.Time
	newID         func() string
	logger        core.Logger
}

// NewService wires the intake steps.  d may be nil when no notification
// channel is configured.
func NewService(cfg config.Config, t Transformer, store core.BlobStore, rec Recorder, d Dispatcher) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Service{
		transformer:   t,
		store:         store,
		records:       rec,
		dispatcher:    d,
		uploadTimeout: cfg.UploadTimeout,
		recordTimeout: cfg.RecordTimeout,
		loc:           loc,
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

// SetLogger attaches a structured logger.
func (s *Service) SetLogger(l core.Logger) { s.logger = l }

// SetClock replaces time.Now.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Submit stores one document.  The staged file is removed before Submit
// returns, whatever the outcome.  A failed notification never fails Submit.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	defer req.File.Remove()

	req, err := validate(req)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)

	// transformed
	src, err := req.File.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "intake.open", err)
	}
	out, err := s.transformer.Transform(ctx, src, req.File.MimeType, now)
	if err != nil {
		if apperrors.CategoryOf(err) == "" {
			err = apperrors.Wrap(apperrors.CategoryPipeline, "intake.transform", err)
		}
		return nil, err
	}

	// uploaded
	name := FileName(req.GroupID, req.Name, req.Phone, now)
	obj, err := s.upload(ctx, name, out)
	if err != nil {
		return nil, err
	}

	// recorded
	sub := records.Submission{
		RecordID:       s.newID(),
		Time:           now.Format(TimeLayout),
		GroupID:        req.GroupID,
		Name:           req.Name,
		Phone:          req.Phone,
		ExternalUserID: req.ExternalUserID,
		FileLink:       obj.Link,
		Status:         records.StatusPending,
	}
	if err := s.record(ctx, sub); err != nil {
		if s.logger != nil {
			s.logger.Error("intake.orphaned_blob", "link", obj.Link, "file", name, "error", err.Error())
		}
		return nil, err
	}

	// notified
	if s.dispatcher != nil && req.ExternalUserID != "" {
		s.dispatcher.Dispatch(notify.Message{
			ExternalUserID: req.ExternalUserID,
			Name:           req.Name,
			GroupID:        req.GroupID,
			Phone:          req.Phone,
			Time:           now,
		})
	}

	if s.logger != nil {
		s.logger.Info("intake.stored", "record_id", sub.RecordID, "file", name, "bytes", len(out.Data))
	}
	return &Result{Link: obj.Link, RecordID: sub.RecordID, FileName: name}, nil
}

func (s *Service) upload(ctx context.Context, name string, out *docintake.Output) (core.Object, error) {
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}
	obj, err := s.store.Put(ctx, name, bytes.NewReader(out.Data), int64(len(out.Data)), out.MimeType)
	if err != nil {
		if !apperrors.IsCategory(err, apperrors.CategoryStorage) {
			err = apperrors.Wrap(apperrors.CategoryStorage, "intake.upload", err)
		}
		return core.Object{}, err
	}
	return obj, nil
}

func (s *Service) record(ctx context.Context, sub records.Submission) error {
	if s.recordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.recordTimeout)
		defer cancel()
	}
	err := s.records.Append(ctx, sub)
	if err != nil && !apperrors.IsCategory(err, apperrors.CategoryRepository) {
		err = apperrors.Wrap(apperrors.CategoryRepository, "intake.record", err)
	}
	return err
}

func validate(req Request) (Request, error) {
	const op = "intake.validate"
	if req.File == nil {
		return req, apperrors.New(apperrors.CategoryValidation, op, fmt.Errorf("%w: file", apperrors.ErrMissingField))
	}
	if !core.IsImageContentType(req.File.MimeType) {
		return req, apperrors.New(apperrors.CategoryValidation, op,
			fmt.Errorf("%w: %q", apperrors.ErrNotImage, req.File.MimeType))
	}
	if req.File.Size == 0 {
		return req, apperrors.New(apperrors.CategoryValidation, op, apperrors.ErrEmptyInput)
	}

	req.Name = Normalize(req.Name)
	req.Phone = Normalize(req.Phone)
	req.GroupID = Normalize(req.GroupID)
	req.ExternalUserID = Normalize(req.ExternalUserID)
	for _, f := range []struct{ name, value string }{
		{"name", req.Name},
		{"phone", req.Phone},
		{"groupId", req.GroupID},
	} {
		if f.value == "" {
			return req, apperrors.New(apperrors.CategoryValidation, op,
				fmt.Errorf("%w: %s", apperrors.ErrMissingField, f.name))
		}
	}
	return req, nil
}
