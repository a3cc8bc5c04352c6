package storage

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
)

// Drive is the BlobStore backed by a Google Drive folder.  The returned link
// is the file's webViewLink.
type Drive struct {
	svc      *drive.Service
	folderID string
}

// NewDrive creates a Drive adapter.  Pass option.WithTokenSource (or
// option.WithHTTPClient) for credentials.
func NewDrive(ctx context.Context, folderID string, opts ...option.ClientOption) (*Drive, error) {
	if folderID == "" {
		return nil, fmt.Errorf("drive storage: folder id must not be empty")
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive storage: %w", err)
	}
	return &Drive{svc: svc, folderID: folderID}, nil
}

func (d *Drive) Put(ctx context.Context, name string, r io.Reader, _ int64, mimeType string) (core.Object, error) {
	if err := ctx.Err(); err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "drive.put", err)
	}
	meta := &drive.File{
		Name:     name,
		Parents:  []string{d.folderID},
		MimeType: mimeType,
	}
	f, err := d.svc.Files.Create(meta).
		Media(r, googleapi.ContentType(mimeType)).
		Fields("id", "name", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return core.Object{}, apperrors.Wrap(apperrors.CategoryStorage, "drive.put", err)
	}
	return core.Object{ID: f.Id, Link: f.WebViewLink}, nil
}
