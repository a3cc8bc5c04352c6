package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Skryldev/doc-intake/config"
	apperrors "github.com/Skryldev/doc-intake/errors"
	"github.com/Skryldev/doc-intake/intake"
	"github.com/Skryldev/doc-intake/login"
	"github.com/Skryldev/doc-intake/records"
)

const (
	// Room for the text fields and multipart framing around the file.
	formOverhead = 1 << 20
	maxFieldSize = 4 << 10
	maxJSONBody  = 1 << 20
)

// Handler serves the intake, admin and login routes.
type Handler struct {
	intake  Submitter
	records Repository
	login   LoginExchanger
	metrics *Metrics
	logger  *slog.Logger

	maxUpload     int64
	tempDir       string
	recordTimeout time.Duration
	idMode        config.IDMode
}

// ── intake ────────────────────────────────────────────────────────────────────

// Upload handles the multipart document upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	res, err := h.submit(w, r)
	if err != nil {
		h.metrics.intake(apperrors.Kind(err))
		if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "intake.failed", "kind", apperrors.Kind(err), "error", err.Error())
		}
		writeError(w, err)
		return
	}
	h.metrics.intake("ok")
	writeJSON(w, http.StatusOK, response{
		Success:   true,
		Message:   "File uploaded successfully",
		DriveLink: res.Link,
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) (*intake.Result, error) {
	const op = "server.upload"
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperrors.Validation(op, "expected multipart/form-data: %v", err)
	}

	var (
		req    intake.Request
		staged *intake.Staged
	)
	defer func() { staged.Remove() }()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, bodyError(op, err)
		}

		switch part.FormName() {
		case "file":
			if staged != nil {
				part.Close()
				return nil, apperrors.Validation(op, "only one file may be uploaded")
			}
			staged, err = intake.Stage(h.tempDir, part, h.maxUpload, part.FileName(), part.Header.Get("Content-Type"))
		case "name":
			req.Name, err = readField(part)
		case "phone":
			req.Phone, err = readField(part)
		case "groupId":
			req.GroupID, err = readField(part)
		case "externalUserId", "lineUserId":
			var v string
			if v, err = readField(part); v != "" {
				req.ExternalUserID = v
			}
		}
		part.Close()
		if err != nil {
			return nil, bodyError(op, err)
		}
	}

	req.File = staged
	return h.intake.Submit(r.Context(), req)
}

func readField(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxFieldSize+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxFieldSize {
		return "", apperrors.Validation("server.upload", "form field exceeds %d bytes", maxFieldSize)
	}
	return string(b), nil
}

func bodyError(op string, err error) error {
	if apperrors.CategoryOf(err) != "" {
		return err
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return apperrors.New(apperrors.CategoryValidation, op, apperrors.ErrTooLarge)
	}
	return apperrors.Validation(op, "malformed multipart body: %v", err)
}

// ── admin ─────────────────────────────────────────────────────────────────────

// List returns every submission with its positional id.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.recordCtx(r.Context())
	defer cancel()

	subs, err := h.records.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "admin.list.failed", "error", err.Error())
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: subs})
}

type updateRequest struct {
	IDs       []int    `json:"ids"`
	RecordIDs []string `json:"recordIds"`
	Purpose   string   `json:"purpose"`
	ApplyDate string   `json:"applyDate"`
}

// Update marks submissions processed and sets their purpose and apply date.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "server.admin_update"
	var body updateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil {
		h.metrics.adminUpdate(apperrors.KindValidation)
		writeError(w, apperrors.Validation(op, "invalid JSON body: %v", err))
		return
	}

	ctx, cancel := h.recordCtx(r.Context())
	defer cancel()

	u := records.Update{Purpose: body.Purpose, ApplyDate: body.ApplyDate}
	var err error
	switch {
	case len(body.RecordIDs) > 0 && h.idMode != config.IDStable:
		err = apperrors.Validation(op, "recordIds require ID_MODE=%s", config.IDStable)
	case len(body.RecordIDs) > 0 && len(body.IDs) > 0:
		err = apperrors.Validation(op, "send ids or recordIds, not both")
	case len(body.RecordIDs) > 0:
		err = h.records.BatchUpdateByRecordID(ctx, body.RecordIDs, u)
	default:
		err = h.records.BatchUpdate(ctx, body.IDs, u)
	}
	if err != nil {
		h.metrics.adminUpdate(apperrors.Kind(err))
		if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "admin.update.failed", "error", err.Error())
		}
		writeError(w, err)
		return
	}
	h.metrics.adminUpdate("ok")
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Updated successfully"})
}

func (h *Handler) recordCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.recordTimeout > 0 {
		return context.WithTimeout(ctx, h.recordTimeout)
	}
	return context.WithCancel(ctx)
}

// ── login ─────────────────────────────────────────────────────────────────────

// LineCallback completes a LINE Login and redirects to the form with the
// user's id and display name, or with an error code.
func (h *Handler) LineCallback(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, apperrors.New(apperrors.CategoryValidation, "server.line_callback",
			fmt.Errorf("%w: code", apperrors.ErrMissingField)))
		return
	}

	p, err := h.login.Exchange(r.Context(), code)
	if err != nil {
		reason := "line_error"
		switch {
		case errors.Is(err, login.ErrTokenExchange):
			reason = "line_auth_failed"
		case errors.Is(err, login.ErrProfile):
			reason = "profile_failed"
		}
		h.logger.WarnContext(r.Context(), "login.failed", "reason", reason, "error", err.Error())
		http.Redirect(w, r, "/?"+url.Values{"error": {reason}}.Encode(), http.StatusFound)
		return
	}

	q := url.Values{
		"externalUserId": {p.UserID},
		"displayName":    {p.DisplayName},
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusFound)
}
