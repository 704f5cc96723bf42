package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
	"github.com/PaulBabatuyi/pairchat/internal/envelope"
	"github.com/PaulBabatuyi/pairchat/internal/files"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// multipart framing allowance on top of the file limit
const multipartOverhead = 1 << 20

// handleUpload streams the multipart field "file" into the file store.
// The returned key goes into a file message's content.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		envelope.Error(w, apperror.Validation("file", "expected a multipart/form-data body"))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			envelope.Error(w, apperror.Validation("file", "malformed multipart body"))
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		name := normalize.DisplayName(filepath.Base(part.FileName()))
		if name == "" || name == "." {
			_ = part.Close()
			envelope.Error(w, apperror.Validation("file", "file name is required"))
			return
		}
		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		info, err := s.files.Upload(r.Context(), identity(r).UserID, name, contentType, part)
		_ = part.Close()
		if errors.Is(err, files.ErrTooLarge) {
			envelope.Error(w, apperror.Validation("file", fmt.Sprintf("file exceeds %d bytes", s.maxUpload)))
			return
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			envelope.Error(w, apperror.Validation("file", fmt.Sprintf("file exceeds %d bytes", s.maxUpload)))
			return
		}
		if err != nil {
			s.internal(w, r, "upload file", err)
			return
		}

		envelope.JSON(w, http.StatusCreated, envelope.OK(info))
		return
	}

	envelope.Error(w, apperror.Validation("file", "file is required"))
}

// handleDownload streams a stored object back to the client.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rc, info, err := s.files.Open(r.Context(), chi.URLParam(r, "key"))
	switch {
	case errors.Is(err, files.ErrInvalidKey):
		envelope.Error(w, apperror.Validation("key", "invalid file key"))
		return
	case errors.Is(err, files.ErrNotFound):
		envelope.Error(w, apperror.NotFound("key", "file not found"))
		return
	case err != nil:
		s.internal(w, r, "open file", err)
		return
	}
	defer rc.Close()

	contentType := info.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.FileSize))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.FileName}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn().Err(err).Str("key", info.Key).Msg("download interrupted")
	}
}
