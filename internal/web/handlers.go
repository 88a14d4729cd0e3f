package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/table"
)

const (
	// multipartMemory is held in memory per upload; larger parts spill to
	// temporary files.
	multipartMemory = 32 << 20

	// maxJSONBody caps run and chat request bodies.
	maxJSONBody = 1 << 20

	archiveFilename = "cleaned_files.zip"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := IndexPage(s.cfg.Upload.MaxFileSize, s.service.Thresholds())
	templ.Handler(page).ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// handleUpload accepts multipart files under "files" (repeatable) or "file".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxRequestSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			s.respondError(w, r, err, http.StatusRequestEntityTooLarge)
			return
		}
		respondBadRequest(w, r, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := slices.Concat(r.MultipartForm.File["files"], r.MultipartForm.File["file"])
	files := make([]core.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondBadRequest(w, r, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		defer f.Close()
		files = append(files, core.UploadFile{Name: fh.Filename, Size: fh.Size, Reader: f})
	}

	result, err := s.service.Upload(withClientInfo(r.Context(), r), files)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func isTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large")
}

type runRequest struct {
	SessionID        string          `json:"session_id"`
	Config           json.RawMessage `json:"config"`
	OverrideWarnings bool            `json:"override_warnings"`
	OutputFormat     string          `json:"output_format"`
}

// handleRun cleans a session and streams the result archive.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	ctx := withClientInfo(r.Context(), r)

	req, err := body.toRunRequest()
	if err != nil {
		// An unknown session is reported before a malformed config.
		if _, serr := s.service.Session(ctx, body.SessionID); serr != nil {
			err = serr
		}
		s.respondServiceError(w, r, err)
		return
	}

	out, err := s.service.Run(ctx, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := core.WriteArchive(&buf, out); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", `attachment; filename="`+archiveFilename+`"`)
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	h.Set("X-Dataset-Dirty", strconv.FormatBool(out.Dirty()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (b runRequest) toRunRequest() (core.RunRequest, error) {
	cfg, err := decodeConfig(b.Config)
	if err != nil {
		return core.RunRequest{}, err
	}
	format, err := table.ParseFormat(b.OutputFormat)
	if err != nil {
		return core.RunRequest{}, &cleaning.ConfigError{Errors: []cleaning.FieldError{{
			Field:   "output_format",
			Message: fmt.Sprintf("unsupported value %q (want csv or xlsx)", b.OutputFormat),
		}}}
	}
	return core.RunRequest{
		SessionID:        b.SessionID,
		Config:           cfg,
		OverrideWarnings: b.OverrideWarnings,
		OutputFormat:     format,
	}, nil
}

// decodeConfig parses a JSON cleaning config. An absent or null config is
// the empty config.
func decodeConfig(raw json.RawMessage) (*cleaning.Config, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return cleaning.ParseJSON(raw)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(withClientInfo(r.Context(), r), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Message string          `json:"message"`
	Config  json.RawMessage `json:"config"`
}

// handleChat edits a config from a free-text command.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	cfg, err := decodeConfig(body.Config)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	reply, err := s.service.Chat(r.Context(), body.Message, cfg)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// decodeJSON reads a JSON request body into v. On failure it writes a 400
// or 413 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if isTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Detail: "request body too large"})
			return false
		}
		respondBadRequest(w, r, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
