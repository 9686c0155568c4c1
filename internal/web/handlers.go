package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/JonMunkholm/PostImport/internal/logging"
	"github.com/JonMunkholm/PostImport/internal/web/views"
	"github.com/google/uuid"
)

// recentEntries is how many diagnostic lines the summary page shows.
const recentEntries = 20

// handleSummary renders the dashboard.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var data views.SummaryData

	st, err := s.runner.Status(ctx)
	switch {
	case err == nil:
		data.Run = st
	case !errors.Is(err, core.ErrNoActiveRun):
		s.respondError(w, r, err, 0)
		return
	}

	if s.opts.Log != nil {
		entries, err := s.opts.Log.Recent(ctx, recentEntries)
		if err != nil {
			logging.FromContext(ctx).Warn("load recent log entries", "error", err)
		}
		data.Recent = entries
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.Summary(data).Render(ctx, w); err != nil {
		logging.FromContext(ctx).Error("render summary", "error", err)
	}
}

// handleHealth reports liveness and, when configured, database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		if err := s.opts.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStartImport saves the uploaded CSV into the import directory and
// starts a run over it.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, r, fmt.Errorf("file too large or invalid form: %w", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, err := s.parseStartRequest(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	path, size, err := s.saveUpload(file)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if size == 0 {
		_ = os.Remove(path)
		s.respondError(w, r, errors.New("empty file"), http.StatusBadRequest)
		return
	}
	req.SourceFile = path

	st, err := s.runner.Start(r.Context(), req)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logging.FromContext(r.Context()).Warn("remove rejected upload", "path", path, "error", rmErr)
		}
		s.respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "run_id", st.RunID, "bytes", size).Info("import accepted")
	writeJSON(w, http.StatusAccepted, st)
}

// parseStartRequest reads the optional form fields of an import request.
func (s *Server) parseStartRequest(r *http.Request) (core.StartRequest, error) {
	req := core.StartRequest{
		Delimiter: s.cfg.Import.DelimiterRune(),
		ChunkSize: s.cfg.Import.ChunkSize,
	}

	if v := r.FormValue("skip_existing"); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid csv option skip_existing %q", v)
		}
		req.SkipExisting = skip
	}

	if v := r.FormValue("delimiter"); v != "" {
		runes := []rune(v)
		if len(runes) != 1 {
			return req, fmt.Errorf("unsupported delimiter %q", v)
		}
		req.Delimiter = runes[0]
	}

	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return req, fmt.Errorf("invalid csv option chunk_size %q", v)
		}
		req.ChunkSize = n
	}
	return req, nil
}

// saveUpload copies src into a fresh file in the import directory.
func (s *Server) saveUpload(src io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.cfg.Import.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create import dir: %w", err)
	}

	path := filepath.Join(s.cfg.Import.Dir, uuid.New().String()+".csv")
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("save upload: %w", err)
	}
	return path, n, nil
}

// handleCurrentImport returns the active ImportState.
func (s *Server) handleCurrentImport(w http.ResponseWriter, r *http.Request) {
	st, err := s.runner.Status(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCancelImport stops the active run. Rows already imported stay.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	st, err := s.runner.Cancel(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   st.RunID,
		"status":   "cancelled",
		"counters": st.Counters,
	})
}

// handleNextChunk queues the next chunk of the active run.
func (s *Server) handleNextChunk(w http.ResponseWriter, r *http.Request) {
	st, err := s.runner.Resume(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": st.RunID,
		"status": "scheduled",
	})
}
