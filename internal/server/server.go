package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

const maxUploadMemory = 32 << 20

// Asker answers a question from the indexed documents.
type Asker interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

// Ingester indexes uploaded files.
type Ingester interface {
	Ingest(ctx context.Context, uploads []models.Upload) (*models.IngestReport, error)
}

type Server struct {
	cfg      config.ServerConfig
	asker    Asker
	ingester Ingester
	server   *http.Server
}

func NewServer(cfg config.ServerConfig, asker Asker, ingester Ingester) *Server {
	s := &Server{cfg: cfg, asker: asker, ingester: ingester}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routes wrapped with request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /ask/{$}", s.handleAsk)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /upload/{$}", s.handleUpload)
	mux.HandleFunc("GET /health", s.handleHealth)

	var h http.Handler = recoverMiddleware(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("Starting server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.PostFormValue("question"))
	if question == "" {
		writeError(w, http.StatusUnprocessableEntity, "field 'question' is required")
		return
	}

	answer, err := s.asker.Ask(r.Context(), question)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error answering question")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "multipart form with field 'files' is required")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "field 'files' is required")
		return
	}
	supported := parser.SupportedExtensions()
	for _, fh := range headers {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !slices.Contains(supported, ext) {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unsupported file format %q for %s, supported: %s",
				ext, fh.Filename, strings.Join(supported, ", ")))
			return
		}
	}

	uploads := make([]models.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		files = append(files, f)
		uploads = append(uploads, models.Upload{Filename: fh.Filename, Body: f})
	}

	report, err := s.ingester.Ingest(r.Context(), uploads)
	if err != nil {
		completed := 0
		if report != nil {
			completed = len(report.Files)
		}
		hlog.FromRequest(r).Error().Err(err).Int("completed", completed).Msg("Error ingesting files")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	names := make([]string, len(report.Files))
	for i, f := range report.Files {
		names[i] = f.Filename
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Files uploaded and processed successfully",
		"files":   names,
		"chunks":  report.TotalChunks(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// headerWriter remembers whether the response status has been sent.
type headerWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *headerWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// recoverMiddleware turns a handler panic into a 500 JSON error. When the
// handler already started its response only the log entry is written.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hw := &headerWriter{ResponseWriter: w}
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().Interface("panic", rec).Bool("headers_sent", hw.wroteHeader).Msg("Recovered from panic")
				if !hw.wroteHeader {
					writeError(w, http.StatusInternalServerError, fmt.Sprint(rec))
				}
			}
		}()
		next.ServeHTTP(hw, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Error writing response")
	}
}
