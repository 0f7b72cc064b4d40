package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
	"github.com/JonMunkholm/Jobalyzer/internal/logging"
)

// multipartMemory is how much of a multipart form is held in memory before
// the rest spills to disk.
const multipartMemory = 32 << 20

// IngestAccepted is the response to a started ingestion run.
type IngestAccepted struct {
	RunID     string `json:"runId"`
	StatusURL string `json:"statusUrl"`
}

// handleStartIngest spools the uploaded CSV to a temporary file and starts
// an asynchronous run over it. The upload is either the multipart "file"
// field or the raw request body.
func (s *Server) handleStartIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxFileSize)

	body, name, err := uploadBody(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer body.Close()

	params, err := parseIngestParams(r, name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	spool, size, err := spoolToTemp(body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	runID, err := s.service.StartIngest(r.Context(), spool, size, core.RunOptions{
		Source:     params.Source,
		MaxRecords: params.Max,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("ingestion run started",
		"run_id", runID, "source", params.Source, "bytes", size)

	writeJSON(w, http.StatusAccepted, IngestAccepted{
		RunID:     runID,
		StatusURL: "/api/ingest/" + runID,
	})
}

// handleIngestStatus returns a run's phase and report. With ?wait=true it
// blocks until the run finishes or the request times out.
func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	var (
		status core.RunStatus
		err    error
	)
	if wait {
		status, err = s.service.WaitIngestRun(r.Context(), runID)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = nil
		}
	} else {
		status, err = s.service.GetIngestRun(runID)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancelIngest(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.service.CancelIngestRun(runID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID, "status": "cancelling"})
}

func (s *Server) handleIngestCapacity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.RunLimiterStatus())
}

// uploadBody returns the uploaded file and its name.
func uploadBody(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, "", nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, "", err
		}
		return nil, "", core.NewError(core.ErrStream, "invalid multipart form", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", core.NewError(core.ErrStream, "no file provided", err)
	}
	return file, header.Filename, nil
}

// tempFile removes itself on Close.
type tempFile struct {
	*os.File
}

func (f tempFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// spoolToTemp copies r to a temporary file so the run can outlive the
// request. The returned file is positioned at its start.
func spoolToTemp(r io.Reader) (io.ReadCloser, int64, error) {
	f, err := os.CreateTemp("", "jobalyzer-ingest-*.csv")
	if err != nil {
		return nil, 0, fmt.Errorf("create spool file: %w", err)
	}
	spool := tempFile{f}

	size, err := io.Copy(f, r)
	if err != nil {
		spool.Close()
		return nil, 0, fmt.Errorf("spool upload: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		spool.Close()
		return nil, 0, fmt.Errorf("rewind spool file: %w", err)
	}
	return spool, size, nil
}
