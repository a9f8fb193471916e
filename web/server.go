// Package web accepts world uploads over HTTP and serves the merge status.
package web

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/b1naryth1ef/worldsync"
	"github.com/b1naryth1ef/worldsync/build"
	"go.uber.org/zap"
)

const maxUploadMemory = 32 << 20

// Jobs is the merge queue as seen from HTTP handlers.
type Jobs interface {
	Enqueue(path string)
	Status() worldsync.Status
}

type Server struct {
	jobs      Jobs
	uploadDir string
	log       *zap.Logger
}

func NewServer(jobs Jobs, uploadDir string, log *zap.Logger) *Server {
	return &Server{
		jobs:      jobs,
		uploadDir: uploadDir,
		log:       log.Named("web"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /merge", s.handleMerge)
	mux.HandleFunc("GET /merge/status", s.handleStatus)
	return mux
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("world_zip")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No 'world_zip' file found"})
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.HasSuffix(name, ".zip") {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Uploaded file must be a zip archive."})
		return
	}

	path, err := s.save(file, name)
	if err != nil {
		s.log.Error("failed to store upload", zap.String("filename", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to store upload"})
		return
	}

	s.jobs.Enqueue(path)
	writeJSON(w, http.StatusOK, MergeResponse{Status: "ok", Message: "File accepted and queued for merging"})
}

func (s *Server) save(src io.Reader, name string) (path string, err error) {
	if err := os.MkdirAll(s.uploadDir, os.ModePerm); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(s.uploadDir, build.UploadSpoolPrefix)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	path = filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}

	_, err = io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
