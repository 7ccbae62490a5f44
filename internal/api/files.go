package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fily/fily/internal/fsops"
	"github.com/fily/fily/internal/logging"
	"github.com/fily/fily/internal/metrics"
)

// ─── Listing ────────────────────────────────────────────────────────────────

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	abs, err := s.root.Resolve(r.URL.Query().Get("path"))
	if err != nil {
		s.sendOpError(w, r, err)
		return
	}

	// The root is created lazily, so listing it before any upload is an
	// empty result, not a 404.
	if abs == s.root.Path() {
		if err := fsops.MakeDirectory(abs); err != nil {
			s.sendOpError(w, r, err)
			return
		}
	}

	entries, err := fsops.List(abs)
	if err != nil {
		s.sendOpError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{"files": entries})
}

// ─── Download ───────────────────────────────────────────────────────────────

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		sendError(w, http.StatusBadRequest, "path required")
		return
	}

	abs, err := s.root.Resolve(rel)
	if err != nil {
		s.sendOpError(w, r, err)
		return
	}

	rc, info, err := fsops.OpenForRead(abs)
	if errors.Is(err, fsops.ErrIsADirectory) {
		s.serveArchive(w, r, abs)
		return
	}
	if err != nil {
		s.sendOpError(w, r, err)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(abs))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name()))

	n, err := io.Copy(w, rc)
	if err != nil {
		// Client went away mid-stream; nothing to send anymore.
		logging.Warn("download aborted", zap.String("name", info.Name()), zap.Error(err))
	}
	metrics.RecordDownload("file", n, err == nil)
}

// serveArchive streams a directory as a zip attachment. The response is
// produced incrementally; a disconnect cancels the walk via the request
// context.
func (s *Server) serveArchive(w http.ResponseWriter, r *http.Request, absDir string) {
	name := filepath.Base(absDir)
	if absDir == s.root.Path() {
		name = "files"
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))

	counted := &countingWriter{w: w}
	err := fsops.WriteArchive(r.Context(), counted, absDir)
	if err != nil {
		// Headers are gone already; log and cut the stream.
		logging.Warn("archive aborted", zap.String("name", name), zap.Error(err))
	}
	metrics.RecordDownload("archive", counted.n, err == nil)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// ─── Upload ─────────────────────────────────────────────────────────────────

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)

	// Large parts spool to disk past this threshold; memory stays
	// bounded regardless of file size.
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordUpload(0, false)
			sendError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file too large: max %d bytes", s.maxUploadSize))
			return
		}
		sendError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.RecordUpload(0, false)
		sendError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	parentAbs, err := s.root.Resolve(r.FormValue("path"))
	if err != nil {
		metrics.RecordUpload(0, false)
		s.sendOpError(w, r, err)
		return
	}

	n, err := fsops.WriteFile(parentAbs, header.Filename, file)
	if err != nil {
		metrics.RecordUpload(0, false)
		s.sendOpError(w, r, err)
		return
	}

	metrics.RecordUpload(n, true)
	logging.Info("file uploaded",
		zap.String("name", header.Filename),
		zap.Int64("size", n))
	sendSuccess(w, fmt.Sprintf("%s uploaded successfully", header.Filename))
}

// ─── Mutations ──────────────────────────────────────────────────────────────

func (s *Server) handleMkdir(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		sendError(w, http.StatusBadRequest, "path required")
		return
	}

	abs, err := s.root.Resolve(req.Path)
	if err != nil {
		metrics.RecordMutation("mkdir", false)
		s.sendOpError(w, r, err)
		return
	}
	if err := fsops.MakeDirectory(abs); err != nil {
		metrics.RecordMutation("mkdir", false)
		s.sendOpError(w, r, err)
		return
	}

	metrics.RecordMutation("mkdir", true)
	sendSuccess(w, "directory created")
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPath string `json:"oldPath"`
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OldPath == "" || req.NewName == "" {
		sendError(w, http.StatusBadRequest, "oldPath and newName required")
		return
	}

	abs, err := s.root.Resolve(req.OldPath)
	if err != nil {
		metrics.RecordMutation("rename", false)
		s.sendOpError(w, r, err)
		return
	}
	if err := s.root.Rename(abs, req.NewName); err != nil {
		metrics.RecordMutation("rename", false)
		s.sendOpError(w, r, err)
		return
	}

	metrics.RecordMutation("rename", true)
	sendSuccess(w, "renamed successfully")
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Source == "" {
		sendError(w, http.StatusBadRequest, "source and target required")
		return
	}

	// Source and target are validated independently.
	srcAbs, err := s.root.Resolve(req.Source)
	if err != nil {
		metrics.RecordMutation("move", false)
		s.sendOpError(w, r, err)
		return
	}
	dstAbs, err := s.root.Resolve(req.Target)
	if err != nil {
		metrics.RecordMutation("move", false)
		s.sendOpError(w, r, err)
		return
	}

	// Moving into an existing directory keeps the source's base name.
	if fsops.IsDir(dstAbs) {
		dstAbs = filepath.Join(dstAbs, path.Base(fsops.Clean(req.Source)))
	}

	// A path cannot move into itself or its own subtree.
	if dstAbs == srcAbs || strings.HasPrefix(dstAbs, srcAbs+string(filepath.Separator)) {
		metrics.RecordMutation("move", false)
		sendError(w, http.StatusBadRequest, "cannot move a path into itself")
		return
	}

	if err := fsops.Move(srcAbs, dstAbs); err != nil {
		metrics.RecordMutation("move", false)
		s.sendOpError(w, r, err)
		return
	}

	metrics.RecordMutation("move", true)
	sendSuccess(w, "moved successfully")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		sendError(w, http.StatusBadRequest, "path required")
		return
	}

	abs, err := s.root.Resolve(rel)
	if err != nil {
		metrics.RecordMutation("delete", false)
		s.sendOpError(w, r, err)
		return
	}
	if err := s.root.Delete(abs); err != nil {
		metrics.RecordMutation("delete", false)
		s.sendOpError(w, r, err)
		return
	}

	metrics.RecordMutation("delete", true)
	sendJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
