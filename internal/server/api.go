package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/livetemplate/kayero"
	"github.com/livetemplate/kayero/internal/charts"
	"github.com/livetemplate/kayero/internal/security"
	"github.com/livetemplate/kayero/internal/store"
)

// saveRequest is the optional body of POST /api/save.
type saveRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Document())
}

// handleActions applies one action envelope and returns the new document.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	doc, err := s.apply(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// apply decodes and dispatches an action. Documents to load are parsed
// first so that syntax errors reach the client instead of being dropped, and
// datasource URLs are checked before they enter the notebook.
func (s *Server) apply(envelope []byte) (*kayero.Document, error) {
	action, err := kayero.DecodeAction(envelope)
	if err != nil {
		return nil, err
	}
	switch a := action.(type) {
	case kayero.UpdateDatasource:
		if err := security.ValidateDatasourceURL(a.Text); err != nil {
			return nil, fmt.Errorf("datasource %q: %w", a.ID, err)
		}
	case kayero.UpdateGraphProperty:
		if a.Property == kayero.PropertyGraphType && !slices.Contains(charts.Default().GraphTypes(), a.Value) {
			return nil, fmt.Errorf("unknown chart type %q", a.Value)
		}
	case kayero.LoadDocument:
		if err := s.session.Load(a.Source, a.Filename); err != nil {
			return nil, err
		}
		return s.session.Document(), nil
	}
	return s.session.Dispatch(action), nil
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	path := req.Path
	if path == "" {
		path = s.session.Document().Metadata.Path
	}
	if path == "" {
		path = s.notebook
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, "no path to save to")
		return
	}

	if err := s.session.Save(r.Context(), path); err != nil {
		s.log.Error("save failed", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save notebook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	link, err := s.session.Share(r.Context(), s.store)
	if err != nil {
		s.log.Error("share failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to publish notebook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

// handleShared serves a published notebook as markdown, or as the JSON read
// model with ?format=json. The id comes from the path or, for share links
// built from the homepage, from ?id=.
func (s *Server) handleShared(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing shared notebook id")
		return
	}
	markdown, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "shared notebook not found")
		return
	}
	if err != nil {
		s.log.Error("shared notebook lookup failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load shared notebook")
		return
	}

	if r.URL.Query().Get("format") == "json" {
		doc, err := kayero.Parse(markdown, id+".md")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "shared notebook is not valid")
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(markdown)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.ConnectionCount(),
		"store":       store.Health(s.store),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
