package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

const (
	defaultProfileLimit = 50
	maxProfileLimit     = 500
	loadTimeout         = 5 * time.Second
)

// ProfileHandler exposes read-only profile endpoints.
type ProfileHandler struct {
	store   dossier.MetadataStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewProfileHandler wires the store and logger.
func NewProfileHandler(store dossier.MetadataStore, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{store: store, timeout: loadTimeout, logger: logger}
}

// List handles GET /v1/profiles?team=&limit=&offset=. Records are sorted by
// name; team filters case-insensitively on the current team. The response
// is {"profiles": [...], "total": n} where total counts matches before
// paging.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultProfileLimit, maxProfileLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := h.load(w, r)
	if !ok {
		return
	}

	team := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("team")))
	records := make([]dossier.Record, 0, len(snap))
	for _, rec := range snap {
		if team != "" && !strings.Contains(strings.ToLower(rec.Team), team) {
			continue
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b dossier.Record) int {
		return strings.Compare(a.Name, b.Name)
	})

	total := len(records)
	start := min(offset, total)
	end := min(start+limit, total)
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": records[start:end],
		"total":    total,
	})
}

// Get handles GET /v1/profiles/{name}. It returns {"profile": {...}} or 404.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": rec})
}

// PDF handles GET /v1/profiles/{name}/pdf by streaming the rendered file.
func (h *ProfileHandler) PDF(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	f, err := os.Open(rec.PDFPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "document missing")
			return
		}
		h.logger.Error("open document failed", zap.String("path", rec.PDFPath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open document")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open document")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *ProfileHandler) lookup(w http.ResponseWriter, r *http.Request) (dossier.Record, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "invalid name")
		return dossier.Record{}, false
	}
	snap, ok := h.load(w, r)
	if !ok {
		return dossier.Record{}, false
	}
	rec, found := snap[name]
	if !found {
		writeError(w, http.StatusNotFound, "profile not found")
		return dossier.Record{}, false
	}
	return rec, true
}

func (h *ProfileHandler) load(w http.ResponseWriter, r *http.Request) (map[string]dossier.Record, bool) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store unavailable")
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	snap, err := h.store.Load(ctx)
	if err != nil {
		h.logger.Error("load metadata failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load metadata")
		return nil, false
	}
	return snap, true
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
