package grouping

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/auth"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
)

// GroupPath is the only path the group endpoint answers on.
const GroupPath = "/api/tables/group"

// Handler serves the grouped table endpoints:
//
//	POST /api/tables/group         grouped counts, order and rows
//	GET  /api/tables/{tableId}/meta groupable fields and views
type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.TrimSuffix(r.URL.Path, "/") == GroupPath:
		h.handleGroup(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/meta"):
		h.handleMeta(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// DecodeRequest reads a request body and authorizes the caller for its table.
// The caller id from the authenticated principal wins over the body.
func DecodeRequest(r *http.Request, service *Service) (Request, int, error) {
	defer r.Body.Close()
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Request{}, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err)
	}
	if callerID := auth.CallerIDFromContext(r.Context()); callerID != "" {
		req.CallerID = callerID
	}
	if entity, ok := service.ResolveTable(req.TableID); ok {
		if err := auth.EnforceRead(r.Context(), entity); err != nil {
			return Request{}, http.StatusForbidden, err
		}
	}
	return req, http.StatusOK, nil
}

func (h *Handler) handleGroup(w http.ResponseWriter, r *http.Request) {
	req, status, err := DecodeRequest(r, h.service)
	if err != nil {
		writeError(w, status, err)
		return
	}
	result, err := h.service.Group(r.Context(), req)
	if err != nil {
		writeError(w, StatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type fieldMeta struct {
	Key       string `json:"key"`
	Label     string `json:"label,omitempty"`
	Virtual   bool   `json:"virtual"`
	Groupable bool   `json:"groupable"`
}

type viewMeta struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	GroupBy domain.GroupBy `json:"groupBy"`
}

type tableMeta struct {
	TableID    string      `json:"tableId"`
	Entity     string      `json:"entity"`
	PrimaryKey string      `json:"primaryKey"`
	Fields     []fieldMeta `json:"fields"`
	Views      []viewMeta  `json:"views"`
}

func (h *Handler) handleMeta(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/meta")
	tableID := path[strings.LastIndex(path, "/")+1:]
	entity, ok := h.service.ResolveTable(tableID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown table %q", tableID))
		return
	}
	if err := auth.EnforceRead(r.Context(), entity); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}

	groupable := make(map[string]struct{})
	for _, key := range h.service.GroupableFields(entity) {
		groupable[key] = struct{}{}
	}
	meta := tableMeta{TableID: tableID, Entity: entity.Key, PrimaryKey: entity.PrimaryKey, Views: []viewMeta{}}
	for _, key := range sortedFieldKeys(entity) {
		field := entity.Fields[key]
		_, ok := groupable[key]
		meta.Fields = append(meta.Fields, fieldMeta{Key: key, Label: field.Label, Virtual: field.Virtual, Groupable: ok})
	}
	for _, view := range entity.Views {
		meta.Views = append(meta.Views, viewMeta{ID: view.ID, Name: view.Name, GroupBy: view.GroupBy})
	}
	writeJSON(w, http.StatusOK, meta)
}

// StatusCode maps engine errors to HTTP status codes.
func StatusCode(err error) int {
	var engineErr *Error
	if !errors.As(err, &engineErr) {
		return http.StatusInternalServerError
	}
	switch engineErr.Kind {
	case KindInput, KindResolution:
		return http.StatusBadRequest
	case KindNotFound:
		if engineErr.Misconfigured {
			return http.StatusInternalServerError
		}
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
