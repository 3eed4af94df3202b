package export

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/grouping"
)

// Handler serves POST /api/tables/group/export?format=csv|xlsx.
type Handler struct {
	service *Service
	groups  *grouping.Service
	now     func() time.Time
}

func NewHTTPHandler(service *Service, groups *grouping.Service) http.Handler {
	return &Handler{service: service, groups: groups, now: time.Now}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, status, err := grouping.DecodeRequest(r, h.groups)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	format := ParseFormat(r.URL.Query().Get("format"))

	table, columns, err := h.service.Export(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), grouping.StatusCode(err))
		return
	}

	filename := fmt.Sprintf("%s-%s-%s.%s",
		sanitizeFilename(table.TableID),
		sanitizeFilename(table.GroupBy.Field),
		h.now().UTC().Format("20060102T150405Z"),
		format,
	)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := Write(w, format, table, columns); err != nil {
		log.Printf("[EXPORT] failed to stream %s: %v", filename, err)
	}
}

func sanitizeFilename(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "export"
	}
	return b.String()
}
