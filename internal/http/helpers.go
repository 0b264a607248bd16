package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
)

// apiResponse is the envelope for all JSON responses
type apiResponse struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{OK: false, Error: msg})
}

// clientIPOf extracts the client IP, honouring X-Forwarded-For from a
// fronting proxy.
func clientIPOf(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// periodParam reads the "period" query parameter, defaulting to the
// current month.
func periodParam(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get("period"))
	if v == "" {
		return core.PeriodKeyFor(time.Now()), nil
	}
	if _, err := core.ParsePeriodKey(v); err != nil {
		return "", err
	}
	return v, nil
}

// entryDTO is the wire shape of a diary entry
type entryDTO struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	PeriodKey   string  `json:"period_key"`
	Quantity    float64 `json:"quantity"`
	Amount      float64 `json:"amount"`
	NotOccurred bool    `json:"not_occurred"`
	Remark      string  `json:"remark,omitempty"`
	RemoteID    string  `json:"remote_id,omitempty"`
	Synced      bool    `json:"synced"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toDTO(e core.Entry) entryDTO {
	return entryDTO{
		ID:          e.ID,
		UserID:      e.UserID,
		Category:    e.Category.String(),
		Date:        e.Date.Format(time.RFC3339),
		PeriodKey:   e.PeriodKey,
		Quantity:    e.Quantity,
		Amount:      e.Amount,
		NotOccurred: e.NotOccurred(),
		Remark:      e.Remark,
		RemoteID:    e.RemoteID,
		Synced:      e.Synced,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

func toDTOs(entries []core.Entry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toDTO(e))
	}
	return out
}
