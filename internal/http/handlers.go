package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CSwithChetan123/GhareluDiary/internal/core"
	applog "github.com/CSwithChetan123/GhareluDiary/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// userIDOf resolves the effective user for a request: explicit query
// parameter first, then the bound identity.
func (s *Server) userIDOf(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("user_id")); v != "" {
		return v
	}
	return s.reconciler.BoundUserID()
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listEntries(w, r)
	case http.MethodPost:
		s.createEntry(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	userID := s.userIDOf(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	periodKey, err := periodParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: want format like 'Mar 2024'")
		return
	}

	var entries []core.Entry
	if catStr := strings.TrimSpace(r.URL.Query().Get("category")); catStr != "" {
		cat, err := core.ParseCategory(catStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown category: "+catStr)
			return
		}
		entries, err = s.store.EntriesByCategory(r.Context(), userID, cat, periodKey)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "List entries failed", applog.FieldError, err, applog.FieldPeriodKey, periodKey)
			writeError(w, http.StatusInternalServerError, "failed to list entries")
			return
		}
	} else {
		entries, err = s.store.EntriesForPeriod(r.Context(), userID, periodKey)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "List entries failed", applog.FieldError, err, applog.FieldPeriodKey, periodKey)
			writeError(w, http.StatusInternalServerError, "failed to list entries")
			return
		}
	}

	writeJSON(w, http.StatusOK, toDTOs(entries))
}

type entryRequest struct {
	UserID   string  `json:"user_id"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity"`
	Amount   float64 `json:"amount"`
	Occurred *bool   `json:"occurred,omitempty"`
	Remark   string  `json:"remark"`
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cat, err := core.ParseCategory(req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown category: "+req.Category)
		return
	}

	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: want RFC3339")
		return
	}

	amount := req.Amount
	if req.Occurred != nil && !*req.Occurred {
		amount = core.AmountNotOccurred
	}

	entry := core.Entry{
		UserID:   req.UserID,
		Category: cat,
		Date:     date,
		Quantity: req.Quantity,
		Amount:   amount,
		Remark:   req.Remark,
	}

	id, err := s.reconciler.SaveEntry(r.Context(), entry)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateEntry):
			writeError(w, http.StatusConflict, "an entry for this category and day already exists")
		case errors.Is(err, core.ErrInvalidEntry), errors.Is(err, core.ErrEmptyUserID):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.ErrorContext(r.Context(), "Create entry failed", applog.FieldError, err, applog.FieldCategory, cat.String())
			writeError(w, http.StatusInternalServerError, "failed to create entry")
		}
		return
	}

	saved, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
		return
	}

	s.summaryCache.Invalidate(saved.UserID, saved.PeriodKey)
	writeJSON(w, http.StatusCreated, toDTO(saved))
}

func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getEntry(w, r, id)
	case http.MethodPut:
		s.updateEntry(w, r, id)
	case http.MethodDelete:
		s.deleteEntry(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request, id int64) {
	entry, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load entry")
		return
	}
	writeJSON(w, http.StatusOK, toDTO(entry))
}

type entryUpdateRequest struct {
	Quantity *float64 `json:"quantity,omitempty"`
	Amount   *float64 `json:"amount,omitempty"`
	Occurred *bool    `json:"occurred,omitempty"`
	Remark   *string  `json:"remark,omitempty"`
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request, id int64) {
	var req entryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load entry")
		return
	}

	if req.Quantity != nil {
		entry.Quantity = *req.Quantity
	}
	if req.Amount != nil {
		entry.Amount = *req.Amount
	}
	if req.Occurred != nil && !*req.Occurred {
		entry.Amount = core.AmountNotOccurred
	}
	if req.Remark != nil {
		entry.Remark = *req.Remark
	}

	if err := s.reconciler.UpdateEntry(r.Context(), entry); err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			writeError(w, http.StatusNotFound, "entry not found")
		case errors.Is(err, core.ErrInvalidEntry):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.ErrorContext(r.Context(), "Update entry failed", applog.FieldError, err, applog.FieldEntryID, id)
			writeError(w, http.StatusInternalServerError, "failed to update entry")
		}
		return
	}

	updated, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
		return
	}

	s.summaryCache.Invalidate(updated.UserID, updated.PeriodKey)
	writeJSON(w, http.StatusOK, toDTO(updated))
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request, id int64) {
	entry, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load entry")
		return
	}

	if err := s.reconciler.DeleteEntry(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "Delete entry failed", applog.FieldError, err, applog.FieldEntryID, id)
		writeError(w, http.StatusInternalServerError, "failed to delete entry")
		return
	}

	s.summaryCache.Invalidate(entry.UserID, entry.PeriodKey)
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

type categoryStatsDTO struct {
	Category      string  `json:"category"`
	DisplayName   string  `json:"display_name"`
	TotalAmount   float64 `json:"total_amount"`
	TotalQuantity float64 `json:"total_quantity,omitempty"`
	QuantityUnit  string  `json:"quantity_unit,omitempty"`
	EntryCount    int     `json:"entry_count"`
	CountLabel    string  `json:"count_label"`
	MissedCount   int     `json:"missed_count"`
	LastEntryDate string  `json:"last_entry_date,omitempty"`
}

type summaryDTO struct {
	PeriodKey  string             `json:"period_key"`
	Total      float64            `json:"total"`
	Categories []categoryStatsDTO `json:"categories"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := s.userIDOf(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	periodKey, err := periodParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: want format like 'Mar 2024'")
		return
	}

	summary, ok := s.summaryCache.Get(userID, periodKey)
	if !ok {
		fresh, err := s.store.MonthlySummary(r.Context(), userID, periodKey)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Monthly summary failed", applog.FieldError, err, applog.FieldPeriodKey, periodKey)
			writeError(w, http.StatusInternalServerError, "failed to compute summary")
			return
		}
		summary = &fresh
		s.summaryCache.Set(userID, periodKey, summary)
	}

	dto := summaryDTO{
		PeriodKey: summary.PeriodKey,
		Total:     summary.Total(),
	}
	for _, cat := range core.Categories() {
		st, ok := summary.ByCategory[cat]
		if !ok {
			continue
		}
		catDTO := categoryStatsDTO{
			Category:    cat.String(),
			DisplayName: cat.DisplayName(),
			TotalAmount: st.TotalAmount,
			EntryCount:  st.EntryCount,
			CountLabel:  cat.CountLabel(),
			MissedCount: st.MissedCount,
		}
		if cat.HasQuantity() {
			catDTO.TotalQuantity = st.TotalQuantity
			catDTO.QuantityUnit = cat.QuantityUnit()
		}
		if !st.LastEntryDate.IsZero() {
			catDTO.LastEntryDate = st.LastEntryDate.Format(time.RFC3339)
		}
		dto.Categories = append(dto.Categories, catDTO)
	}

	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := s.userIDOf(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	keys, err := s.store.AllPeriodKeys(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list periods")
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

type profileDTO struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := s.userIDOf(r)
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		p, err := s.store.Profile(r.Context(), userID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				writeError(w, http.StatusNotFound, "profile not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
		writeJSON(w, http.StatusOK, profileDTO{UserID: p.UserID, Name: p.Name, Email: p.Email})

	case http.MethodPut, http.MethodPost:
		var req profileDTO
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.UserID == "" {
			req.UserID = s.reconciler.BoundUserID()
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		p := core.UserProfile{UserID: req.UserID, Name: req.Name, Email: req.Email}
		if err := s.store.SaveProfile(r.Context(), p); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save profile")
			return
		}
		writeJSON(w, http.StatusOK, req)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type syncRequest struct {
	Period string `json:"period,omitempty"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req syncRequest
	if r.Body != nil {
		// An empty body means "sync the current month".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	periodKey := req.Period
	if periodKey == "" {
		periodKey = core.PeriodKeyFor(time.Now())
	} else if _, err := core.ParsePeriodKey(periodKey); err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: want format like 'Mar 2024'")
		return
	}

	started, err := s.orchestrator.SyncPeriod(r.Context(), periodKey)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Manual sync failed", applog.FieldError, err, applog.FieldPeriodKey, periodKey)
		writeError(w, http.StatusBadGateway, "sync failed: "+err.Error())
		return
	}

	status := http.StatusOK
	if !started {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{"period": periodKey, "started": started})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	periodKey, err := periodParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: want format like 'Mar 2024'")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period":  periodKey,
		"syncing": s.orchestrator.Syncing(periodKey),
	})
}
