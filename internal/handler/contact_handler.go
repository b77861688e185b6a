package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"agencydesk/internal/auth"
	"agencydesk/internal/domain"
	"agencydesk/internal/service"
)

type ContactHandler struct {
	quotaService *service.QuotaService
}

func NewContactHandler(quotaService *service.QuotaService) *ContactHandler {
	return &ContactHandler{quotaService: quotaService}
}

// GetContacts обрабатывает запрос страницы контактов с учётом квоты
func (h *ContactHandler) GetContacts(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "limit", h.quotaService.DefaultPageSize())

	result, err := h.quotaService.FetchContactsPage(r.Context(), userID, page, pageSize)
	if err != nil {
		var quotaErr *domain.QuotaExceededError
		if errors.As(err, &quotaErr) {
			// Лимит исчерпан: записи не отдаём вовсе, ответ не кэшируется
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":     "Daily limit reached",
				"viewCount": quotaErr.Used,
				"remaining": 0,
				"limit":     quotaErr.Limit,
			})
			return
		}

		log.Printf("Failed to fetch contacts page: %v", err)
		http.Error(w, "Failed to fetch contacts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// queryInt читает целочисленный параметр запроса со значением по умолчанию
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return def
	}

	return value
}
