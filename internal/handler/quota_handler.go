package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"agencydesk/internal/auth"
	"agencydesk/internal/service"
)

type QuotaHandler struct {
	quotaService *service.QuotaService
}

func NewQuotaHandler(quotaService *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

// GetViewLimit обрабатывает запрос текущего состояния квоты просмотров
func (h *QuotaHandler) GetViewLimit(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.quotaService.Status(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to get quota status: %v", err)
		http.Error(w, "Failed to check view limit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// ResetLimits обрабатывает запрос сброса квоты текущего пользователя
func (h *QuotaHandler) ResetLimits(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.quotaService.Reset(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to reset quota for user %s: %v", userID, err)
		http.Error(w, "Failed to reset rate limits", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        true,
		"message":        "Contact view rate limits have been reset",
		"deletedRecords": result,
	})
}
