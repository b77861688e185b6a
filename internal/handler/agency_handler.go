package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"agencydesk/internal/auth"
	"agencydesk/internal/service"
)

type AgencyHandler struct {
	agencyService *service.AgencyService
	quotaService  *service.QuotaService
}

func NewAgencyHandler(agencyService *service.AgencyService, quotaService *service.QuotaService) *AgencyHandler {
	return &AgencyHandler{
		agencyService: agencyService,
		quotaService:  quotaService,
	}
}

// GetAgencies обрабатывает запрос страницы агентств, квота не применяется
func (h *AgencyHandler) GetAgencies(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	_, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "limit", h.quotaService.DefaultPageSize())

	result, err := h.agencyService.GetAgenciesPage(r.Context(), page, pageSize)
	if err != nil {
		log.Printf("Failed to fetch agencies page: %v", err)
		http.Error(w, "Failed to fetch agencies", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
