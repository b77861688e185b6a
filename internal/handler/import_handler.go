package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"agencydesk/internal/auth"
	"agencydesk/internal/service"
)

type ImportHandler struct {
	importService *service.ImportService
}

func NewImportHandler(importService *service.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

// ImportAgencies обрабатывает загрузку CSV-файла с агентствами
func (h *ImportHandler) ImportAgencies(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	_, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	count, err := h.importService.ImportAgencies(r.Context(), file)
	if err != nil {
		log.Printf("Failed to import agencies: %v", err)
		http.Error(w, "Failed to import agencies", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Agencies imported successfully",
		"count":   count,
	})
}

// ImportContacts обрабатывает загрузку CSV-файла с контактами
func (h *ImportHandler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	// Проверяем авторизацию
	_, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	count, err := h.importService.ImportContacts(r.Context(), file)
	if err != nil {
		log.Printf("Failed to import contacts: %v", err)
		http.Error(w, "Failed to import contacts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Contacts imported successfully",
		"count":   count,
	})
}
