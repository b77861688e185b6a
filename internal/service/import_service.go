package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"agencydesk/internal/domain"
	"agencydesk/internal/repository"
)

// ImportService загружает агентства и контакты из CSV-файлов.
// Импорт наполняет справочники и не трогает квоты просмотров.
type ImportService struct {
	agencyRepo  repository.AgencyRepository
	contactRepo repository.ContactRepository
}

func NewImportService(agencyRepo repository.AgencyRepository, contactRepo repository.ContactRepository) *ImportService {
	return &ImportService{
		agencyRepo:  agencyRepo,
		contactRepo: contactRepo,
	}
}

// Заголовки CSV: name,state,state_code,type,population,website,phone,county,...,id
func (s *ImportService) ImportAgencies(ctx context.Context, file io.Reader) (int64, error) {
	rows, columns, err := readCSV(file)
	if err != nil {
		return 0, err
	}

	agencies := make([]domain.Agency, 0, len(rows))
	for i, row := range rows {
		id := field(row, columns, "id")
		if id == "" {
			id = uuid.NewString()
		}

		name := field(row, columns, "name")
		if name == "" {
			name = fmt.Sprintf("Agency %d", i+1)
		}

		agencies = append(agencies, domain.Agency{
			ID:         id,
			Name:       name,
			State:      optional(field(row, columns, "state")),
			StateCode:  optional(field(row, columns, "state_code")),
			Type:       optional(field(row, columns, "type")),
			Population: optional(field(row, columns, "population")),
			Website:    optional(field(row, columns, "website")),
			Phone:      optional(field(row, columns, "phone")),
			County:     optional(field(row, columns, "county")),
		})
	}

	inserted, err := s.agencyRepo.BulkInsert(ctx, agencies)
	if err != nil {
		return 0, fmt.Errorf("failed to import agencies: %w", err)
	}

	log.Printf("[ImportService] Импортировано агентств: %d из %d строк", inserted, len(rows))
	return inserted, nil
}

// Заголовки CSV: id,first_name,last_name,email,phone,title,email_type,
// contact_form_url,created_at,updated_at,agency_id,firm_id,department
func (s *ImportService) ImportContacts(ctx context.Context, file io.Reader) (int64, error) {
	rows, columns, err := readCSV(file)
	if err != nil {
		return 0, err
	}

	contacts := make([]domain.Contact, 0, len(rows))
	for i, row := range rows {
		id := field(row, columns, "id")
		if id == "" {
			id = uuid.NewString()
		}

		email := field(row, columns, "email")
		if email == "" {
			email = fmt.Sprintf("contact%d@example.com", i+1)
		}

		contacts = append(contacts, domain.Contact{
			ID:             id,
			FirstName:      field(row, columns, "first_name"),
			LastName:       field(row, columns, "last_name"),
			Email:          email,
			Phone:          optional(field(row, columns, "phone")),
			Title:          optional(field(row, columns, "title")),
			EmailType:      optional(field(row, columns, "email_type")),
			ContactFormURL: optional(field(row, columns, "contact_form_url")),
			Department:     optional(field(row, columns, "department")),
			FirmID:         optional(field(row, columns, "firm_id")),
			AgencyID:       field(row, columns, "agency_id"),
		})
	}

	inserted, err := s.contactRepo.BulkInsert(ctx, contacts)
	if err != nil {
		return 0, fmt.Errorf("failed to import contacts: %w", err)
	}

	log.Printf("[ImportService] Импортировано контактов: %d из %d строк", inserted, len(rows))
	return inserted, nil
}

// readCSV читает файл целиком и возвращает строки данных и индекс колонок
func readCSV(file io.Reader) ([][]string, map[string]int, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	if len(records) < 2 {
		return nil, nil, fmt.Errorf("invalid CSV format: header and at least one row required")
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}

	return records[1:], columns, nil
}

func field(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
