package service

import (
	"context"
	"fmt"

	"agencydesk/internal/domain"
	"agencydesk/internal/repository"
)

// AgencyService отдаёт список агентств. Квота на агентства не
// распространяется — лимитируются только просмотры контактов.
type AgencyService struct {
	agencyRepo repository.AgencyRepository
}

func NewAgencyService(agencyRepo repository.AgencyRepository) *AgencyService {
	return &AgencyService{agencyRepo: agencyRepo}
}

func (s *AgencyService) GetAgenciesPage(ctx context.Context, page, pageSize int) (*domain.AgencyPage, error) {
	if page < 1 {
		page = 1
	}

	total, err := s.agencyRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count agencies: %w", err)
	}

	offset := (page - 1) * pageSize
	agencies, err := s.agencyRepo.GetPage(ctx, offset, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get agencies page: %w", err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &domain.AgencyPage{
		Agencies:   agencies,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}
