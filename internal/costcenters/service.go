package costcenters

import (
	"context"
	"fmt"
	"strings"
)

// RepositoryPort defines data access methods for cost centers.
type RepositoryPort interface {
	Create(ctx context.Context, cc CostCenter) (CostCenter, error)
	GetByCode(ctx context.Context, code string) (CostCenter, error)
	GetByID(ctx context.Context, id int64) (CostCenter, error)
	List(ctx context.Context) ([]CostCenter, error)
}

// Service handles cost center lookups and creation.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new cost center.
func (s *Service) Create(ctx context.Context, code, name string) (CostCenter, error) {
	cc := CostCenter{Code: NormalizeCode(code), Name: strings.TrimSpace(name)}
	if cc.Code == "" || cc.Name == "" {
		return CostCenter{}, fmt.Errorf("%w: code and name are required", ErrValidation)
	}
	return s.repo.Create(ctx, cc)
}

// GetByCode resolves a code case-insensitively.
func (s *Service) GetByCode(ctx context.Context, code string) (CostCenter, error) {
	code = NormalizeCode(code)
	if code == "" {
		return CostCenter{}, ErrNotFound
	}
	cc, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return CostCenter{}, fmt.Errorf("%w: %s", err, code)
	}
	return cc, nil
}

// GetByID resolves a cost center by primary key.
func (s *Service) GetByID(ctx context.Context, id int64) (CostCenter, error) {
	if id <= 0 {
		return CostCenter{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// List returns all cost centers.
func (s *Service) List(ctx context.Context) ([]CostCenter, error) {
	return s.repo.List(ctx)
}
