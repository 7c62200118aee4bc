package configstore

import (
	"context"
	"fmt"

	"storefront-query-engine/internal/domain"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// PostgresStore reads FilterConfiguration candidates from the admin
// dashboard's Postgres database via GORM, matching the repository shape of
// identity-service/internal/repository/postgres/shop_repository.go.
type PostgresStore struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewPostgresStore builds a PostgresStore over db.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db, validate: validator.New()}
}

// CandidatesForTenant returns every stored configuration row for shop,
// decoded into domain.FilterConfiguration. A row that fails validation is
// skipped rather than surfaced — a malformed document degrades to
// NullConfig at the resolver, per spec §7 ConfigMissing handling.
func (s *PostgresStore) CandidatesForTenant(ctx context.Context, shop string) ([]*domain.FilterConfiguration, error) {
	var rows []Row
	if err := s.db.WithContext(ctx).Where("shop = ?", shop).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load filter configurations for %s: %w", shop, err)
	}

	candidates := make([]*domain.FilterConfiguration, 0, len(rows))
	for _, row := range rows {
		cfg := row.ToDomain()
		if err := s.validate.Struct(cfg); err != nil {
			continue
		}
		candidates = append(candidates, cfg)
	}
	return candidates, nil
}
