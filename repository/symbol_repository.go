package repository

import (
	"context"
	"errors"
	"strings"

	"portfolio-tracker/database"
	"portfolio-tracker/models"
	"portfolio-tracker/pkg/logger"

	"gorm.io/gorm"
)

const (
	symbolBatchSize    = 500
	defaultSearchLimit = 10
)

type SymbolRepository interface {
	ReplaceAll(ctx context.Context, symbols []models.Symbol) error
	Search(ctx context.Context, query string, limit int) ([]models.Symbol, error)
	Get(ctx context.Context, symbol string) (*models.Symbol, error)
}

type symbolRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSymbolRepository(db *gorm.DB, log *logger.Logger) SymbolRepository {
	return &symbolRepository{db: db, log: log}
}

// ReplaceAll swaps the whole directory atomically.
func (r *symbolRepository) ReplaceAll(ctx context.Context, symbols []models.Symbol) error {
	err := database.RunInTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Symbol{}).Error; err != nil {
			return err
		}
		if len(symbols) == 0 {
			return nil
		}
		return database.CreateInBatches(tx, symbols, symbolBatchSize)
	})
	if err != nil {
		r.log.Error("Failed to replace symbol directory", logger.ErrorField(err), logger.IntField("count", len(symbols)))
		return ErrStorage
	}
	return nil
}

// Search matches the symbol against the upper-cased query or the company name
// case-insensitively.
func (r *symbolRepository) Search(ctx context.Context, query string, limit int) ([]models.Symbol, error) {
	results := []models.Symbol{}
	query = strings.TrimSpace(query)
	if query == "" {
		return results, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	err := r.db.WithContext(ctx).
		Where("symbol LIKE ? OR LOWER(company_name) LIKE ?",
			"%"+escapeLike(strings.ToUpper(query))+"%",
			"%"+escapeLike(strings.ToLower(query))+"%").
		Order("symbol").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		r.log.Error("Failed to search symbols", logger.ErrorField(err), logger.StringField("query", query))
		return nil, ErrStorage
	}
	return results, nil
}

func (r *symbolRepository) Get(ctx context.Context, symbol string) (*models.Symbol, error) {
	var s models.Symbol
	err := r.db.WithContext(ctx).Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		r.log.Error("Failed to get symbol", logger.ErrorField(err), logger.StringField("symbol", symbol))
		return nil, ErrStorage
	}
	return &s, nil
}

// escapeLike drops LIKE wildcards from user input.
func escapeLike(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}
