package repository

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"portfolio-tracker/database"
	"portfolio-tracker/models"
	"portfolio-tracker/pkg/logger"

	"gorm.io/gorm"
)

// quantityEpsilon absorbs float noise when deciding whether a lot is fully sold.
const quantityEpsilon = 1e-9

// NewLot describes a purchase.
type NewLot struct {
	Symbol      string
	CompanyName string
	Quantity    float64
	BuyPrice    float64
	BuyDate     time.Time
}

// SellOrder describes a sale against one lot. LotID selects the lot; when it
// is zero the oldest lot of Symbol is used.
type SellOrder struct {
	LotID    uint
	Symbol   string
	Quantity float64
	Price    float64
	Date     time.Time
}

// SaleResult is the outcome of SellLot.
type SaleResult struct {
	Sale      models.Sale `json:"sale"`
	Remaining float64     `json:"remaining_quantity"`
	Closed    bool        `json:"closed"`
}

type PositionRepository interface {
	AddLot(ctx context.Context, userID uint, lot NewLot) (*models.Position, error)
	ListOpenPositions(ctx context.Context, userID uint) ([]models.Position, error)
	SellLot(ctx context.Context, userID uint, order SellOrder) (*SaleResult, error)
	ListSales(ctx context.Context, userID uint) ([]models.Sale, error)
}

type positionRepository struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewPositionRepository(db *gorm.DB, log *logger.Logger) PositionRepository {
	return &positionRepository{db: db, log: log, now: time.Now}
}

func (r *positionRepository) AddLot(ctx context.Context, userID uint, lot NewLot) (*models.Position, error) {
	symbol := strings.ToUpper(strings.TrimSpace(lot.Symbol))
	switch {
	case userID == 0:
		return nil, invalid("user is required")
	case symbol == "":
		return nil, invalid("symbol is required")
	case !(lot.Quantity > 0) || math.IsInf(lot.Quantity, 0):
		return nil, invalid("quantity must be positive")
	case !(lot.BuyPrice >= 0) || math.IsInf(lot.BuyPrice, 0):
		return nil, invalid("buy price must not be negative")
	}

	position := models.Position{
		UserID:      userID,
		Symbol:      symbol,
		CompanyName: strings.TrimSpace(lot.CompanyName),
		Quantity:    lot.Quantity,
		BuyPrice:    lot.BuyPrice,
		BuyDate:     r.day(lot.BuyDate),
	}
	if err := r.db.WithContext(ctx).Create(&position).Error; err != nil {
		r.log.Error("Failed to create portfolio entry", logger.ErrorField(err), logger.UintField("user_id", userID))
		return nil, ErrStorage
	}
	return &position, nil
}

// ListOpenPositions returns the user's lots, oldest first. No lots is an empty
// slice and a nil error.
func (r *positionRepository) ListOpenPositions(ctx context.Context, userID uint) ([]models.Position, error) {
	positions := []models.Position{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("buy_date, id").
		Find(&positions).Error
	if err != nil {
		r.log.Error("Failed to fetch portfolio", logger.ErrorField(err), logger.UintField("user_id", userID))
		return nil, ErrStorage
	}
	return positions, nil
}

// SellLot records a sale and shrinks or removes the lot in one transaction.
func (r *positionRepository) SellLot(ctx context.Context, userID uint, order SellOrder) (*SaleResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(order.Symbol))
	switch {
	case userID == 0:
		return nil, invalid("user is required")
	case order.LotID == 0 && symbol == "":
		return nil, invalid("lot id or symbol is required")
	case !(order.Quantity > 0) || math.IsInf(order.Quantity, 0):
		return nil, invalid("quantity must be positive")
	case !(order.Price >= 0) || math.IsInf(order.Price, 0):
		return nil, invalid("sell price must not be negative")
	}

	var result SaleResult
	err := database.RunInTx(ctx, r.db, func(tx *gorm.DB) error {
		query := tx.Where("user_id = ?", userID)
		if order.LotID != 0 {
			query = query.Where("id = ?", order.LotID)
		}
		if symbol != "" {
			query = query.Where("symbol = ?", symbol)
		}

		var lot models.Position
		if err := query.Order("buy_date, id").First(&lot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if order.Quantity > lot.Quantity+quantityEpsilon {
			return ErrOverSell
		}

		remaining := lot.Quantity - order.Quantity
		sale := models.Sale{
			UserID:      userID,
			Symbol:      lot.Symbol,
			CompanyName: lot.CompanyName,
			Quantity:    order.Quantity,
			BuyPrice:    lot.BuyPrice,
			SellPrice:   order.Price,
			SellDate:    r.day(order.Date),
			PnL:         (order.Price - lot.BuyPrice) * order.Quantity,
		}
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}

		if remaining <= quantityEpsilon {
			if err := tx.Delete(&models.Position{}, lot.ID).Error; err != nil {
				return err
			}
			remaining = 0
		} else if err := tx.Model(&models.Position{}).Where("id = ?", lot.ID).Update("quantity", remaining).Error; err != nil {
			return err
		}

		result = SaleResult{Sale: sale, Remaining: remaining, Closed: remaining == 0}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		r.log.Error("Failed to sell lot", logger.ErrorField(err),
			logger.UintField("user_id", userID), logger.StringField("symbol", symbol), logger.UintField("lot_id", order.LotID))
		return nil, ErrStorage
	}

	r.log.Info("Lot sold",
		logger.UintField("user_id", userID),
		logger.StringField("symbol", result.Sale.Symbol),
		logger.FloatField("quantity", order.Quantity),
		logger.FloatField("pnl", result.Sale.PnL))
	return &result, nil
}

// ListSales returns the realized sales, newest first.
func (r *positionRepository) ListSales(ctx context.Context, userID uint) ([]models.Sale, error) {
	sales := []models.Sale{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sell_date DESC, id DESC").
		Find(&sales).Error
	if err != nil {
		r.log.Error("Failed to fetch sales", logger.ErrorField(err), logger.UintField("user_id", userID))
		return nil, ErrStorage
	}
	return sales, nil
}

// day truncates t to a calendar date, defaulting to today.
func (r *positionRepository) day(t time.Time) time.Time {
	if t.IsZero() {
		t = r.now()
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
