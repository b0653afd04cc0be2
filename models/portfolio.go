package models

import (
	"time"
)

// Position is one open lot. A user may hold several lots of the same symbol.
type Position struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Symbol      string    `gorm:"index;size:20;not null" json:"symbol"`
	CompanyName string    `gorm:"not null;default:''" json:"company_name"`
	Quantity    float64   `gorm:"not null" json:"quantity"`
	BuyPrice    float64   `gorm:"not null" json:"buy_price"`
	BuyDate     time.Time `gorm:"type:date;not null" json:"buy_date"`
}

func (Position) TableName() string {
	return "portfolios"
}

// Invested is quantity times the original buy price.
func (p Position) Invested() float64 {
	return p.BuyPrice * p.Quantity
}

// Sale is an append-only record of a realized sale.
type Sale struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Symbol      string    `gorm:"not null" json:"symbol"`
	CompanyName string    `gorm:"not null;default:''" json:"company_name"`
	Quantity    float64   `gorm:"not null" json:"quantity"`
	BuyPrice    float64   `gorm:"not null" json:"buy_price"`
	SellPrice   float64   `gorm:"not null" json:"sell_price"`
	SellDate    time.Time `gorm:"type:date;not null" json:"sell_date"`
	PnL         float64   `gorm:"column:pnl;not null" json:"pnl"`
}

func (Sale) TableName() string {
	return "sales"
}
