package handlers

import (
	"context"
	"net/http"

	"portfolio-tracker/middleware"
	"portfolio-tracker/models"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/repository"
	"portfolio-tracker/valuation"

	"github.com/gin-gonic/gin"
)

// Quoter is the market data the handlers need.
type Quoter interface {
	valuation.PriceSource
	Quote(ctx context.Context, symbol string) (float64, error)
}

type StockInput struct {
	Symbol      string  `json:"symbol" binding:"required"`
	CompanyName string  `json:"company_name"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	// PurchasePrice defaults to the current market price when omitted.
	PurchasePrice *float64 `json:"purchase_price" binding:"omitempty,gte=0"`
	Date          string   `json:"date"`
}

type SellInput struct {
	LotID    uint    `json:"lot_id"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	// SellPrice defaults to the current market price when omitted.
	SellPrice *float64 `json:"sell_price" binding:"omitempty,gte=0"`
	Date      string   `json:"date"`
}

// PortfolioHandler serves the ledger and its valuation for the caller.
type PortfolioHandler struct {
	positions repository.PositionRepository
	symbols   repository.SymbolRepository
	quotes    Quoter
	log       *logger.Logger
}

func NewPortfolioHandler(positions repository.PositionRepository, symbols repository.SymbolRepository, quotes Quoter, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{positions: positions, symbols: symbols, quotes: quotes, log: log}
}

func (h *PortfolioHandler) AddStock(c *gin.Context) {
	userID := middleware.UserID(c)
	var input StockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := parseDate(input.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	ctx := c.Request.Context()
	price, ok := h.priceOrQuote(ctx, input.PurchasePrice, input.Symbol)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "purchase_price is required when no market price is available"})
		return
	}

	companyName := input.CompanyName
	if companyName == "" {
		if s, err := h.symbols.Get(ctx, input.Symbol); err == nil {
			companyName = s.CompanyName
		}
	}

	position, err := h.positions.AddLot(ctx, userID, repository.NewLot{
		Symbol:      input.Symbol,
		CompanyName: companyName,
		Quantity:    input.Quantity,
		BuyPrice:    price,
		BuyDate:     date,
	})
	if err != nil {
		respondError(c, err, "Failed to add investment", nil)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Investment added", "position": position})
}

func (h *PortfolioHandler) SellStock(c *gin.Context) {
	userID := middleware.UserID(c)
	var input SellInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.LotID == 0 && input.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lot_id or symbol is required"})
		return
	}

	date, err := parseDate(input.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	ctx := c.Request.Context()
	price, ok := h.priceOrQuote(ctx, input.SellPrice, input.Symbol)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sell_price is required when no market price is available"})
		return
	}

	result, err := h.positions.SellLot(ctx, userID, repository.SellOrder{
		LotID:    input.LotID,
		Symbol:   input.Symbol,
		Quantity: input.Quantity,
		Price:    price,
		Date:     date,
	})
	if err != nil {
		respondError(c, err, "Sell failed", nil)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPortfolio values the caller's open lots. A failed read still returns
// the empty portfolio shape next to the error.
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	userID := middleware.UserID(c)
	ctx := c.Request.Context()

	positions, err := h.positions.ListOpenPositions(ctx, userID)
	if err != nil {
		empty := valuation.Value(ctx, nil, h.quotes)
		respondError(c, err, "Failed to fetch portfolio", gin.H{"positions": empty.Positions, "summary": empty.Summary})
		return
	}

	c.JSON(http.StatusOK, valuation.Value(ctx, positions, h.quotes))
}

func (h *PortfolioHandler) ListSales(c *gin.Context) {
	userID := middleware.UserID(c)

	sales, err := h.positions.ListSales(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to fetch sales", gin.H{"sales": []models.Sale{}, "total_realized": 0})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sales": sales, "total_realized": valuation.Realized(sales)})
}

// priceOrQuote returns the explicit price, or the market price for symbol.
func (h *PortfolioHandler) priceOrQuote(ctx context.Context, explicit *float64, symbol string) (float64, bool) {
	if explicit != nil {
		return *explicit, true
	}
	if symbol == "" {
		return 0, false
	}
	return h.quotes.CurrentPrice(ctx, symbol)
}
