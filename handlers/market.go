package handlers

import (
	"errors"
	"net/http"
	"strings"

	"portfolio-tracker/market"
	"portfolio-tracker/models"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/repository"

	"github.com/gin-gonic/gin"
)

// MarketHandler serves quotes and symbol lookups.
type MarketHandler struct {
	quotes      Quoter
	symbols     repository.SymbolRepository
	searchLimit int
	log         *logger.Logger
}

func NewMarketHandler(quotes Quoter, symbols repository.SymbolRepository, searchLimit int, log *logger.Logger) *MarketHandler {
	return &MarketHandler{quotes: quotes, symbols: symbols, searchLimit: searchLimit, log: log}
}

func (h *MarketHandler) GetStockPrice(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	price, err := h.quotes.Quote(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, market.ErrPriceUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
			return
		}
		h.log.Error("Failed to fetch stock data", logger.ErrorField(err), logger.StringField("symbol", symbol))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to fetch stock data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

func (h *MarketHandler) SearchSymbols(c *gin.Context) {
	results, err := h.symbols.Search(c.Request.Context(), c.Query("q"), h.searchLimit)
	if err != nil {
		respondError(c, err, "Failed to search symbols", gin.H{"results": []models.Symbol{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
