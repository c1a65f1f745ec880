package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cigarpricescout/pipeline/internal/domain"
	"github.com/cigarpricescout/pipeline/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	offers *usecase.OfferService
	ledger domain.LedgerRepository
}

// NewHandler creates a new HTTP handler
func NewHandler(offers *usecase.OfferService, ledger domain.LedgerRepository) *Handler {
	return &Handler{offers: offers, ledger: ledger}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cigarpricescout-pipeline",
		"version": "1.0.0",
	})
}

// GetOffers returns all current in-stock offers for a cigar, cheapest
// first, with active promotions resolved.
func (h *Handler) GetOffers(c *gin.Context) {
	cigarID := c.Param("cigarID")
	if cigarID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cigar id is required"})
		return
	}

	offers, err := h.offers.Offers(c.Request.Context(), cigarID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no current offers for this cigar"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read offers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cigarId":  cigarID,
		"offers":   offers,
		"cheapest": offers[0],
	})
}

// GetHistory returns the ledger history for one retailer and cigar.
func (h *Handler) GetHistory(c *gin.Context) {
	retailer := c.Param("retailer")
	cigarID := c.Param("cigarID")

	history, err := h.ledger.History(retailer, cigarID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	if len(history) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no observations for this retailer and cigar"})
		return
	}

	events, err := h.ledger.DeriveChanges(retailer, cigarID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to derive changes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"retailer":     retailer,
		"cigarId":      cigarID,
		"observations": history,
		"changes":      events,
	})
}

// GetDailySummary aggregates one day of ledger activity. The date comes
// from the "date" query parameter as YYYY-MM-DD.
func (h *Handler) GetDailySummary(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required (YYYY-MM-DD)"})
		return
	}

	summary, err := h.ledger.DailySummary(date)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetRetailerPerformance summarizes one retailer's ledger history.
func (h *Handler) GetRetailerPerformance(c *gin.Context) {
	retailer := c.Param("retailer")

	perf, err := h.ledger.RetailerPerformance(retailer)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no observations for this retailer"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build retailer summary"})
		return
	}

	c.JSON(http.StatusOK, perf)
}

// GetStockOuts lists products whose latest observation is out of stock.
func (h *Handler) GetStockOuts(c *gin.Context) {
	stockOuts, err := h.ledger.StockOuts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stock-outs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(stockOuts),
		"stockOuts": stockOuts,
	})
}
