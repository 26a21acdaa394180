package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type MarketHandler struct {
	Feed Feed
}

func (h *MarketHandler) Register(r *gin.Engine) {
	group := r.Group("/api/market-data")
	group.GET("", h.listQuotes)
	group.GET("/:symbol", h.getQuote)
}

// @Summary Full quote table in publication order
// @Tags market
// @Success 200 {object} apiResponse
// @Router /api/market-data [get]
func (h *MarketHandler) listQuotes(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	quotes := h.Feed.GetMarketData()
	Ok(c, quotes, map[string]any{"instruments": len(quotes)})
}

// @Summary One instrument's quote
// @Tags market
// @Param symbol path string true "short or full symbol, e.g. TCS-EQ or NSE:TCS-EQ"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/market-data/{symbol} [get]
func (h *MarketHandler) getQuote(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	symbol := strings.TrimSpace(c.Param("symbol"))
	quote, ok := h.Feed.Quote(symbol)
	if !ok {
		Error(c, http.StatusNotFound, "symbol not tracked", nil)
		return
	}
	Ok(c, quote, nil)
}
