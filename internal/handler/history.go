package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"niftyfeed/internal/registry"
	"niftyfeed/internal/repository"
	"niftyfeed/internal/store"
)

type HistoryHandler struct {
	Feed   Feed
	Repo   repository.Repository
	Logger *zap.Logger
}

func (h *HistoryHandler) Register(r *gin.Engine) {
	group := r.Group("/api/history")
	group.GET("/:symbol", h.getHistory)
	group.POST("/refresh", h.refresh)
}

// candleBar is the wire form of one daily bar, identical whether it came
// from the database or the in-memory series.
type candleBar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type historyResponse struct {
	Symbol string      `json:"symbol"`
	Days   int         `json:"days"`
	Source string      `json:"source,omitempty"`
	Bars   []candleBar `json:"bars"`
}

// @Summary Daily candle history
// @Tags history
// @Param symbol path string true "short or full symbol"
// @Param days query int false "lookback window in days (default 30)"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/history/{symbol} [get]
func (h *HistoryHandler) getHistory(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	symbol := strings.TrimSpace(c.Param("symbol"))
	if _, ok := h.Feed.Quote(symbol); !ok {
		Error(c, http.StatusNotFound, "symbol not tracked", nil)
		return
	}
	short := registry.ShortName(strings.ToUpper(symbol))
	days := intQuery(c, "days", 30)
	if days <= 0 {
		days = 30
	}

	resp := historyResponse{Symbol: short, Days: days, Bars: []candleBar{}}
	if h.Repo != nil {
		from := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
		rows, err := h.Repo.CandlesBySymbol(c.Request.Context(), short, from)
		if err != nil && h.Logger != nil {
			h.Logger.Warn("candle query failed", zap.String("symbol", short), zap.Error(err))
		}
		if len(rows) > 0 {
			resp.Source = "db"
			resp.Bars = make([]candleBar, 0, len(rows))
			for _, row := range rows {
				resp.Bars = append(resp.Bars, candleBar{
					Time:   row.BarTime.Unix(),
					Open:   row.Open.InexactFloat64(),
					High:   row.High.InexactFloat64(),
					Low:    row.Low.InexactFloat64(),
					Close:  row.Close.InexactFloat64(),
					Volume: row.Volume,
				})
			}
			Ok(c, resp, nil)
			return
		}
	}

	if series, ok := h.Feed.Series(symbol); ok && series.Len() > 0 {
		resp.Source = "cache"
		resp.Bars = seriesBars(series)
	}
	Ok(c, resp, nil)
}

// @Summary Trigger a history sweep now
// @Tags history
// @Success 200 {object} apiResponse
// @Router /api/history/refresh [post]
func (h *HistoryHandler) refresh(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	if err := h.Feed.RefreshHistory(c.Request.Context()); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("history refresh failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	st := h.Feed.Status()
	Ok(c, gin.H{"cached_series": st.CachedSeries}, nil)
}

func seriesBars(series store.Series) []candleBar {
	bars := make([]candleBar, 0, series.Len())
	for i := 0; i < series.Len(); i++ {
		bar := candleBar{Close: series.Close[i]}
		if i < len(series.Timestamp) {
			bar.Time = series.Timestamp[i]
		}
		if i < len(series.Open) {
			bar.Open = series.Open[i]
		}
		if i < len(series.High) {
			bar.High = series.High[i]
		}
		if i < len(series.Low) {
			bar.Low = series.Low[i]
		}
		if i < len(series.Volume) {
			bar.Volume = series.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars
}
