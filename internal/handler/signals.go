package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"niftyfeed/internal/repository"
	"niftyfeed/internal/strategy"
)

type SignalHandler struct {
	Feed Feed
	Repo repository.Repository
}

func (h *SignalHandler) Register(r *gin.Engine) {
	group := r.Group("/api/signals")
	group.GET("", h.listLive)
	group.GET("/history", h.listPersisted)
}

type symbolSignal struct {
	Symbol string `json:"symbol"`
	strategy.Evaluation
}

type signalRow struct {
	Symbol     string          `json:"symbol"`
	Signal     string          `json:"signal"`
	Bars       int             `json:"bars"`
	Indicators json.RawMessage `json:"indicators,omitempty"`
	ComputedAt time.Time       `json:"computed_at"`
}

// @Summary Live strategy evaluation per instrument
// @Tags signals
// @Success 200 {object} apiResponse
// @Router /api/signals [get]
func (h *SignalHandler) listLive(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	instruments := h.Feed.Registry().Ordered()
	items := make([]symbolSignal, 0, len(instruments))
	for _, ins := range instruments {
		ev, ok := h.Feed.Evaluate(ins.Short)
		if !ok {
			continue
		}
		items = append(items, symbolSignal{Symbol: ins.Short, Evaluation: ev})
	}
	Ok(c, items, map[string]any{"evaluated": len(items), "instruments": len(instruments)})
}

// @Summary Latest persisted signal per instrument
// @Tags signals
// @Success 200 {object} apiResponse
// @Router /api/signals/history [get]
func (h *SignalHandler) listPersisted(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "persistence disabled", nil)
		return
	}
	rows, err := h.Repo.LatestSignals(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	items := make([]signalRow, 0, len(rows))
	for _, row := range rows {
		items = append(items, signalRow{
			Symbol:     row.Symbol,
			Signal:     row.Signal,
			Bars:       row.Bars,
			Indicators: json.RawMessage(row.Indicators),
			ComputedAt: row.ComputedAt,
		})
	}
	Ok(c, items, nil)
}
