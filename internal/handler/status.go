package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"niftyfeed/internal/engine"
	"niftyfeed/internal/repository"
)

type StatusHandler struct {
	Feed Feed
	Repo repository.Repository
}

func (h *StatusHandler) Register(r *gin.Engine) {
	r.GET("/api/status", h.getStatus)
}

type transitionRow struct {
	State      string    `json:"state"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

type statusResponse struct {
	engine.Status
	Transitions []transitionRow `json:"transitions,omitempty"`
}

// @Summary Engine status with recent feed transitions
// @Tags status
// @Success 200 {object} apiResponse
// @Router /api/status [get]
func (h *StatusHandler) getStatus(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	resp := statusResponse{Status: h.Feed.Status()}
	if h.Repo != nil {
		rows, err := h.Repo.RecentTransitions(c.Request.Context(), 20)
		if err == nil {
			resp.Transitions = make([]transitionRow, 0, len(rows))
			for _, row := range rows {
				resp.Transitions = append(resp.Transitions, transitionRow{
					State:      row.State,
					Reason:     row.Reason,
					OccurredAt: row.OccurredAt,
				})
			}
		}
	}
	Ok(c, resp, nil)
}
