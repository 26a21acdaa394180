package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDocs serves a quick-reference page for people hitting the API
// without the swagger UI.
func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# NIFTY Feed Service

Market data ingestion and reconciliation for the NIFTY 50. Quotes arrive
over a provider WebSocket and an unconditional REST poll; the engine
reconciles them into one table and republishes on every change.

## Routes

- GET /healthz
- GET /readyz
- GET /api/market-data
- GET /api/market-data/:symbol     (TCS-EQ or NSE:TCS-EQ)
- GET /api/history/:symbol?days=30
- POST /api/history/refresh
- GET /api/signals
- GET /api/signals/history
- GET /api/status
- GET /api/stream                  (SSE, "snapshot" events)
- GET /swagger/index.html

## Auth

When the server is configured with an auth token, /api, /swagger and
/docs require "Authorization: Bearer <token>". Health endpoints are
always public.

## Streaming

/api/stream is server-sent events. Each event carries the full ordered
quote table; clients are throttled to at most one event per 100ms and
slow consumers skip to the latest snapshot.
`)
	})
}
