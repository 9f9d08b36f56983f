package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"polyscout/internal/repository"
	"polyscout/internal/session"
	"polyscout/internal/settings"
)

// StatusHandler exposes the same view the chat commands give, for
// dashboards and curl.
type StatusHandler struct {
	Registry *session.Registry
	Settings *settings.Store
	Repo     repository.Repository
}

func (h *StatusHandler) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/status/:chat_id", h.status)
	api.GET("/orders/:chat_id", h.orders)
}

func (h *StatusHandler) status(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid chat_id", nil)
		return
	}
	cfg, err := h.Settings.Get(c.Request.Context(), chatID)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	data := gin.H{
		"settings": gin.H{
			"price_threshold": cfg.PriceThreshold,
			"order_size":      cfg.OrderSize,
			"sell_target":     cfg.SellTarget,
			"auto_place":      cfg.AutoPlace,
			"interval":        cfg.Interval.String(),
		},
		"monitor_running": h.Registry.MonitorRunning(chatID),
	}
	if st, ok := h.Registry.ScanState(chatID); ok {
		hits := make([]gin.H, 0, len(st.LastHits))
		for _, hit := range st.LastHits {
			hits = append(hits, gin.H{
				"question": hit.Question,
				"slug":     hit.Slug,
				"no_price": hit.NoPrice,
			})
		}
		data["scan"] = gin.H{
			"query":         st.Query,
			"started_at":    st.StartedAt,
			"last_run":      st.LastRun,
			"iterations":    st.Iterations,
			"last_scanned":  st.LastScanned,
			"last_found":    st.LastFound,
			"last_hits":     hits,
			"last_source":   st.LastSource,
			"last_error":    st.LastError,
			"orders_placed": st.OrdersPlaced,
		}
	}
	Ok(c, data, nil)
}

func (h *StatusHandler) orders(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid chat_id", nil)
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	recs, err := h.Repo.ListOrderRecords(c.Request.Context(), chatID, limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, recs, map[string]any{"count": len(recs)})
}
