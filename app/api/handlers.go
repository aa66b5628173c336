package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"userpinger/app/database"
	"userpinger/app/dedup"
)

func NewHandler(pingRepo database.PingRepository, stats StatsProvider, cache CacheInfo, subreddit, version string) *Handler {
	return &Handler{
		pingRepo:  pingRepo,
		stats:     stats,
		cache:     cache,
		subreddit: subreddit,
		version:   version,
		startedAt: time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"subreddit":      h.subreddit,
		"version":        h.version,
		"uptime":         time.Since(h.startedAt).Round(time.Second).String(),
		"cache_size":     h.cache.Len(),
		"cache_capacity": dedup.Capacity,
		"timestamp":      time.Now().In(time.Local).Format(time.RFC3339),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := h.stats.GetStats()

	response := gin.H{
		"comments_observed": stats.Observed,
		"pings_triggered":   stats.Triggered,
		"pings_dispatched":  stats.Pinged,
		"pings_rejected":    stats.Rejected,
		"backoffs":          stats.Backoffs,
		"cache_size":        h.cache.Len(),
	}

	if total, err := h.pingRepo.GetPingCount(); err == nil {
		response["pings_recorded"] = total
	} else {
		slog.Error("Database error", "operation", "get_ping_count", "error", err)
	}

	if counts, err := h.pingRepo.GetGroupCounts(); err == nil {
		response["pings_by_group"] = counts
	} else {
		slog.Error("Database error", "operation", "get_group_counts", "error", err)
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) ListPings(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	pings, err := h.pingRepo.GetRecentPings(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_pings", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	items := make([]gin.H, 0, len(pings))
	for _, ping := range pings {
		items = append(items, gin.H{
			"group":        ping.GroupName,
			"author":       ping.Author,
			"member_count": ping.MemberCount,
			"comment_id":   ping.CommentID,
			"pinged_at":    ping.PingedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"pings": items, "count": len(items)})
}
