package api

import (
	"time"

	"userpinger/app/database"
	"userpinger/app/pinger"
)

// StatsProvider exposes the stream loop's counters.
type StatsProvider interface {
	GetStats() pinger.Stats
}

var _ StatsProvider = (*pinger.Loop)(nil)

// CacheInfo exposes the dedup cache size.
type CacheInfo interface {
	Len() int
}

type Handler struct {
	pingRepo  database.PingRepository
	stats     StatsProvider
	cache     CacheInfo
	subreddit string
	version   string
	startedAt time.Time
}
