package database

// PingRepository records and reads ping history. History is observability
// only; callers must not let a history failure abort a dispatch.
type PingRepository interface {
	RecordPing(groupName, author string, memberCount int, commentID string) error
	GetRecentPings(limit int) ([]Ping, error)
	GetPingCount() (int, error)
	GetGroupCounts() (map[string]int, error)
}
