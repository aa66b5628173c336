package database

import (
	"fmt"
)

var _ PingRepository = (*SQLPingRepository)(nil)

// SQLPingRepository handles database operations for ping history
type SQLPingRepository struct {
	db *DB
}

// NewPingRepository creates a new ping repository
func NewPingRepository(db *DB) *SQLPingRepository {
	return &SQLPingRepository{db: db}
}

// RecordPing inserts one dispatched ping event
func (r *SQLPingRepository) RecordPing(groupName, author string, memberCount int, commentID string) error {
	_, err := r.db.Exec(`
		INSERT INTO pings (group_name, author, member_count, comment_id)
		VALUES (?, ?, ?, ?)
	`, groupName, author, memberCount, commentID)

	if err != nil {
		return fmt.Errorf("failed to record ping: %w", err)
	}

	return nil
}

// GetRecentPings returns up to limit pings, newest first
func (r *SQLPingRepository) GetRecentPings(limit int) ([]Ping, error) {
	rows, err := r.db.Query(`
		SELECT id, group_name, author, member_count, comment_id, pinged_at
		FROM pings
		ORDER BY pinged_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pings: %w", err)
	}
	defer rows.Close()

	var pings []Ping
	for rows.Next() {
		var ping Ping
		if err := rows.Scan(&ping.ID, &ping.GroupName, &ping.Author, &ping.MemberCount, &ping.CommentID, &ping.PingedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ping: %w", err)
		}
		pings = append(pings, ping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pings: %w", err)
	}

	return pings, nil
}

// GetPingCount returns the total number of recorded pings
func (r *SQLPingRepository) GetPingCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM pings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pings: %w", err)
	}

	return count, nil
}

// GetGroupCounts returns the number of recorded pings per group
func (r *SQLPingRepository) GetGroupCounts() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT group_name, COUNT(*)
		FROM pings
		GROUP BY group_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query group counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var group string
		var count int
		if err := rows.Scan(&group, &count); err != nil {
			return nil, fmt.Errorf("failed to scan group count: %w", err)
		}
		counts[group] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group counts: %w", err)
	}

	return counts, nil
}
