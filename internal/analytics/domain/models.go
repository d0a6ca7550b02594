package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TurnRecord is the analytics row for one user turn. The (session_id,
// turn_seq) pair is unique so recording is idempotent.
type TurnRecord struct {
	ID snowflake.ID `gorm:"primaryKey" json:"id"`

	SessionID string `gorm:"size:64;uniqueIndex:idx_analytics_session_seq,priority:1" json:"session_id"`
	TurnSeq   int    `gorm:"uniqueIndex:idx_analytics_session_seq,priority:2" json:"turn_seq"`

	Query           string `gorm:"type:text" json:"query"`
	NormalizedQuery string `gorm:"type:text;index" json:"normalized_query"`
	Response        string `gorm:"type:text" json:"response"`

	Route         string `gorm:"size:32" json:"route"`
	BackingSource string `gorm:"size:32" json:"backing_source"`
	WasAnswered   bool   `json:"was_answered"`
	LatencyMillis int64  `json:"latency_ms"`
	ClientIP      string `gorm:"size:64" json:"client_ip,omitempty"`

	// Day is the partition key, derived from CreatedAt in UTC.
	Day string `gorm:"size:10;index" json:"day"`

	CreatedAt time.Time `json:"created_at"`
}

func (TurnRecord) TableName() string { return "analytics_turns" }

// DailyMetric is one day's aggregate.
type DailyMetric struct {
	Day          string  `json:"day"`
	Turns        int64   `json:"turns"`
	Answered     int64   `json:"answered"`
	Unanswered   int64   `json:"unanswered"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	UniqueUsers  int64   `json:"unique_sessions"`
}

// QueryCount counts occurrences of a normalized query.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Repository interface {
	// Record inserts the row; a replay of the same (session_id, turn_seq)
	// is a no-op.
	Record(ctx context.Context, db *gorm.DB, rec *TurnRecord) error
	DailyMetrics(ctx context.Context, db *gorm.DB, since time.Time) ([]DailyMetric, error)
	MostAsked(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]QueryCount, error)
	Unanswered(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]QueryCount, error)
	BySession(ctx context.Context, db *gorm.DB, sessionID string) ([]TurnRecord, error)
}

type Service interface {
	Record(ctx context.Context, rec TurnRecord) error
	DailyMetrics(ctx context.Context, days int) ([]DailyMetric, error)
	MostAsked(ctx context.Context, days, limit int) ([]QueryCount, error)
	Unanswered(ctx context.Context, days, limit int) ([]QueryCount, error)
	BySession(ctx context.Context, sessionID string) ([]TurnRecord, error)
}
