package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted message in a session.
type Turn struct {
	ID snowflake.ID `gorm:"primaryKey" json:"id"`

	SessionID string `gorm:"size:64;index:idx_conversation_session_ts,priority:1" json:"session_id"`
	Role      Role   `gorm:"size:16" json:"role"`
	Content   string `gorm:"type:text" json:"content"`

	CreatedAt time.Time `gorm:"index:idx_conversation_session_ts,priority:2" json:"created_at"`
}

func (Turn) TableName() string { return "conversation_turns" }

type Repository interface {
	Append(ctx context.Context, db *gorm.DB, turn *Turn) error
	// Recent returns the last n turns of the session in chronological order.
	Recent(ctx context.Context, db *gorm.DB, sessionID string, n int) ([]Turn, error)
	CountByRole(ctx context.Context, db *gorm.DB, sessionID string, role Role) (int64, error)
	Clear(ctx context.Context, db *gorm.DB, sessionID string) error
}

type Service interface {
	Append(ctx context.Context, sessionID string, role Role, content string) (*Turn, error)
	Recent(ctx context.Context, sessionID string, n int) ([]Turn, error)
	// UserTurnCount returns how many user turns the session has recorded.
	UserTurnCount(ctx context.Context, sessionID string) (int64, error)
	Clear(ctx context.Context, sessionID string) error
}
