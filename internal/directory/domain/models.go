package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Employee is one directory entry.
type Employee struct {
	ID snowflake.ID `gorm:"primaryKey" json:"id"`

	// EmployeeID is the bank-assigned staff identifier.
	EmployeeID  string `gorm:"size:32;uniqueIndex" json:"employee_id"`
	Name        string `gorm:"size:255;index" json:"name"`
	Designation string `gorm:"size:255" json:"designation"`
	Department  string `gorm:"size:255" json:"department"`
	Branch      string `gorm:"size:255" json:"branch"`
	Email       string `gorm:"size:255;index" json:"email"`
	Mobile      string `gorm:"size:32;index" json:"mobile"`
	Extension   string `gorm:"size:16" json:"extension,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Employee) TableName() string { return "employees" }

// MatchKind records which lookup stage produced the hit.
type MatchKind string

const (
	MatchEmployeeID MatchKind = "employee_id"
	MatchEmail      MatchKind = "email"
	MatchMobile     MatchKind = "mobile"
	MatchExactName  MatchKind = "name"
	MatchRanked     MatchKind = "ranked"
)

// Hit is one search result with its provenance.
type Hit struct {
	Employee Employee  `json:"employee"`
	Match    MatchKind `json:"match"`
}

type Repository interface {
	FindByEmployeeID(ctx context.Context, db *gorm.DB, id string) (*Employee, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Employee, error)
	FindByMobile(ctx context.Context, db *gorm.DB, mobile string) (*Employee, error)
	FindByExactName(ctx context.Context, db *gorm.DB, name string) ([]Employee, error)
	// SearchRanked matches name, department and designation by substring,
	// name matches first.
	SearchRanked(ctx context.Context, db *gorm.DB, term string, limit int) ([]Employee, error)
}

type Service interface {
	// Search derives a term from the raw query and runs the staged lookup.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

var ErrDirectoryUnavailable = errors.New("directory_unavailable")
