package models

import (
	"time"

	"gorm.io/datatypes"
)

// SpanCache holds the resolved spans of one document content under one
// language, keyed by a content hash.
type SpanCache struct {
	ID       uint   `gorm:"primaryKey"`
	Digest   string `gorm:"type:varchar(16);uniqueIndex;not null"` // xxh3 of language + content, hex
	Language string `gorm:"type:varchar(50);index;not null"`
	URI      string `gorm:"type:varchar(1024)"`

	// Content
	ContentSize int            `gorm:"default:0"`
	SpanCount   int            `gorm:"default:0"`
	Spans       datatypes.JSON `gorm:"type:jsonb"`
	Injections  datatypes.JSON `gorm:"type:jsonb"`
	Layers      datatypes.JSON `gorm:"type:jsonb"`

	// Lifetime
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	ExpiresAt *time.Time `gorm:"index"` // nil never expires
	HitCount  int        `gorm:"default:0"`
}

// CheckRun records one compilation pass over bundled query sets
type CheckRun struct {
	ID         string    `gorm:"primaryKey;type:varchar(24)"`
	StartedAt  time.Time `gorm:"autoCreateTime"`
	FinishedAt *time.Time

	// Scope
	Languages datatypes.JSON `gorm:"type:jsonb"`
	Patterns  int            `gorm:"default:0"`

	// Outcome
	ErrorCount   int  `gorm:"default:0"`
	WarningCount int  `gorm:"default:0"`
	Failed       bool `gorm:"default:false;index"`

	// Relationships
	Diagnostics []Diagnostic `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// Diagnostic is one problem reported while compiling a query set
type Diagnostic struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"type:varchar(24);index;not null"`

	// Location
	Language string `gorm:"type:varchar(50);index"`
	Concern  string `gorm:"type:varchar(20)"`
	Pattern  int
	Offset   int

	// Detail
	Kind     string `gorm:"type:varchar(40);not null"`
	Severity string `gorm:"type:varchar(10);not null"`
	Message  string `gorm:"type:text"`
}

// TableName customizations for cleaner names
func (SpanCache) TableName() string  { return "span_cache" }
func (CheckRun) TableName() string   { return "check_runs" }
func (Diagnostic) TableName() string { return "diagnostics" }
