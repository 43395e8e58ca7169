package db

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oxhq/scopeq/core"
	"github.com/oxhq/scopeq/highlight"
	"github.com/oxhq/scopeq/models"
	"github.com/oxhq/scopeq/query"
)

var _ core.ResultStore = (*Store)(nil)

// Store persists highlight results and check runs.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore wraps an open connection. Cached spans expire after ttl; zero
// keeps them until pruned by hand.
func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// Open connects to dsn and returns a store over it.
func Open(dsn string, ttl time.Duration, debug bool) (*Store, error) {
	conn, err := Connect(dsn, debug)
	if err != nil {
		return nil, err
	}
	return NewStore(conn, ttl), nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection.
func (s *Store) Close() error { return Close(s.db) }

// Digest is the span cache key of a document.
func Digest(language string, source []byte) string {
	return fmt.Sprintf("%016x", core.CacheKey(language, source))
}

// LoadResult returns the stored result for source, if present and fresh.
// Locals are not persisted.
func (s *Store) LoadResult(ctx context.Context, language string, source []byte) (*highlight.Result, bool, error) {
	var row models.SpanCache
	err := s.db.WithContext(ctx).
		Where(&models.SpanCache{Digest: Digest(language, source)}).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load spans: %w", err)
	}
	if row.ExpiresAt != nil && s.now().After(*row.ExpiresAt) {
		return nil, false, nil
	}

	res := &highlight.Result{Language: row.Language}
	if err := decode(row.Spans, &res.Spans); err != nil {
		return nil, false, fmt.Errorf("decode spans: %w", err)
	}
	if err := decode(row.Injections, &res.Injections); err != nil {
		return nil, false, fmt.Errorf("decode injections: %w", err)
	}
	if err := decode(row.Layers, &res.Layers); err != nil {
		return nil, false, fmt.Errorf("decode layers: %w", err)
	}

	s.db.WithContext(ctx).Model(&row).UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1))
	return res, true, nil
}

// SaveResult stores or replaces the result for source.
func (s *Store) SaveResult(ctx context.Context, uri, language string, source []byte, result *highlight.Result) error {
	if result == nil {
		return nil
	}
	spans, err := json.Marshal(result.Spans)
	if err != nil {
		return fmt.Errorf("encode spans: %w", err)
	}
	injections, err := json.Marshal(result.Injections)
	if err != nil {
		return fmt.Errorf("encode injections: %w", err)
	}
	layers, err := json.Marshal(result.Layers)
	if err != nil {
		return fmt.Errorf("encode layers: %w", err)
	}

	row := models.SpanCache{
		Digest:      Digest(language, source),
		Language:    language,
		URI:         uri,
		ContentSize: len(source),
		SpanCount:   len(result.Spans),
		Spans:       datatypes.JSON(spans),
		Injections:  datatypes.JSON(injections),
		Layers:      datatypes.JSON(layers),
	}
	if s.ttl > 0 {
		expires := s.now().UTC().Add(s.ttl)
		row.ExpiresAt = &expires
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "digest"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"uri", "content_size", "span_count", "spans", "injections", "layers", "expires_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save spans: %w", err)
	}
	return nil
}

// PruneSpans deletes expired cache rows and returns how many were removed.
func (s *Store) PruneSpans(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", s.now().UTC()).
		Delete(&models.SpanCache{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune spans: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecordCheck stores one check run with its diagnostics.
func (s *Store) RecordCheck(ctx context.Context, languages []string, patterns int, diags query.Diagnostics) (*models.CheckRun, error) {
	langs, err := json.Marshal(languages)
	if err != nil {
		return nil, fmt.Errorf("encode languages: %w", err)
	}

	now := s.now().UTC()
	run := &models.CheckRun{
		ID:           generateID("run"),
		StartedAt:    now,
		FinishedAt:   &now,
		Languages:    datatypes.JSON(langs),
		Patterns:     patterns,
		ErrorCount:   len(diags.Errors()),
		WarningCount: len(diags.Warnings()),
		Failed:       diags.HasFatal(),
	}
	for _, d := range diags {
		run.Diagnostics = append(run.Diagnostics, models.Diagnostic{
			Language: d.Language,
			Concern:  d.Concern,
			Pattern:  d.Pattern,
			Offset:   d.Offset,
			Kind:     string(d.Kind),
			Severity: string(d.Severity),
			Message:  d.Message,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record check: %w", err)
	}
	return run, nil
}

// RecentChecks returns the latest check runs, newest first.
func (s *Store) RecentChecks(ctx context.Context, limit int) ([]models.CheckRun, error) {
	var runs []models.CheckRun
	q := s.db.WithContext(ctx).
		Preload("Diagnostics", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	return runs, nil
}

func decode(raw datatypes.JSON, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// generateID creates a unique identifier with a prefix
func generateID(prefix string) string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(bytes))
}
