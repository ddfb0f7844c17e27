// Package store persists tenant documents and reminder deadlines.
//
// Documents are opaque JSON blobs addressed by (tenant, key) with
// last-writer-wins semantics. Reading a key that was never written returns the
// key's default document, never an error.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pathakanu/medguardian/internal/errs"
	"github.com/pathakanu/medguardian/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document keys used by the engine.
const (
	KeyMedicines = "medicines"
	KeySchedules = "schedules"
	KeySettings  = "settings"
	KeyLogs      = "logs"
)

// DocumentStore reads and writes whole tenant documents.
type DocumentStore interface {
	Read(ctx context.Context, tenantID, key string) (json.RawMessage, error)
	Write(ctx context.Context, tenantID, key string, doc json.RawMessage) error
	Tenants(ctx context.Context) ([]string, error)
}

var defaults = map[string]string{
	KeyMedicines: `{"version":"1.0","medicines":[]}`,
	KeySchedules: `{"version":"1.0","schedules":[]}`,
	KeySettings: `{"version":"1.0",` +
		`"meal_times":{"breakfast":{"start":"07:00","end":"10:00"},` +
		`"lunch":{"start":"12:00","end":"14:00"},` +
		`"dinner":{"start":"19:00","end":"21:00"}},` +
		`"timezone":"","reminder_advance_minutes":15,"trackers":[]}`,
	KeyLogs: `{"version":"1.0","logs":[]}`,
}

// DefaultDocument returns the document served for a key that was never written.
func DefaultDocument(key string) json.RawMessage {
	if d, ok := defaults[key]; ok {
		return json.RawMessage(d)
	}
	return json.RawMessage(`{"version":"1.0"}`)
}

// GormStore keeps documents in the documents table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Read returns the stored document or the key's default.
func (s *GormStore) Read(ctx context.Context, tenantID, key string) (json.RawMessage, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND doc_key = ?", tenantID, key).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultDocument(key), nil
	}
	if err != nil {
		return nil, errs.Unavailable("read "+key, err)
	}
	return json.RawMessage(doc.Payload), nil
}

// Write replaces the whole document.
func (s *GormStore) Write(ctx context.Context, tenantID, key string, payload json.RawMessage) error {
	doc := model.Document{
		TenantID:  tenantID,
		Key:       key,
		Payload:   string(payload),
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return errs.Unavailable("write "+key, err)
	}
	return nil
}

// Tenants lists every tenant that has written at least one document.
func (s *GormStore) Tenants(ctx context.Context) ([]string, error) {
	var tenants []string
	if err := s.db.WithContext(ctx).Model(&model.Document{}).
		Distinct().Order("tenant_id").Pluck("tenant_id", &tenants).Error; err != nil {
		return nil, errs.Unavailable("list tenants", err)
	}
	return tenants, nil
}

// ReadJSON decodes a document into v.
func ReadJSON(ctx context.Context, s DocumentStore, tenantID, key string, v any) error {
	raw, err := s.Read(ctx, tenantID, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errs.Unavailable("decode "+key, err)
	}
	return nil
}

// WriteJSON encodes v and writes it as the whole document.
func WriteJSON(ctx context.Context, s DocumentStore, tenantID, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Write(ctx, tenantID, key, raw)
}

var _ DocumentStore = (*GormStore)(nil)
