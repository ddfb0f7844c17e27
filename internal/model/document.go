package model

import "time"

// Document is one opaque JSON document owned by a tenant. The pair
// (TenantID, Key) identifies it; writes replace the whole payload.
type Document struct {
	TenantID  string    `gorm:"primaryKey;size:128"`
	Key       string    `gorm:"column:doc_key;primaryKey;size:64"`
	Payload   string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
