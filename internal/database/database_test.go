package database

import (
	"testing"

	"github.com/pathakanu/medguardian/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCreatesTables(t *testing.T) {
	t.Parallel()
	db := NewTestDB(t)

	assert.True(t, db.Migrator().HasTable(&model.Document{}))
	assert.True(t, db.Migrator().HasTable(&model.Deadline{}))

	require.NoError(t, db.Create(&model.Document{TenantID: "t", Key: "medicines", Payload: "{}"}).Error)
	var count int64
	require.NoError(t, db.Model(&model.Document{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
