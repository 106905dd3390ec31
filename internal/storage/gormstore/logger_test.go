package gormstore

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestStatementKind(t *testing.T) {
	tests := map[string]string{
		`SELECT * FROM "events"`:        "select",
		"  insert into users (id)":      "insert",
		"UPDATE events SET title = $1":  "update",
		`DELETE FROM "refresh_tokens"`:  "delete",
		"WITH x AS (SELECT 1) SELECT 1": "other",
		"":                              "other",
	}
	for sql, want := range tests {
		assert.Equal(t, want, statementKind(sql), sql)
	}
}

func TestGormLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewGormLogger(zerolog.New(&buf), 10*time.Millisecond)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	logger.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, buf.String(), "fast queries are not logged at warn level")

	logger.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "slow query")

	buf.Reset()
	logger.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	logger.Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Contains(t, buf.String(), "query failed")

	buf.Reset()
	silent := logger.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Empty(t, buf.String())
}
