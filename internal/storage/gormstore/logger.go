package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/metrics"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger forwards GORM statement logs to zerolog and feeds the query
// metrics. Statements slower than the threshold are logged at warn level.
type GormLogger struct {
	logger        zerolog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(logger zerolog.Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		logger:        logger.With().Str("component", "gorm").Logger(),
		level:         gormlogger.Warn,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info().Msgf(msg, args...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn().Msgf(msg, args...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error().Msgf(msg, args...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, rows := fc()
	metrics.RecordQuery(statementKind(sql), begin, ignoreNotFound(err))

	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	logger := l.logger
	if reqLogger := zerolog.Ctx(ctx); reqLogger != nil && reqLogger.GetLevel() != zerolog.Disabled {
		logger = reqLogger.With().Str("component", "gorm").Logger()
	}

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		logger.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		logger.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case l.level >= gormlogger.Info:
		logger.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		return nil
	}
	return err
}

// statementKind is the lower-cased leading keyword of sql, used as the
// operation label.
func statementKind(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \n\t("); i > 0 {
		sql = sql[:i]
	}
	switch kind := strings.ToLower(sql); kind {
	case "select", "insert", "update", "delete", "begin", "commit", "rollback", "savepoint":
		return kind
	}
	return "other"
}
