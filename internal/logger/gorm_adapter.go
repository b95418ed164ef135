package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// maxSQLLength caps logged statements. Guide merges insert schedule entries
// in large batches and the full statement is of no use in a log line.
const maxSQLLength = 1024

// GormAdapter implements gorm's logger.Interface on top of a Logger.
// Record-not-found is never reported: the stores look rows up with First().
type GormAdapter struct {
	logger        *Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormAdapter maps an application level name onto gorm's levels. A zero
// slowThreshold disables slow-query warnings.
func NewGormAdapter(logger *Logger, level string, slowThreshold time.Duration) *GormAdapter {
	return &GormAdapter{
		logger:        logger,
		level:         gormLevel(level),
		slowThreshold: slowThreshold,
	}
}

func (g *GormAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormAdapter) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Info {
		g.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *GormAdapter) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *GormAdapter) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Error {
		g.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...), nil)
	}
}

// Trace reports failed statements, slow statements, and with Info level
// every statement
func (g *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	failed := err != nil && g.level >= gormlogger.Error
	slow := g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn
	if !failed && !slow && g.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := map[string]interface{}{
		"elapsed_ms": elapsed.Seconds() * 1000,
		"rows":       rows,
		"sql":        clipSQL(sql),
	}
	log := g.logger.WithFields(fields)

	switch {
	case failed:
		log.ErrorContext(ctx, "database query error", err)
	case slow:
		fields["threshold_ms"] = g.slowThreshold.Seconds() * 1000
		log.WarnContext(ctx, "slow SQL query")
	default:
		log.Debug("SQL query executed")
	}
}

func clipSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	return fmt.Sprintf("%s... (%d bytes)", sql[:maxSQLLength], len(sql))
}

// gormLevel: debug shows every statement, error only failures, silent nothing.
// Anything else shows slow statements and failures.
func gormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	}
	return gormlogger.Warn
}
