package log

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

// BadgerAdapter satisfies badger.Logger on top of a logrus entry
type BadgerAdapter struct {
	*logrus.Entry
}

// NewBadgerAdapter wraps entry for use as badger's logger
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{Entry: entry}
}

func (l *BadgerAdapter) Errorf(f string, v ...interface{})   { l.Entry.Errorf(f, v...) }
func (l *BadgerAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }
func (l *BadgerAdapter) Infof(f string, v ...interface{})    { l.Entry.Infof(f, v...) }

// Debugf is demoted to Trace; badger's debug output is per-compaction noise.
func (l *BadgerAdapter) Debugf(f string, v ...interface{}) { l.Entry.Tracef(f, v...) }

// DefaultSlowQueryThreshold is the duration above which a query is logged at Warn
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// GormAdapter implements gorm's logger.Interface using logrus
type GormAdapter struct {
	entry         *logrus.Entry
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormAdapter creates a gorm logger writing through entry
func NewGormAdapter(entry *logrus.Entry) *GormAdapter {
	return &GormAdapter{
		entry:         entry.WithField("source", "gorm"),
		level:         gormlogger.Warn,
		slowThreshold: DefaultSlowQueryThreshold,
	}
}

// LogMode implements logger.Interface
func (l *GormAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

// Info implements logger.Interface
func (l *GormAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.entry.WithContext(ctx).Debugf(msg, args...)
	}
}

// Warn implements logger.Interface
func (l *GormAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.entry.WithContext(ctx).Warnf(msg, args...)
	}
}

// Error implements logger.Interface
func (l *GormAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.entry.WithContext(ctx).Errorf(msg, args...)
	}
}

// Trace implements logger.Interface. Record-not-found is not logged as an
// error: lookups by natural key miss routinely.
func (l *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := logrus.Fields{
		"elapsed": elapsed.String(),
		"rows":    rows,
		"sql":     sql,
	}
	entry := l.entry.WithContext(ctx).WithFields(fields)

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		entry.WithError(err).Error("Database query failed")
	case elapsed > l.slowThreshold && l.slowThreshold > 0 && l.level >= gormlogger.Warn:
		entry.Warn("Slow query detected")
	case l.level >= gormlogger.Info:
		entry.Debug("Database query executed")
	}
}
