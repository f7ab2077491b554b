package config

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupLoggedDB(t *testing.T, level slog.Level) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level}))

	db, err := SetupDatabase(&DatabaseConfig{
		Driver: "sqlite",
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "log.db")},
	}, logger)
	if err != nil {
		t.Fatalf("SetupDatabase() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db, &buf
}

func TestGormLogger_FailedStatementLoggedAtInfoLevel(t *testing.T) {
	db, buf := setupLoggedDB(t, slog.LevelInfo)

	if err := db.Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatal("expected query error")
	}

	out := buf.String()
	for _, want := range []string{"level=ERROR", `msg="sql failed"`, "component=gorm", "no_such_table", "no such table"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestGormLogger_StatementsOnlyTracedInDebug(t *testing.T) {
	db, buf := setupLoggedDB(t, slog.LevelInfo)
	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("SELECT 1: %v", err)
	}
	if strings.Contains(buf.String(), "SELECT 1") {
		t.Errorf("statement traced below debug level:\n%s", buf.String())
	}

	db, buf = setupLoggedDB(t, slog.LevelDebug)
	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("SELECT 1: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "SELECT 1") {
		t.Errorf("statement not traced at debug level:\n%s", out)
	}
}

func TestGormLogger_Trace(t *testing.T) {
	stmt := func() (string, int64) { return "UPDATE users SET role = 'x'", 3 }
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		want    string // empty means nothing is logged
	}{
		{"error", gormlogger.Warn, 0, errors.New("disk full"), "level=ERROR"},
		{"record not found ignored", gormlogger.Warn, 0, gorm.ErrRecordNotFound, ""},
		{"slow", gormlogger.Warn, time.Second, nil, "level=WARN"},
		{"fast at warn", gormlogger.Warn, 0, nil, ""},
		{"fast at info", gormlogger.Info, 0, nil, "level=DEBUG"},
		{"silent", gormlogger.Silent, time.Second, errors.New("disk full"), ""},
		{"error level skips slow", gormlogger.Error, time.Second, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newGormLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))).
				LogMode(tt.level)

			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), stmt, tt.err)

			out := buf.String()
			if tt.want == "" {
				if out != "" {
					t.Errorf("expected no output, got:\n%s", out)
				}
				return
			}
			if !strings.Contains(out, tt.want) || !strings.Contains(out, "rows=3") {
				t.Errorf("output missing %q or rows:\n%s", tt.want, out)
			}
		})
	}
}

func TestGormLogger_LevelMethods(t *testing.T) {
	var buf bytes.Buffer
	l := newGormLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))).
		LogMode(gormlogger.Warn)
	ctx := context.Background()

	l.Info(ctx, "hidden %d", 1)
	l.Warn(ctx, "careful %d", 2)
	l.Error(ctx, "broken %d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn mode:\n%s", out)
	}
	if !strings.Contains(out, `level=WARN msg="careful 2"`) || !strings.Contains(out, `level=ERROR msg="broken 3"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}
