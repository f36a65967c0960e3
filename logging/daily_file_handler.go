package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DailyFileHandler mirrors records to stdout and to one log file per day.
type DailyFileHandler struct {
	out            *dailyFile
	defaultHandler slog.Handler
}

type dailyFile struct {
	mutex           sync.Mutex
	currentFile     *os.File
	currentFileName string
	logDir          string
}

func NewDailyFileHandler(logDir string, opts *slog.HandlerOptions) (*DailyFileHandler, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	h := &DailyFileHandler{
		out:            &dailyFile{logDir: logDir},
		defaultHandler: slog.NewTextHandler(os.Stdout, opts),
	}

	if err := h.out.rotateIfNeeded(); err != nil {
		return nil, err
	}

	return h, nil
}

func (f *dailyFile) rotateIfNeeded() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	fileName := fmt.Sprintf("parchemin-%s.log", time.Now().Format("2006-01-02"))
	filePath := filepath.Join(f.logDir, fileName)

	if fileName == f.currentFileName {
		return nil
	}

	if f.currentFile != nil {
		f.currentFile.Close()
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	f.currentFile = file
	f.currentFileName = fileName
	return nil
}

func (f *dailyFile) write(line string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	_, err := f.currentFile.WriteString(line)
	return err
}

func (h *DailyFileHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.out.rotateIfNeeded(); err != nil {
		// If rotation fails, at least log to stdout.
		return h.defaultHandler.Handle(ctx, r)
	}

	timeStr := r.Time.Format("2006/01/02 15:04:05.000")
	level := r.Level.String()

	var attrs string
	r.Attrs(func(a slog.Attr) bool {
		attrs += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})

	logLine := fmt.Sprintf("[%s] %-5s %s%s\n", timeStr, level, r.Message, attrs)

	err := h.out.write(logLine)

	if err2 := h.defaultHandler.Handle(ctx, r); err2 != nil {
		if err == nil {
			err = err2
		}
	}

	return err
}

func (h *DailyFileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &DailyFileHandler{
		out:            h.out,
		defaultHandler: h.defaultHandler.WithAttrs(attrs),
	}
}

func (h *DailyFileHandler) WithGroup(name string) slog.Handler {
	return &DailyFileHandler{
		out:            h.out,
		defaultHandler: h.defaultHandler.WithGroup(name),
	}
}

func (h *DailyFileHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.defaultHandler.Enabled(ctx, level)
}
