package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
)

const (
	LevelFatal slog.Level = 12
)

// Options controls where log lines go.
// Dir enables daily files (<Dir>/2006-01-02.log); Console mirrors to stdout.
type Options struct {
	Dir     string
	Console bool
	Debug   bool
}

// AsyncHandler formats records on the caller's goroutine and writes them
// from a single worker, so slow disks never block the chat loop.
type AsyncHandler struct {
	out      *output
	attrs    []slog.Attr
	group    string
	logLevel slog.Level
}

type output struct {
	ch          chan []byte
	mu          sync.Mutex
	writer      io.Writer
	console     bool
	currentDay  int
	currentFile *os.File
	basePath    string
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

func NewAsyncHandler(opts Options) *AsyncHandler {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	out := &output{
		ch:       make(chan []byte, 1024),
		console:  opts.Console,
		basePath: opts.Dir,
	}
	if err := out.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
	}
	out.wg.Add(1)
	go out.startWorker()
	return &AsyncHandler{out: out, logLevel: level}
}

// rotateIfNeeded opens a new file when the day changes.
func (o *output) rotateIfNeeded() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.basePath == "" {
		if o.writer == nil {
			o.writer = o.consoleWriter()
		}
		return nil
	}

	now := time.Now()
	if now.YearDay() == o.currentDay && o.currentFile != nil {
		return nil
	}

	if o.currentFile != nil {
		if err := o.currentFile.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		o.currentFile = nil
	}

	if err := os.MkdirAll(o.basePath, 0755); err != nil {
		o.writer = o.consoleWriter()
		return fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(o.basePath, now.Format("2006-01-02")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		o.writer = o.consoleWriter()
		return fmt.Errorf("open log file: %w", err)
	}

	o.currentFile = f
	o.currentDay = now.YearDay()
	if o.console {
		o.writer = io.MultiWriter(os.Stdout, f)
	} else {
		o.writer = f
	}
	return nil
}

func (o *output) consoleWriter() io.Writer {
	if o.console {
		return os.Stdout
	}
	return io.Discard
}

func (o *output) startWorker() {
	defer o.wg.Done()
	for data := range o.ch {
		_ = o.rotateIfNeeded()
		o.mu.Lock()
		_, _ = o.writer.Write(data)
		o.mu.Unlock()
	}
}

func (o *output) close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.ch)
		o.wg.Wait()
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.currentFile != nil {
			_ = o.currentFile.Sync()
			err = o.currentFile.Close()
			o.currentFile = nil
		}
	})
	return err
}

func (h *AsyncHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.logLevel
}

func (h *AsyncHandler) Handle(_ context.Context, r slog.Record) error {
	h.out.write([]byte(h.format(r)))
	return nil
}

func (h *AsyncHandler) format(r slog.Record) string {
	level := r.Level.String()

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	case LevelFatal:
		level = color.HiRedString("FATAL")
	}

	line := fmt.Sprintf(
		"%s | %-5s | %s",
		color.GreenString(r.Time.Format("2006-01-02T15:04:05")),
		level,
		color.CyanString(r.Message),
	)

	prefix := ""
	if h.group != "" {
		prefix = h.group + "."
	}
	for _, attr := range h.attrs {
		line += color.CyanString(fmt.Sprintf(" %s%s=%v", prefix, attr.Key, attr.Value))
	}
	r.Attrs(func(attr slog.Attr) bool {
		line += color.CyanString(fmt.Sprintf(" %s%s=%v", prefix, attr.Key, attr.Value))
		return true
	})

	return line + "\n"
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)

	return &AsyncHandler{
		out:      h.out,
		attrs:    newAttrs,
		group:    h.group,
		logLevel: h.logLevel,
	}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		out:      h.out,
		attrs:    h.attrs,
		group:    name,
		logLevel: h.logLevel,
	}
}

func (o *output) write(p []byte) {
	defer func() {
		// closed channel: the process is shutting down, drop the line
		_ = recover()
	}()
	o.ch <- p
}

func (h *AsyncHandler) Close() error {
	return h.out.close()
}

// Closer flushes and closes the default handler installed by Init.
type Closer struct {
	handler *AsyncHandler
}

func (c *Closer) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// Init installs an AsyncHandler as the slog default.
func Init(opts Options) *Closer {
	handler := NewAsyncHandler(opts)
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logger initialized")
	return &Closer{handler: handler}
}

func Debug(msg string, v ...interface{}) {
	slog.Debug(msg, v...)
}

func DebugF(msg string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(msg, v...))
}

func Info(msg string, v ...interface{}) {
	slog.Info(msg, v...)
}

func InfoF(msg string, v ...interface{}) {
	slog.Info(fmt.Sprintf(msg, v...))
}

func Warn(msg string, v ...interface{}) {
	slog.Warn(msg, v...)
}

func WarnF(msg string, v ...interface{}) {
	slog.Warn(fmt.Sprintf(msg, v...))
}

func Error(msg string, v ...interface{}) {
	slog.Error(msg, v...)
}

func ErrorF(msg string, v ...interface{}) {
	slog.Error(fmt.Sprintf(msg, v...))
}

func Fatal(msg string, v ...interface{}) {
	slog.Log(context.Background(), LevelFatal, msg, v...)
}

func FatalF(msg string, v ...interface{}) {
	slog.Log(context.Background(), LevelFatal, fmt.Sprintf(msg, v...))
}
