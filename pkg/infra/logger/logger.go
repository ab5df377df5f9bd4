package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const logsDir = "logs"

// NewLogger builds the process logger. Entries go to logs/<name>.log through
// the async file writer and are mirrored to the console by a hook. Close the
// returned closer before exit to flush both.
func NewLogger(name string) (*logrus.Logger, io.Closer) {
	logger, closer, err := New(Options{
		Dir:          logsDir,
		Name:         name,
		Level:        os.Getenv("LOG_LEVEL"),
		AsyncConsole: os.Getenv("LOG_CONSOLE_ASYNC") == "true",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger, closer
}

type Options struct {
	Dir          string
	Name         string
	Level        string
	AsyncConsole bool
	// Console overrides stdout for the console hook.
	Console io.Writer
}

// New returns the logger and a closer that flushes the file and console
// writers.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "time",
			logrus.FieldKeyMsg:  "msg",
		},
	})

	if opts.Level == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if opts.Name == "" {
		opts.Name = "trustboundary"
	}
	if opts.Dir == "" {
		opts.Dir = logsDir
	}
	logFile := filepath.Clean(filepath.Join(opts.Dir, opts.Name+".log"))
	if !strings.HasPrefix(logFile, filepath.Clean(opts.Dir)+string(filepath.Separator)) {
		return nil, nil, fmt.Errorf("invalid log file path %q: must be in %s", logFile, opts.Dir)
	}
	if err := os.MkdirAll(opts.Dir, 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	asyncWriter, err := NewAsyncFileWriter(logFile, 32*1024)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize async log writer: %w", err)
	}
	logger.SetOutput(asyncWriter)

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	closers := multiCloser{asyncWriter}
	if opts.AsyncConsole {
		hook := NewAsyncConsoleHook(console, 1000)
		logger.AddHook(hook)
		closers = append(closers, hook)
	} else {
		logger.AddHook(NewConsoleHook(console))
	}

	return logger, closers, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
