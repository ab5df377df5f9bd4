package logger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type AsyncFileWriter struct {
	writer  *bufio.Writer
	file    *os.File
	mu      sync.Mutex
	logChan chan []byte
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

func NewAsyncFileWriter(logFile string, bufferSize int) (*AsyncFileWriter, error) {
	safeLogFile := filepath.Clean(logFile)
	file, err := os.OpenFile(safeLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	aw := &AsyncFileWriter{
		writer:  bufio.NewWriterSize(file, bufferSize),
		file:    file,
		logChan: make(chan []byte, 1000),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go aw.processLogs()

	return aw, nil
}

// Write never blocks the caller. Lines are dropped when the queue is full.
func (aw *AsyncFileWriter) Write(p []byte) (n int, err error) {
	select {
	case aw.logChan <- append([]byte{}, p...):
	default:
		aw.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped reports how many lines were discarded under back pressure.
func (aw *AsyncFileWriter) Dropped() int64 {
	return aw.dropped.Load()
}

func (aw *AsyncFileWriter) processLogs() {
	defer close(aw.stopped)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case logData := <-aw.logChan:
			aw.write(logData)

		case <-ticker.C:
			aw.flush()

		case <-aw.done:
			for {
				select {
				case logData := <-aw.logChan:
					aw.write(logData)
				default:
					aw.flush()
					return
				}
			}
		}
	}
}

func (aw *AsyncFileWriter) write(data []byte) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	if _, err := aw.writer.Write(data); err != nil {
		fmt.Fprintln(os.Stderr, "error writing log data to file", err)
	}
}

func (aw *AsyncFileWriter) flush() {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	_ = aw.writer.Flush()
}

// Close drains queued lines, flushes and closes the file.
func (aw *AsyncFileWriter) Close() error {
	var err error
	aw.once.Do(func() {
		close(aw.done)
		<-aw.stopped
		err = aw.file.Close()
	})
	return err
}
