package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/coindash/internal/poller"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrJournalClosed = errors.New("journal is closed")
	ErrJournalFull   = errors.New("journal buffer full")
)

// Journal appends JSON lines asynchronously to one file per UTC date:
// <baseDir>/<yyyy-mm-dd>/<name>.jsonl, rotated by size.
type Journal struct {
	baseDir   string
	name      string
	maxSizeMB int
	writeCh   chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
	now         func() time.Time
}

// NewJournal starts a journal writer.
func NewJournal(baseDir, name string, bufferSize, maxSizeMB int) *Journal {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	j := &Journal{
		baseDir:   baseDir,
		name:      name,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}

	j.wg.Add(1)
	go j.writeLoop()
	return j
}

// Write queues a record. It never blocks: a full buffer drops the record.
func (j *Journal) Write(record any) error {
	select {
	case <-j.done:
		return ErrJournalClosed
	default:
	}
	select {
	case j.writeCh <- record:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "journal", j.name)
		return ErrJournalFull
	}
}

// Close stops the writer after flushing queued records.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() { close(j.done) })
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger != nil {
		return j.logger.Close()
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()

	for {
		select {
		case record := <-j.writeCh:
			j.writeRecord(record)
		case <-j.done:
			j.drain()
			return
		}
	}
}

func (j *Journal) drain() {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case record := <-j.writeCh:
			j.writeRecord(record)
		case <-timeout:
			slog.Warn("journal close timeout, some records may be lost", "journal", j.name)
			return
		default:
			return
		}
	}
}

func (j *Journal) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("journal marshal failed", "journal", j.name, "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := j.now().UTC().Format("2006-01-02")
	if date != j.currentDate || j.logger == nil {
		if err := j.rotateForDate(date); err != nil {
			slog.Error("journal rotate failed", "journal", j.name, "error", err)
			return
		}
	}

	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "journal", j.name, "error", err)
	}
}

func (j *Journal) rotateForDate(date string) error {
	if j.logger != nil {
		if err := j.logger.Close(); err != nil {
			slog.Debug("journal close previous file failed", "journal", j.name, "error", err)
		}
		j.logger = nil
	}

	dir := filepath.Join(j.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	filename := filepath.Join(dir, j.name+".jsonl")
	j.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    j.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		LocalTime:  false,
	}
	j.currentDate = date
	slog.Info("opened journal file", "file", filename)
	return nil
}

// QuoteRecord is one journaled poll.
type QuoteRecord struct {
	At        time.Time         `json:"at"`
	Quotes    map[string]string `json:"quotes"`
	Alert     bool              `json:"alert"`
	Threshold string            `json:"threshold,omitempty"`
}

// QuoteJournal records applied polls.
type QuoteJournal struct {
	*Journal
}

func NewQuoteJournal(baseDir string) *QuoteJournal {
	return &QuoteJournal{Journal: NewJournal(baseDir, "quotes", 256, 25)}
}

// RecordQuotes queues a poll update.
func (q *QuoteJournal) RecordQuotes(u poller.Update) error {
	rec := QuoteRecord{
		At:     u.At,
		Quotes: make(map[string]string, len(u.Quotes)),
		Alert:  u.Alert,
	}
	for _, quote := range u.Quotes {
		rec.Quotes[quote.CoinID] = quote.USD.String()
	}
	if u.Threshold.Valid {
		rec.Threshold = u.Threshold.Decimal.String()
	}
	return q.Write(rec)
}
