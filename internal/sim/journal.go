package sim

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	journalBufferSize    = 1024
	journalMaxPerSec     = 10000
	journalBatchSize     = 64
	journalFlushInterval = 100 * time.Millisecond
)

// CommandJournal is a bounded, best-effort append-only record of every
// accepted command, written as newline-delimited JSON for the replay tool.
// It never blocks the step loop: under pressure the oldest entries are
// dropped and counted.
type CommandJournal struct {
	buffer    [journalBufferSize]Command
	writeHead uint64 // atomic, producer position
	readHead  uint64 // atomic, consumer position

	limiter *rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	dropped uint64 // atomic
	total   uint64 // atomic
}

// NewCommandJournal creates a journal. Call Start before recording.
func NewCommandJournal() *CommandJournal {
	return &CommandJournal{
		limiter:  rate.NewLimiter(journalMaxPerSec, journalMaxPerSec/10),
		stopChan: make(chan struct{}),
	}
}

// Start opens the output file and begins the async writer. An empty path
// keeps the journal in memory only (useful in tests).
func (j *CommandJournal) Start(filePath string) error {
	if j.running.Load() {
		return nil
	}
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		j.file = file
	}
	j.running.Store(true)
	j.writerWg.Add(1)
	go j.writerLoop()
	return nil
}

// Stop flushes and shuts the journal down. Safe to call twice.
func (j *CommandJournal) Stop() {
	j.stopOnce.Do(func() {
		j.running.Store(false)
		close(j.stopChan)
		j.writerWg.Wait()

		j.fileMu.Lock()
		if j.file != nil {
			j.file.Close()
		}
		j.fileMu.Unlock()
	})
}

// Record appends a command to the journal. Returns false when rate
// limited or not running; drops are counted, never propagated.
func (j *CommandJournal) Record(cmd Command) bool {
	if !j.running.Load() {
		return false
	}
	if !j.limiter.Allow() {
		atomic.AddUint64(&j.dropped, 1)
		return false
	}

	head := atomic.AddUint64(&j.writeHead, 1) - 1
	tail := atomic.LoadUint64(&j.readHead)
	if head-tail >= journalBufferSize {
		// Rolling window: overwrite the oldest entry under pressure.
		atomic.AddUint64(&j.readHead, 1)
		atomic.AddUint64(&j.dropped, 1)
	}
	j.buffer[head%journalBufferSize] = cmd
	atomic.AddUint64(&j.total, 1)
	return true
}

func (j *CommandJournal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(journalFlushInterval)
	defer ticker.Stop()

	batch := make([]Command, 0, journalBatchSize)
	for {
		select {
		case <-j.stopChan:
			for {
				batch = j.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.flushBatch(batch)
			}
		case <-ticker.C:
			batch = j.collectBatch(batch[:0])
			if len(batch) > 0 {
				j.flushBatch(batch)
			}
		}
	}
}

func (j *CommandJournal) collectBatch(batch []Command) []Command {
	head := atomic.LoadUint64(&j.writeHead)
	tail := atomic.LoadUint64(&j.readHead)
	for i := tail; i < head && len(batch) < journalBatchSize; i++ {
		batch = append(batch, j.buffer[i%journalBufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&j.readHead, uint64(len(batch)))
	}
	return batch
}

func (j *CommandJournal) flushBatch(batch []Command) {
	j.fileMu.Lock()
	defer j.fileMu.Unlock()

	if j.file == nil {
		return
	}
	for _, cmd := range batch {
		data, err := json.Marshal(cmd)
		if err != nil {
			continue
		}
		j.file.Write(data)
		j.file.Write([]byte("\n"))
	}
}

// JournalStats are monotonic journal counters.
type JournalStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// Stats reports journal counters for observability.
func (j *CommandJournal) Stats() JournalStats {
	head := atomic.LoadUint64(&j.writeHead)
	tail := atomic.LoadUint64(&j.readHead)
	return JournalStats{
		Total:   atomic.LoadUint64(&j.total),
		Dropped: atomic.LoadUint64(&j.dropped),
		Pending: head - tail,
		Running: j.running.Load(),
	}
}
