package applog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var errSinkClosed = errors.New("async log sink is closed")

// queuedEntry remembers the core it was written through so fields added by
// With survive the hop to the writer goroutine.
type queuedEntry struct {
	core   zapcore.Core
	entry  zapcore.Entry
	fields []zap.Field
}

// asyncSink hands entries to a background goroutine that writes them to the
// wrapped core. Write never blocks; a full queue drops the entry.
type asyncSink struct {
	core      zapcore.Core
	entryChan chan queuedEntry
	quit      chan struct{}
	wg        *sync.WaitGroup
	closeOnce *sync.Once
}

func newAsyncSink(core zapcore.Core, bufferSize int) *asyncSink {
	s := &asyncSink{
		core:      core,
		entryChan: make(chan queuedEntry, bufferSize),
		quit:      make(chan struct{}),
		wg:        &sync.WaitGroup{},
		closeOnce: &sync.Once{},
	}

	s.wg.Add(1)
	go s.process()
	return s
}

func (s *asyncSink) process() {
	defer s.wg.Done()
	for {
		select {
		case queued := <-s.entryChan:
			_ = queued.core.Write(queued.entry, queued.fields)
		case <-s.quit:
			for {
				select {
				case queued := <-s.entryChan:
					_ = queued.core.Write(queued.entry, queued.fields)
				default:
					_ = s.core.Sync()
					return
				}
			}
		}
	}
}

func (s *asyncSink) Sync() error {
	return s.core.Sync()
}

func (s *asyncSink) Write(entry zapcore.Entry, fields []zap.Field) error {
	select {
	case <-s.quit:
		return errSinkClosed
	default:
	}

	select {
	case s.entryChan <- queuedEntry{core: s.core, entry: entry, fields: fields}:
	default:
		return fmt.Errorf("channel log buffer overflow (capacity: %d)", cap(s.entryChan))
	}
	return nil
}

func (s *asyncSink) Enabled(lvl zapcore.Level) bool {
	return s.core.Enabled(lvl)
}

// With shares the queue and the writer goroutine with the parent sink.
func (s *asyncSink) With(fields []zap.Field) zapcore.Core {
	return &asyncSink{
		core:      s.core.With(fields),
		entryChan: s.entryChan,
		quit:      s.quit,
		wg:        s.wg,
		closeOnce: s.closeOnce,
	}
}

func (s *asyncSink) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if s.Enabled(entry.Level) {
		return ce.AddCore(entry, s)
	}
	return ce
}

// Shutdown stops accepting entries and waits up to timeout for the queue to
// drain into the wrapped core. Calling it more than once is safe.
func (s *asyncSink) Shutdown(timeout time.Duration) {
	s.closeOnce.Do(func() { close(s.quit) })
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
