package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pthm-cable/robosim/systems"
)

// TraceRecord is one strategy trace call.
type TraceRecord struct {
	Robot     systems.RobotID `json:"robot"`
	Tick      int64           `json:"tick"`
	State     string          `json:"state,omitempty"`
	Target    string          `json:"target,omitempty"`
	MentalMap map[string]any  `json:"mentalMap,omitempty"`
}

// newTraceRecord picks the well-known keys out of a script's trace object.
// Anything else lands in MentalMap.
func newTraceRecord(robot systems.RobotID, tick int64, rec map[string]any) TraceRecord {
	tr := TraceRecord{Robot: robot, Tick: tick}
	for k, v := range rec {
		switch k {
		case "state":
			tr.State = fmt.Sprint(v)
		case "target":
			tr.Target = fmt.Sprint(v)
		case "mentalMap":
			if m, ok := v.(map[string]any); ok {
				if tr.MentalMap == nil {
					tr.MentalMap = make(map[string]any, len(m))
				}
				for mk, mv := range m {
					tr.MentalMap[mk] = mv
				}
				continue
			}
			fallthrough
		default:
			if tr.MentalMap == nil {
				tr.MentalMap = make(map[string]any)
			}
			tr.MentalMap[k] = v
		}
	}
	return tr
}

// TraceWriter persists trace records.
type TraceWriter interface {
	WriteTrace(TraceRecord) error
}

// JSONLSink writes one JSON object per line.
type JSONLSink struct {
	w      *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONLSink writes to w. Close flushes but only closes w if it was opened
// by CreateJSONLSink.
func NewJSONLSink(w io.Writer) *JSONLSink {
	bw := bufio.NewWriter(w)
	return &JSONLSink{w: bw, enc: json.NewEncoder(bw)}
}

// CreateJSONLSink creates (or truncates) path and writes to it.
func CreateJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	s := NewJSONLSink(f)
	s.closer = f
	return s, nil
}

// WriteTrace encodes one record.
func (s *JSONLSink) WriteTrace(r TraceRecord) error {
	return s.enc.Encode(r)
}

// Close flushes buffered records and closes the file, if any.
func (s *JSONLSink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// TraceSink receives strategy traces on the tick thread and hands them to a
// writer goroutine through a bounded channel. When the channel is full the
// record is dropped; Trace never blocks.
type TraceSink struct {
	ch      chan TraceRecord
	done    chan struct{}
	w       TraceWriter
	err     error
	dropped atomic.Int64
	written atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewTraceSink starts the writer goroutine. buffer is the channel capacity.
func NewTraceSink(w TraceWriter, buffer int) *TraceSink {
	if buffer < 1 {
		buffer = 1
	}
	s := &TraceSink{
		ch:   make(chan TraceRecord, buffer),
		done: make(chan struct{}),
		w:    w,
	}
	go s.drain()
	return s
}

func (s *TraceSink) drain() {
	defer close(s.done)
	for r := range s.ch {
		if s.err != nil {
			continue
		}
		if err := s.w.WriteTrace(r); err != nil {
			s.err = err
			continue
		}
		s.written.Add(1)
	}
}

// Trace implements sandbox.Tracer.
func (s *TraceSink) Trace(robot systems.RobotID, tick int64, rec map[string]any) {
	s.Offer(newTraceRecord(robot, tick, rec))
}

// Offer enqueues r, reporting false if it was dropped.
func (s *TraceSink) Offer(r TraceRecord) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return false
	}
	select {
	case s.ch <- r:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped returns how many records were discarded.
func (s *TraceSink) Dropped() int64 {
	return s.dropped.Load()
}

// Written returns how many records reached the writer.
func (s *TraceSink) Written() int64 {
	return s.written.Load()
}

// Close stops accepting records, waits for queued ones to be written and
// returns the first write error.
func (s *TraceSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return s.err
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	<-s.done
	return s.err
}
