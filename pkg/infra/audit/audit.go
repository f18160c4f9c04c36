package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/types"
)

// Record is the audit projection of a finished scan. It carries scores,
// counts and the decision, never the scanned text or matched values.
type Record struct {
	RequestID        string             `json:"request_id"`
	ClientKey        string             `json:"client_key,omitempty"`
	Endpoint         string             `json:"endpoint,omitempty"`
	Model            string             `json:"model,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
	Action           types.Action       `json:"action"`
	Reason           string             `json:"reason"`
	OverallRiskScore float64            `json:"overall_risk_score"`
	CategoryScores   map[string]float64 `json:"category_scores,omitempty"`
	ThreatCount      int                `json:"threat_count"`
	PIICount         int                `json:"pii_count"`
	SecretCount      int                `json:"secret_count"`
	ScanDurationMs   float64            `json:"scan_duration_ms"`
	DetectorStatuses map[string]string  `json:"detector_statuses,omitempty"`
}

// Sink persists audit records. Write is called from a single dispatcher
// goroutine; implementations do not need to be concurrency safe.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec *Record) error
	Close() error
}

// DroppedCounter is incremented when the queue overflows and the oldest
// pending record is discarded.
type DroppedCounter interface {
	Inc()
}

// Dispatcher decouples scan latency from audit persistence. Emit never
// blocks: when the bounded queue is full the oldest record is dropped to
// make room for the newest one.
type Dispatcher struct {
	sink    Sink
	logger  *logrus.Logger
	queue   chan *Record
	dropped DroppedCounter

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(sink Sink, logger *logrus.Logger, queueSize int, dropped DroppedCounter) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		queue:   make(chan *Record, queueSize),
		dropped: dropped,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit enqueues a record for background persistence. Records are dropped
// rather than ever delaying a caller on the request path.
func (d *Dispatcher) Emit(rec *Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for {
		select {
		case d.queue <- rec:
			return
		default:
		}
		select {
		case old := <-d.queue:
			if d.dropped != nil {
				d.dropped.Inc()
			}
			d.logger.WithField("request_id", old.RequestID).Warn("audit queue full, dropping oldest record")
		default:
		}
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for rec := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.sink.Write(ctx, rec); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"sink":       d.sink.Name(),
				"request_id": rec.RequestID,
			}).Error("failed to write audit record")
		}
		cancel()
	}
}

// Close stops accepting records, flushes the queue and closes the sink.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-time.After(10 * time.Second):
		d.logger.Warn("timed out flushing audit queue")
	}
	return d.sink.Close()
}
