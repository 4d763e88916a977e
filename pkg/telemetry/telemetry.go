// Package telemetry streams power changes and control decisions to Kafka.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridsim/pkg/controller"
	"github.com/raterudder/gridsim/pkg/log"
	"github.com/raterudder/gridsim/pkg/types"
	"github.com/segmentio/kafka-go"
)

const (
	KindPower    = "power"
	KindDecision = "decision"

	defaultBuffer = 1024
	maxBatch      = 100
)

// Writer is the part of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PowerChange is the payload of a power message.
type PowerChange struct {
	Appliance types.ApplianceID `json:"appliance"`
	Power     float64           `json:"power"`
}

// Message is one telemetry record.
type Message struct {
	RunID     string               `json:"runId"`
	Kind      string               `json:"kind"`
	SimTime   time.Duration        `json:"simTime"`
	Timestamp time.Time            `json:"timestamp"`
	Power     *PowerChange         `json:"power,omitempty"`
	Decision  *controller.Decision `json:"decision,omitempty"`
}

func (m Message) key() string {
	if m.Power != nil {
		return string(m.Power.Appliance)
	}
	return m.Kind
}

// Publisher buffers messages and writes them to Kafka from a background
// goroutine. A publisher without a writer drops everything.
type Publisher struct {
	w       Writer
	ch      chan Message
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
}

// Configured registers the Kafka flags. Telemetry is disabled unless brokers
// are given.
func Configured() *Publisher {
	brokers := lflag.String("kafka-brokers", "", "Comma separated Kafka brokers for the telemetry stream (empty disables it)")
	topic := lflag.String("kafka-topic", "gridsim.telemetry", "Kafka topic for the telemetry stream")

	p := NewPublisher(nil, defaultBuffer)
	lflag.Do(func() {
		if *brokers == "" {
			return
		}
		p.w = newKafkaWriter(strings.Split(*brokers, ","), *topic)
	})
	return p
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

// NewPublisher returns a publisher writing to w with a buffer of size
// messages. w may be nil.
func NewPublisher(w Writer, size int) *Publisher {
	return &Publisher{
		w:  w,
		ch: make(chan Message, size),
	}
}

// Enabled reports whether messages are written anywhere.
func (p *Publisher) Enabled() bool {
	return p != nil && p.w != nil
}

// Dropped returns the number of messages dropped because the buffer was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Start runs the write loop until Close is called.
func (p *Publisher) Start(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for msg := range p.ch {
			batch := []Message{msg}
		drain:
			for len(batch) < maxBatch {
				select {
				case m, ok := <-p.ch:
					if !ok {
						break drain
					}
					batch = append(batch, m)
				default:
					break drain
				}
			}
			p.write(ctx, batch)
		}
	}()
}

func (p *Publisher) write(ctx context.Context, batch []Message) {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, m := range batch {
		b, err := json.Marshal(m)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "marshal failed", slog.Any("error", err))
			continue
		}
		msgs = append(msgs, kafka.Message{Key: []byte(m.key()), Value: b, Time: m.Timestamp})
	}
	// a cancelled run still flushes what it buffered
	if err := p.w.WriteMessages(context.WithoutCancel(ctx), msgs...); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "kafka write failed", slog.Any("error", err), slog.Int("messages", len(msgs)))
		return
	}
	log.Ctx(ctx).DebugContext(ctx, "published telemetry", slog.Int("messages", len(msgs)))
}

func (p *Publisher) publish(m Message) {
	if !p.Enabled() {
		return
	}
	select {
	case p.ch <- m:
	default:
		p.dropped.Add(1)
	}
}

// Close flushes the buffered messages and closes the writer.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	var err error
	p.once.Do(func() {
		close(p.ch)
		p.wg.Wait()
		err = p.w.Close()
	})
	return err
}

// Stream stamps messages of one simulation run.
type Stream struct {
	p     *Publisher
	runID string
	clock func() time.Duration
}

// ForRun returns a stream for runID. clock returns the current simulated
// offset.
func (p *Publisher) ForRun(runID string, clock func() time.Duration) *Stream {
	return &Stream{p: p, runID: runID, clock: clock}
}

// OnPowerChanged publishes the new effective power of an appliance.
func (s *Stream) OnPowerChanged(id types.ApplianceID, power float64) {
	if !s.p.Enabled() {
		return
	}
	s.p.publish(Message{
		RunID:     s.runID,
		Kind:      KindPower,
		SimTime:   s.clock(),
		Timestamp: time.Now(),
		Power:     &PowerChange{Appliance: id, Power: power},
	})
}

// PublishDecision publishes the outcome of a control tick.
func (s *Stream) PublishDecision(d controller.Decision) {
	if !s.p.Enabled() {
		return
	}
	s.p.publish(Message{
		RunID:     s.runID,
		Kind:      KindDecision,
		SimTime:   d.At,
		Timestamp: time.Now(),
		Decision:  &d,
	})
}
