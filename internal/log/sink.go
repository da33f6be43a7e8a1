package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	sinkQueueSize  = 1000
	sinkMaxChunk   = 1900
	sinkTimeFormat = "2006-01-02 15:04:05"
)

// SendFunc delivers one chunk of formatted log output to the bound channel.
// Delivery failures are suppressed by contract: audit forwarding must never
// interfere with the operation being logged.
type SendFunc func(text string) error

// ChannelSink is a slog handler that buffers formatted records in a bounded
// queue and forwards them to a chat channel once one is bound via Bind. When
// the queue is full the oldest record is dropped. The sink is constructed
// explicitly and passed through the component graph.
type ChannelSink struct {
	level  slog.Leveler
	queue  chan string
	bound  chan struct{}
	done   chan struct{}
	bindMu sync.Mutex
	send   SendFunc
	prefix string
	groups []string
}

// NewChannelSink creates an unbound sink accepting records at or above level.
// The drain goroutine starts immediately and parks until Bind is called.
func NewChannelSink(level slog.Leveler) *ChannelSink {
	sink := &ChannelSink{
		level: level,
		queue: make(chan string, sinkQueueSize),
		bound: make(chan struct{}),
		done:  make(chan struct{}),
	}

	go sink.run()

	return sink
}

// Bind attaches the destination and starts delivery of queued records.
// Subsequent calls replace the destination.
func (s *ChannelSink) Bind(send SendFunc) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	alreadyBound := s.send != nil
	s.send = send
	if !alreadyBound {
		close(s.bound)
	}
}

// Close stops the drain goroutine. Queued records are discarded.
func (s *ChannelSink) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Enabled implements slog.Handler.
func (s *ChannelSink) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if s.level != nil {
		minLevel = s.level.Level()
	}

	return level >= minLevel
}

// Handle implements slog.Handler.
func (s *ChannelSink) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(record.Time.Format(sinkTimeFormat))
	b.WriteByte(' ')
	b.WriteString(record.Level.String())
	b.WriteString(" - ")
	b.WriteString(record.Message)
	b.WriteString(s.prefix)
	record.Attrs(func(attr slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(s.formatAttr(attr))
		return true
	})

	s.enqueue(b.String())

	return nil
}

// WithAttrs implements slog.Handler.
func (s *ChannelSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := s.clone()
	var b strings.Builder
	b.WriteString(s.prefix)
	for _, attr := range attrs {
		b.WriteByte(' ')
		b.WriteString(s.formatAttr(attr))
	}
	clone.prefix = b.String()

	return clone
}

// WithGroup implements slog.Handler.
func (s *ChannelSink) WithGroup(name string) slog.Handler {
	clone := s.clone()
	clone.groups = append(append([]string(nil), s.groups...), name)

	return clone
}

func (s *ChannelSink) clone() *ChannelSink {
	return &ChannelSink{
		level:  s.level,
		queue:  s.queue,
		bound:  s.bound,
		done:   s.done,
		prefix: s.prefix,
		groups: s.groups,
	}
}

func (s *ChannelSink) formatAttr(attr slog.Attr) string {
	key := attr.Key
	if len(s.groups) > 0 {
		key = strings.Join(s.groups, ".") + "." + key
	}

	return fmt.Sprintf("%s=%v", key, attr.Value.Resolve())
}

// enqueue adds the message, dropping the oldest one when the queue is full.
func (s *ChannelSink) enqueue(message string) {
	select {
	case s.queue <- message:
		return
	default:
	}

	select {
	case <-s.queue:
	default:
	}

	select {
	case s.queue <- message:
	default:
	}
}

func (s *ChannelSink) run() {
	select {
	case <-s.done:
		return
	case <-s.bound:
	}

	for {
		select {
		case <-s.done:
			return
		case message := <-s.queue:
			s.deliver(message)
		}
	}
}

func (s *ChannelSink) deliver(message string) {
	s.bindMu.Lock()
	send := s.send
	s.bindMu.Unlock()

	if send == nil {
		return
	}

	for _, chunk := range chunkMessage(message, sinkMaxChunk) {
		if err := send(chunk); err != nil {
			return // suppressed by contract
		}
	}
}

// chunkMessage splits a message into pieces not exceeding maxLen bytes,
// never cutting inside a multi-byte rune.
func chunkMessage(message string, maxLen int) []string {
	if len(message) <= maxLen {
		return []string{message}
	}

	chunks := make([]string, 0, len(message)/maxLen+1)
	for len(message) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxLen
		}
		chunks = append(chunks, message[:cut])
		message = message[cut:]
	}
	if message != "" {
		chunks = append(chunks, message)
	}

	return chunks
}
