package log

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type sinkCollector struct {
	mu     sync.Mutex
	chunks []string
}

func (c *sinkCollector) send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, text)
	return nil
}

func (c *sinkCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.chunks...)
}

func TestChannelSinkDeliversAfterBind(t *testing.T) {
	sink := NewChannelSink(slog.LevelInfo)
	defer sink.Close()

	logger := slog.New(sink)
	logger.Info("queued before bind", slog.String("user", "alice"))

	collector := &sinkCollector{}
	sink.Bind(collector.send)

	require.Eventually(t, func() bool {
		chunks := collector.snapshot()
		return len(chunks) == 1 &&
			strings.Contains(chunks[0], "queued before bind") &&
			strings.Contains(chunks[0], "user=alice")
	}, time.Second, 10*time.Millisecond)
}

func TestChannelSinkLevelFilter(t *testing.T) {
	sink := NewChannelSink(slog.LevelWarn)
	defer sink.Close()

	require.False(t, sink.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, sink.Enabled(context.Background(), slog.LevelWarn))
	require.True(t, sink.Enabled(context.Background(), slog.LevelError))
}

func TestChannelSinkDropsOldestWhenFull(t *testing.T) {
	sink := NewChannelSink(slog.LevelInfo)
	defer sink.Close()

	for i := 0; i < sinkQueueSize+5; i++ {
		sink.enqueue("message")
	}

	require.Len(t, sink.queue, sinkQueueSize)
}

func TestChannelSinkChunksLongMessages(t *testing.T) {
	long := strings.Repeat("a", sinkMaxChunk*2+10)

	chunks := chunkMessage(long, sinkMaxChunk)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], sinkMaxChunk)
	require.Len(t, chunks[1], sinkMaxChunk)
	require.Len(t, chunks[2], 10)
	require.Equal(t, long, strings.Join(chunks, ""))
}

func TestChannelSinkChunksOnRuneBoundaries(t *testing.T) {
	// 7 bytes per repetition, deliberately misaligned with the chunk size so
	// a naive byte cut would land inside a rune.
	long := strings.Repeat("banéé", sinkMaxChunk/7+50)

	chunks := chunkMessage(long, sinkMaxChunk)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.True(t, utf8.ValidString(chunk))
		require.LessOrEqual(t, len(chunk), sinkMaxChunk)
	}
	require.Equal(t, long, strings.Join(chunks, ""))
}

func TestChannelSinkShortMessageSingleChunk(t *testing.T) {
	chunks := chunkMessage("short", sinkMaxChunk)
	require.Equal(t, []string{"short"}, chunks)
}

func TestChannelSinkWithAttrs(t *testing.T) {
	sink := NewChannelSink(slog.LevelInfo)
	defer sink.Close()

	logger := slog.New(sink).With(slog.String("wave", "w1"))
	logger.Info("row processed")

	collector := &sinkCollector{}
	sink.Bind(collector.send)

	require.Eventually(t, func() bool {
		chunks := collector.snapshot()
		return len(chunks) == 1 && strings.Contains(chunks[0], "wave=w1")
	}, time.Second, 10*time.Millisecond)
}
