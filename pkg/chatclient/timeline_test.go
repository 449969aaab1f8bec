package chatclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campus_chat_service/pkg/wire"
)

func msg(id string, ts int64) wire.Message {
	return wire.Message{ID: id, Room: "global", UserID: "u", Content: "m-" + id, CreatedAt: ts}
}

func ids(msgs []wire.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestTimelineAppendDedup(t *testing.T) {
	tl := NewTimeline()
	assert.True(t, tl.Append(msg("a", 10)))
	assert.True(t, tl.Append(msg("b", 20)))
	assert.False(t, tl.Append(msg("a", 10)))
	assert.Equal(t, []string{"a", "b"}, ids(tl.Messages()))
	assert.Equal(t, 2, tl.Len())
}

func TestTimelineMergeHistorySorts(t *testing.T) {
	tl := NewTimeline()
	// live messages arrive first, history fills in behind them
	tl.Append(msg("live-1", 50))
	tl.Append(msg("live-2", 60))
	tl.MergeHistory([]wire.Message{
		msg("old-1", 10),
		msg("old-2", 30),
		msg("live-1", 50), // overlap with live arrival collapses
	})
	assert.Equal(t, []string{"old-1", "old-2", "live-1", "live-2"}, ids(tl.Messages()))
}

func TestTimelineMergeTiebreakByID(t *testing.T) {
	tl := NewTimeline()
	tl.MergeHistory([]wire.Message{msg("b", 10), msg("a", 10)})
	assert.Equal(t, []string{"a", "b"}, ids(tl.Messages()))
}

func TestTimelineMessagesIsACopy(t *testing.T) {
	tl := NewTimeline()
	tl.Append(msg("a", 10))
	view := tl.Messages()
	view[0].Content = "mutated"
	assert.Equal(t, "m-a", tl.Messages()[0].Content)
}
