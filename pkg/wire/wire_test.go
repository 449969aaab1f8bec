package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidRoom(t *testing.T) {
	for _, room := range []string{"global", "study-42", "cs101.section:2", "a", strings.Repeat("r", MaxRoomLen)} {
		assert.True(t, ValidRoom(room), room)
	}
	for _, room := range []string{"", "has space", "emoji😀", "slash/room", strings.Repeat("r", MaxRoomLen+1)} {
		assert.False(t, ValidRoom(room), room)
	}
}

func TestValidContent(t *testing.T) {
	trimmed, ok := ValidContent("  hello  ")
	assert.True(t, ok)
	assert.Equal(t, "hello", trimmed)

	_, ok = ValidContent("   ")
	assert.False(t, ok)

	// limit counts characters, not bytes
	_, ok = ValidContent(strings.Repeat("界", MaxContentLen))
	assert.True(t, ok)
	_, ok = ValidContent(strings.Repeat("界", MaxContentLen+1))
	assert.False(t, ok)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		Event:   EventSend,
		Seq:     "seq-1",
		Room:    "global",
		Content: "hello",
		Attachment: &Attachment{
			URL: "http://files/x.png", Name: "x.png", Size: 42, MimeType: "image/png",
		},
	}
	decoded, err := Decode(env.Encode())
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	_, err = Decode([]byte("{not json"))
	assert.Error(t, err)
}
