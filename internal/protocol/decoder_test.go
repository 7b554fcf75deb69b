// ABOUTME: Tests for the newline frame decoder
// ABOUTME: Covers chunk boundaries mid-record, multi-record chunks, and residual handling

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameDecoder_SingleCompleteFrame(t *testing.T) {
	d := &FrameDecoder{}

	frames := d.Feed([]byte(`{"type":"end"}` + "\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, `{"type":"end"}`, string(frames[0]))
	assert.Zero(t, d.Residual())
}

func TestFrameDecoder_ChunkBoundaryMidRecord(t *testing.T) {
	d := &FrameDecoder{}

	frames := d.Feed([]byte(`{"type":"conte`))
	assert.Empty(t, frames)
	assert.Positive(t, d.Residual())

	frames = d.Feed([]byte(`nt","content":"Hi"}` + "\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, `{"type":"content","content":"Hi"}`, string(frames[0]))
	assert.Zero(t, d.Residual())
}

func TestFrameDecoder_MultipleFramesInOneChunk(t *testing.T) {
	d := &FrameDecoder{}

	frames := d.Feed([]byte("a\nb\nc\n"))
	require.Len(t, frames, 3)
	assert.Equal(t, "a", string(frames[0]))
	assert.Equal(t, "b", string(frames[1]))
	assert.Equal(t, "c", string(frames[2]))
}

func TestFrameDecoder_MultiByteRuneSplitAcrossChunks(t *testing.T) {
	d := &FrameDecoder{}

	record := []byte(`{"type":"content","content":"héllo"}` + "\n")
	// Split inside the two-byte UTF-8 sequence for é (byte offsets 30-31).
	split := 31

	frames := d.Feed(record[:split])
	assert.Empty(t, frames)

	frames = d.Feed(record[split:])
	require.Len(t, frames, 1)
	assert.Equal(t, `{"type":"content","content":"héllo"}`, string(frames[0]))
}

func TestFrameDecoder_OneByteAtATime(t *testing.T) {
	d := &FrameDecoder{}
	record := `{"type":"content","content":"Hi"}`

	var got []string
	for _, b := range []byte(record + "\n") {
		for _, frame := range d.Feed([]byte{b}) {
			got = append(got, string(frame))
		}
	}

	require.Len(t, got, 1)
	assert.Equal(t, record, got[0])
}

func TestFrameDecoder_FramesSurviveLaterFeeds(t *testing.T) {
	d := &FrameDecoder{}

	frames := d.Feed([]byte("first\n"))
	require.Len(t, frames, 1)

	// Feeding more data must not corrupt the earlier returned frame.
	d.Feed([]byte("second-overwrites-buffer\n"))
	assert.Equal(t, "first", string(frames[0]))
}

func TestFrameDecoder_Reset(t *testing.T) {
	d := &FrameDecoder{}

	d.Feed([]byte("partial"))
	require.Positive(t, d.Residual())

	d.Reset()
	assert.Zero(t, d.Residual())

	frames := d.Feed([]byte("fresh\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, "fresh", string(frames[0]))
}
