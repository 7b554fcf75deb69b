// ABOUTME: FrameDecoder splits a raw byte stream into newline-terminated records
// ABOUTME: Buffers partial frames so chunk boundaries can fall mid-record

package protocol

import "bytes"

// FrameDecoder reassembles newline-delimited records from arbitrary byte
// chunks. A record is only emitted once its terminating newline has been
// observed; anything after the last newline is retained for the next chunk.
//
// The zero value is ready to use. Not safe for concurrent use; each stream
// owns its own decoder.
type FrameDecoder struct {
	buf []byte
}

// Feed appends a chunk to the internal buffer and returns every complete
// record it now contains, in arrival order, without the trailing newline.
// Returned slices are copies and remain valid after the next Feed.
func (d *FrameDecoder) Feed(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		frame := make([]byte, i)
		copy(frame, d.buf[:i])
		frames = append(frames, frame)
		d.buf = d.buf[i+1:]
	}
	return frames
}

// Residual returns the number of buffered bytes that have not yet been
// terminated by a newline. The server contract terminates every record, so
// a non-zero residual at stream end means a truncated record that must be
// discarded rather than interpreted.
func (d *FrameDecoder) Residual() int {
	return len(d.buf)
}

// Reset discards any buffered partial frame.
func (d *FrameDecoder) Reset() {
	d.buf = nil
}
