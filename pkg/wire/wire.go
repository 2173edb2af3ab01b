// Package wire implements the fixed-width framing used on every tallier
// peer connection (scalar and vector variants) and the msgid-keyed inbound
// demultiplexer shared by pkg/channel and pkg/clique.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HandshakeSize is the length in bytes of the clique handshake frame:
// 1-byte conn_id followed by a 16-byte election id (§6).
const HandshakeSize = 17

// Handshake is the 17-byte frame exchanged when a tallier connection is
// established, porting the self_id + election_id header written by
// mpc_manager.py's _connect/_react_conn.
type Handshake struct {
	ConnID     byte
	ElectionID [16]byte
}

// Encode writes the handshake to its 17-byte wire form.
func (h Handshake) Encode() [HandshakeSize]byte {
	var buf [HandshakeSize]byte
	buf[0] = h.ConnID
	copy(buf[1:], h.ElectionID[:])
	return buf
}

// DecodeHandshake parses a handshake frame previously produced by Encode.
func DecodeHandshake(buf []byte) (Handshake, error) {
	if len(buf) != HandshakeSize {
		return Handshake{}, fmt.Errorf("wire: handshake must be %d bytes, got %d", HandshakeSize, len(buf))
	}
	var h Handshake
	h.ConnID = buf[0]
	copy(h.ElectionID[:], buf[1:])
	return h, nil
}

// Framer reads and writes data frames of a fixed width S (1 for the scalar
// variant, S for the vector variant) on a byte stream.
type Framer struct {
	width int
}

// NewFramer returns a Framer for payloads of the given width (number of
// uint32 shares per frame, §6). width must be >= 1.
func NewFramer(width int) *Framer {
	if width < 1 {
		width = 1
	}
	return &Framer{width: width}
}

// Width returns the frame's configured payload width.
func (f *Framer) Width() int {
	return f.width
}

// FrameSize returns the encoded size of one frame in bytes: 4 (msgid) + 4*width.
func (f *Framer) FrameSize() int {
	return 4 + 4*f.width
}

// WriteFrame serializes (msgid, values) to w, zero-padding values up to the
// framer's width and truncating any excess, porting MultiTallier.write's
// padding behaviour.
func (f *Framer) WriteFrame(w io.Writer, msgid uint32, values []uint32) error {
	buf := make([]byte, f.FrameSize())
	binary.BigEndian.PutUint32(buf[0:4], msgid)
	n := len(values)
	if n > f.width {
		n = f.width
	}
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint32(buf[4+4*i:8+4*i], values[i])
	}
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame from r, returning the msgid and its width-sized
// payload.
func (f *Framer) ReadFrame(r io.Reader) (uint32, []uint32, error) {
	buf := make([]byte, f.FrameSize())
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, err
	}
	msgid := binary.BigEndian.Uint32(buf[0:4])
	values := make([]uint32, f.width)
	for i := 0; i < f.width; i++ {
		values[i] = binary.BigEndian.Uint32(buf[4+4*i : 8+4*i])
	}
	return msgid, values, nil
}
