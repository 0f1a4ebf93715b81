package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/simworld/server/internal/net/packet"
)

// ErrFrameSize is returned for empty frames and frames whose payload would
// exceed packet.MaxPayload.
var ErrFrameSize = errors.New("control frame size out of range")

// frameHeader is the little-endian length prefix, which counts itself.
const frameHeader = 2

// ReadFrame reads one control frame from r and returns its payload: the
// opcode byte followed by the packet body. A peer announcing an impossible
// length gets ErrFrameSize before any payload is read.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeader]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	total := int(binary.LittleEndian.Uint16(header[:]))
	n := total - frameHeader
	if n <= 0 || n > packet.MaxPayload {
		return nil, fmt.Errorf("frame length %d: %w", total, ErrFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", n, err)
	}
	return payload, nil
}

// WriteFrame writes payload as one control frame. Handlers size their
// replies against packet.MaxPayload; anything larger is refused here
// rather than split.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 || len(payload) > packet.MaxPayload {
		return fmt.Errorf("payload length %d: %w", len(payload), ErrFrameSize)
	}
	var header [frameHeader]byte
	binary.LittleEndian.PutUint16(header[:], uint16(len(payload)+frameHeader))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}
