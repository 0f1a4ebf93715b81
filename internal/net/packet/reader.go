package packet

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortPacket is reported by Err when a read ran past the payload.
var ErrShortPacket = errors.New("short packet")

// Reader reads control packet fields from a payload. Byte 0 is always the
// opcode. Reads past the end return zero values and set Err.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip opcode byte
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// Err returns ErrShortPacket if any read ran out of data.
func (r *Reader) Err() error { return r.err }

func (r *Reader) need(n int) bool {
	if r.off+n > len(r.data) {
		r.err = ErrShortPacket
		r.off = len(r.data)
		return false
	}
	return true
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadBool reads one byte; non-zero is true.
func (r *Reader) ReadBool() bool {
	return r.ReadC() != 0
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	if !r.need(4) {
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadF reads an IEEE 754 float64 in little-endian order.
func (r *Reader) ReadF() float64 {
	return math.Float64frombits(r.ReadQ())
}

// ReadS reads a null-terminated UTF-8 string. A missing terminator takes the
// rest of the payload.
func (r *Reader) ReadS() string {
	start := r.off
	for r.off < len(r.data) {
		if r.data[r.off] == 0 {
			s := string(r.data[start:r.off])
			r.off++ // skip null terminator
			return s
		}
		r.off++
	}
	return string(r.data[start:r.off])
}

// ReadBlob reads a 4-byte length followed by that many bytes.
func (r *Reader) ReadBlob() []byte {
	n := int(uint32(r.ReadD()))
	if r.err != nil {
		return nil
	}
	return r.ReadBytes(n)
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if n < 0 || !r.need(n) {
		r.err = ErrShortPacket
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
