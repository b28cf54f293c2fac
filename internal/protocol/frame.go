package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame layout constants, verified against live captures of S20 sockets
// and AllOne blasters.
const (
	// VendorPort is the UDP port every device listens on. Broadcast
	// discovery, unicast commands and device-originated pushes all use it.
	VendorPort = 10000

	// HeaderSize is the fixed prefix of every frame:
	// magic (2) + length (2) + command code (2).
	HeaderSize = 6

	// MaxFrameSize bounds outgoing frames. The longest frames on the wire
	// are emit frames carrying a learned signal; captures top out well
	// under 400 bytes.
	MaxFrameSize = 1024
)

// Magic is the two-byte constant opening every frame, ASCII "hd".
var Magic = [2]byte{0x68, 0x64}

// Codec errors. Decode distinguishes structurally broken frames from
// frames that are merely cut short, because a short read from the wire
// means something different than garbage from unrelated broadcast traffic.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrTruncatedFrame = errors.New("truncated frame")
)

// Frame is one decoded protocol message. The magic header and the length
// field are codec concerns and never appear here; Command carries the raw
// two-byte code even when it is not one of the known constants, so callers
// decide what counts as unexpected.
type Frame struct {
	Command Command
	Payload []byte
}

// Encode builds a complete frame: magic, big-endian total length, command
// code, payload. Pure function, no I/O. The length field counts the whole
// datagram including the magic and the length field itself.
func Encode(cmd Command, payload []byte) ([]byte, error) {
	total := HeaderSize + len(payload)
	if total > MaxFrameSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d", total, MaxFrameSize)
	}

	frame := make([]byte, total)
	frame[0] = Magic[0]
	frame[1] = Magic[1]
	binary.BigEndian.PutUint16(frame[2:4], uint16(total))
	binary.BigEndian.PutUint16(frame[4:6], uint16(cmd))
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// Decode parses a single datagram into a Frame.
//
// Validation order matters: the magic header is checked first, so any
// datagram from an unrelated protocol fails with ErrMalformedFrame no
// matter how short it is, as long as two bytes arrived. A frame whose
// declared length exceeds the bytes supplied fails with ErrTruncatedFrame;
// a declared length that disagrees with the actual size in any other way
// is ErrMalformedFrame.
//
// Unknown command codes are not an error. The raw code is returned and the
// caller classifies it.
func Decode(data []byte) (*Frame, error) {
	if len(data) >= 2 && (data[0] != Magic[0] || data[1] != Magic[1]) {
		return nil, fmt.Errorf("%w: bad magic 0x%02x%02x", ErrMalformedFrame, data[0], data[1])
	}
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncatedFrame, len(data), HeaderSize)
	}

	declared := int(binary.BigEndian.Uint16(data[2:4]))
	if declared < HeaderSize {
		return nil, fmt.Errorf("%w: declared length %d below header size", ErrMalformedFrame, declared)
	}
	if declared > len(data) {
		return nil, fmt.Errorf("%w: declared length %d, received %d", ErrTruncatedFrame, declared, len(data))
	}
	if declared != len(data) {
		return nil, fmt.Errorf("%w: declared length %d, received %d", ErrMalformedFrame, declared, len(data))
	}

	return &Frame{
		Command: Command(binary.BigEndian.Uint16(data[4:6])),
		Payload: data[HeaderSize:],
	}, nil
}

// String returns a debug representation of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{cmd=%s, payload=%d bytes}", f.Command, len(f.Payload))
}
