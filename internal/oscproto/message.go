// Package oscproto implements the OSC 1.0 wire codec of spec.md §4.8:
// address/type-tag/argument encoding, bundles with NTP-style timetags,
// and SLIP framing for the TCP transport. It is written directly
// against the byte layout spec.md requires rather than through a
// third-party OSC library, since bit-exactness ("every emitted packet
// parses back to the same address and argument list", spec.md §8
// property 5) is easiest to guarantee over code this small.
package oscproto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Arg is one typed OSC argument. Exactly one of the fields is
// meaningful, selected by Type.
type Arg struct {
	Type byte // 'i', 'f', 's', or 'b'
	Int  int32
	Flt  float32
	Str  string
	Blob []byte
}

// Int32Arg, Float32Arg, StringArg, and BlobArg build typed arguments.
func Int32Arg(v int32) Arg       { return Arg{Type: 'i', Int: v} }
func Float32Arg(v float32) Arg   { return Arg{Type: 'f', Flt: v} }
func StringArg(v string) Arg     { return Arg{Type: 's', Str: v} }
func BlobArg(v []byte) Arg       { return Arg{Type: 'b', Blob: v} }

// Message is one OSC message: an address path and its argument list.
type Message struct {
	Address string
	Args    []Arg
}

// ErrMalformed is returned by Unmarshal and Decode when the input
// cannot be parsed as a well-formed OSC packet, per spec.md §7's
// ProtocolDecode error kind.
var ErrMalformed = errors.New("oscproto: malformed packet")

func pad4(n int) int {
	rem := n % 4
	if rem == 0 {
		return n
	}
	return n + (4 - rem)
}

func writePaddedString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}

// Marshal encodes m per spec.md §4.8: null-terminated address padded to
// 4 bytes, a type-tag string starting with ',', then each argument in
// declared order padded to a 4-byte boundary.
func (m Message) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	writePaddedString(&buf, m.Address)

	tags := make([]byte, 0, len(m.Args)+1)
	tags = append(tags, ',')
	for _, a := range m.Args {
		tags = append(tags, a.Type)
	}
	writePaddedString(&buf, string(tags))

	for _, a := range m.Args {
		switch a.Type {
		case 'i':
			if err := binary.Write(&buf, binary.BigEndian, a.Int); err != nil {
				return nil, err
			}
		case 'f':
			if err := binary.Write(&buf, binary.BigEndian, a.Flt); err != nil {
				return nil, err
			}
		case 's':
			writePaddedString(&buf, a.Str)
		case 'b':
			if err := binary.Write(&buf, binary.BigEndian, int32(len(a.Blob))); err != nil {
				return nil, err
			}
			buf.Write(a.Blob)
			for buf.Len()%4 != 0 {
				buf.WriteByte(0)
			}
		default:
			return nil, fmt.Errorf("oscproto: unsupported arg type %q: %w", a.Type, ErrMalformed)
		}
	}
	return buf.Bytes(), nil
}

// readPaddedString reads a null-terminated, 4-byte-padded string
// starting at offset, returning the string and the offset immediately
// past its padding.
func readPaddedString(data []byte, offset int) (string, int, error) {
	if offset >= len(data) {
		return "", 0, ErrMalformed
	}
	end := bytes.IndexByte(data[offset:], 0)
	if end < 0 {
		return "", 0, ErrMalformed
	}
	s := string(data[offset : offset+end])
	next := pad4(offset + end + 1)
	if next > len(data) {
		return "", 0, ErrMalformed
	}
	return s, next, nil
}

// Unmarshal decodes a single OSC message packet (not a bundle).
func Unmarshal(data []byte) (Message, error) {
	addr, offset, err := readPaddedString(data, 0)
	if err != nil {
		return Message{}, err
	}
	if addr == "" || addr[0] != '/' {
		return Message{}, ErrMalformed
	}

	tags, offset, err := readPaddedString(data, offset)
	if err != nil {
		return Message{}, err
	}
	if len(tags) == 0 || tags[0] != ',' {
		return Message{}, ErrMalformed
	}

	msg := Message{Address: addr}
	for _, t := range tags[1:] {
		switch t {
		case 'i':
			if offset+4 > len(data) {
				return Message{}, ErrMalformed
			}
			v := int32(binary.BigEndian.Uint32(data[offset : offset+4]))
			msg.Args = append(msg.Args, Int32Arg(v))
			offset += 4
		case 'f':
			if offset+4 > len(data) {
				return Message{}, ErrMalformed
			}
			bits := binary.BigEndian.Uint32(data[offset : offset+4])
			msg.Args = append(msg.Args, Float32Arg(float32FromBits(bits)))
			offset += 4
		case 's':
			var s string
			var err error
			s, offset, err = readPaddedString(data, offset)
			if err != nil {
				return Message{}, err
			}
			msg.Args = append(msg.Args, StringArg(s))
		case 'b':
			if offset+4 > len(data) {
				return Message{}, ErrMalformed
			}
			n := int(int32(binary.BigEndian.Uint32(data[offset : offset+4])))
			offset += 4
			if n < 0 || offset+n > len(data) {
				return Message{}, ErrMalformed
			}
			blob := append([]byte(nil), data[offset:offset+n]...)
			offset = pad4(offset + n)
			if offset > len(data) {
				return Message{}, ErrMalformed
			}
			msg.Args = append(msg.Args, BlobArg(blob))
		default:
			return Message{}, ErrMalformed
		}
	}
	return msg, nil
}
