package oscproto

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

func float32FromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

// bundleTag is the literal 8-byte bundle marker, per spec.md §4.8.
const bundleTag = "#bundle\x00"

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// Bundle is a timetagged group of messages, sent "as one bundle when
// more than one message is pending in the same tick", per spec.md §4.8.
type Bundle struct {
	Time     time.Time
	Messages []Message
}

// ntpTimetag converts t to the 64-bit NTP-style fixed-point timestamp
// OSC bundles use: the upper 32 bits are seconds since the NTP epoch,
// the lower 32 bits are a binary fraction of a second.
func ntpTimetag(t time.Time) uint64 {
	secs := uint64(t.Unix()+ntpEpochOffset) << 32
	frac := uint64((t.Nanosecond()) * (1 << 32) / 1e9)
	return secs | frac
}

func timeFromNTP(tag uint64) time.Time {
	secs := int64(tag>>32) - ntpEpochOffset
	frac := tag & 0xffffffff
	nanos := int64(frac * 1e9 / (1 << 32))
	return time.Unix(secs, nanos).UTC()
}

// Marshal encodes a bundle per spec.md §4.8: the "#bundle\0" tag, the
// NTP timetag, then each element size-prefixed.
func (b Bundle) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(bundleTag)
	if err := binary.Write(&buf, binary.BigEndian, ntpTimetag(b.Time)); err != nil {
		return nil, err
	}
	for _, m := range b.Messages {
		encoded, err := m.Marshal()
		if err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, int32(len(encoded))); err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	return buf.Bytes(), nil
}

// UnmarshalBundle decodes a bundle packet. Nested bundles (an element
// itself a "#bundle\0" blob) are not supported, matching the engine's
// own emission (it never nests).
func UnmarshalBundle(data []byte) (Bundle, error) {
	if len(data) < 16 || string(data[:8]) != bundleTag {
		return Bundle{}, ErrMalformed
	}
	tag := binary.BigEndian.Uint64(data[8:16])
	b := Bundle{Time: timeFromNTP(tag)}

	offset := 16
	for offset < len(data) {
		if offset+4 > len(data) {
			return Bundle{}, ErrMalformed
		}
		size := int(int32(binary.BigEndian.Uint32(data[offset : offset+4])))
		offset += 4
		if size < 0 || offset+size > len(data) {
			return Bundle{}, ErrMalformed
		}
		msg, err := Unmarshal(data[offset : offset+size])
		if err != nil {
			return Bundle{}, err
		}
		b.Messages = append(b.Messages, msg)
		offset += size
	}
	return b, nil
}

// IsBundle reports whether data looks like a bundle packet rather than
// a bare message, per the "#bundle\0" vs "/..." address discriminator
// OSC 1.0 defines.
func IsBundle(data []byte) bool {
	return len(data) >= 8 && string(data[:8]) == bundleTag
}

// Decode dispatches on IsBundle and returns either a single-element
// Bundle (for a bare message) or the decoded Bundle, so a transport
// reader can handle both uniformly.
func Decode(data []byte) (Bundle, error) {
	if IsBundle(data) {
		return UnmarshalBundle(data)
	}
	msg, err := Unmarshal(data)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Messages: []Message{msg}}, nil
}
