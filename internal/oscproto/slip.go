package oscproto

import "bytes"

// SLIP framing bytes, per spec.md §4.8.
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// SlipEncode double-ends a packet with 0xC0 frame delimiters and
// escapes any literal 0xC0/0xDB bytes within it, per spec.md §4.8's
// "double-ended SLIP framing" rule for the TCP transport.
func SlipEncode(packet []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(slipEnd)
	for _, b := range packet {
		switch b {
		case slipEnd:
			buf.WriteByte(slipEsc)
			buf.WriteByte(slipEscEnd)
		case slipEsc:
			buf.WriteByte(slipEsc)
			buf.WriteByte(slipEscEsc)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(slipEnd)
	return buf.Bytes()
}

// SlipDecoder incrementally reassembles SLIP-framed packets from a
// byte stream, emitting one packet per pair of 0xC0 delimiters it
// observes. The engine itself only ever sends (the TCP transport has no
// read side); the decoder is used by tests to check framed output.
type SlipDecoder struct {
	current bytes.Buffer
	escaped bool
	inFrame bool
}

// Feed appends stream bytes and returns any complete packets decoded
// as a result.
func (d *SlipDecoder) Feed(data []byte) [][]byte {
	var packets [][]byte
	for _, b := range data {
		switch {
		case b == slipEnd:
			if d.inFrame && d.current.Len() > 0 {
				packets = append(packets, append([]byte(nil), d.current.Bytes()...))
				d.current.Reset()
			}
			d.inFrame = true
		case b == slipEsc:
			d.escaped = true
		case d.escaped:
			switch b {
			case slipEscEnd:
				d.current.WriteByte(slipEnd)
			case slipEscEsc:
				d.current.WriteByte(slipEsc)
			default:
				d.current.WriteByte(b)
			}
			d.escaped = false
		default:
			d.current.WriteByte(b)
		}
	}
	return packets
}
