// Package protocol decodes a length-framed binary market-data stream into
// domain.Event values. Framing follows a MoldUDP64-style layout: a 20-byte
// packet header followed by a count-prefixed sequence of length-prefixed
// messages. All multi-byte integers are big-endian.
package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/olyamironova/itch-replay/internal/domain"
	"github.com/olyamironova/itch-replay/internal/report"
)

const (
	headerSize      = 20
	maxMessageCount  = 10000
	maxMessageLength = 65535
)

// Decoder pulls framed packets off an io.Reader and decodes each one into a
// slice of events. It keeps a single reusable scratch buffer across calls,
// sized to the protocol's maximum message length and never shrunk — its
// ownership never escapes the Decoder.
type Decoder struct {
	r      *bufio.Reader
	log    *report.Writer
	scratch []byte
	header  [headerSize]byte
	lenbuf  [2]byte
}

// New constructs a Decoder reading from r. log receives [WARN] lines for
// recoverable frame/message corruption; it may be nil in tests that do not
// care about warnings.
func New(r io.Reader, log *report.Writer) *Decoder {
	return &Decoder{
		r:       bufio.NewReader(r),
		log:     log,
		scratch: make([]byte, 0, maxMessageLength),
	}
}

func (d *Decoder) warn(format string, args ...any) {
	if d.log != nil {
		d.log.Warnf(format, args...)
	}
}

// NextPacket reads and decodes the next packet. It returns (nil, io.EOF) at
// a clean end of stream, and (nil, nil) for a discarded packet (invalid
// message count, or a header cut short by the end of the stream). A packet
// truncated after its header yields the events decoded before the
// truncation, with a nil error. Both are normal, recoverable outcomes the
// caller simply loops past (the next call will observe the real end of
// stream once the reader is drained). Any other non-nil error means the underlying reader
// itself failed, which is the only condition a caller must treat as fatal.
func (d *Decoder) NextPacket() ([]domain.Event, error) {
	if _, err := io.ReadFull(d.r, d.header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// Partial header: treat like any other truncated frame, not
			// a hard failure of the stream.
			return nil, nil
		}
		return nil, fmt.Errorf("protocol: read packet header: %w", err)
	}

	count := binary.BigEndian.Uint16(d.header[18:20])
	if count == 0 || int(count) > maxMessageCount {
		d.warn("invalid message count: %d", count)
		return nil, nil
	}

	events := make([]domain.Event, 0, count)
	for i := uint16(0); i < count; i++ {
		if _, err := io.ReadFull(d.r, d.lenbuf[:]); err != nil {
			d.warn("short read on message length")
			break
		}
		msgLen := binary.BigEndian.Uint16(d.lenbuf[:])
		if msgLen < 1 || int(msgLen) > maxMessageLength {
			d.warn("invalid message length: %d", msgLen)
			break
		}

		if cap(d.scratch) < int(msgLen) {
			d.scratch = make([]byte, msgLen)
		}
		d.scratch = d.scratch[:msgLen]
		if _, err := io.ReadFull(d.r, d.scratch); err != nil {
			d.warn("short read on payload")
			break
		}

		ev, ok := decodeMessage(d.scratch)
		if !ok {
			d.warn("unknown message type: 0x%02x", d.scratch[0])
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

// decodeMessage parses a single message body (kind byte + payload). It
// returns ok=false for an unrecognized kind byte or a payload too short
// for its kind; the caller treats both as "skip this one message, keep
// going."
func decodeMessage(msg []byte) (domain.Event, bool) {
	var ev domain.Event
	if len(msg) < 1 {
		return ev, false
	}

	kind := domain.ParseKind(msg[0])
	ev.Kind = kind
	body := msg[1:]

	switch kind {
	case domain.KindStateChange:
		const need = 4 + 4 + 20
		if len(body) < need {
			return ev, false
		}
		ev.Nanosec = binary.BigEndian.Uint32(body[0:4])
		ev.InstrumentID = binary.BigEndian.Uint32(body[4:8])
		ev.State = trimTrailingSpaces(body[8:28])
		return ev, true

	case domain.KindAddOrder:
		const need = 4 + 8 + 4 + 1 + 4 + 8 + 4 + 2 + 1 + 8
		if len(body) < need {
			return ev, false
		}
		off := 0
		ev.Nanosec = binary.BigEndian.Uint32(body[off:])
		off += 4
		ev.OrderID = binary.BigEndian.Uint64(body[off:])
		off += 8
		ev.InstrumentID = binary.BigEndian.Uint32(body[off:])
		off += 4
		ev.Side = domain.ParseSide(body[off])
		off++
		ev.RankingSeq = binary.BigEndian.Uint32(body[off:])
		off += 4
		ev.Quantity = binary.BigEndian.Uint64(body[off:])
		off += 8
		ev.Price = binary.BigEndian.Uint32(body[off:])
		off += 4
		off += 2 // order attributes, skipped
		off++    // lot type, skipped
		ev.RankingTime = binary.BigEndian.Uint64(body[off:])
		return ev, true

	case domain.KindExecuteOrder:
		const need = 4 + 8 + 4 + 1 + 8
		if len(body) < need {
			return ev, false
		}
		off := 0
		ev.Nanosec = binary.BigEndian.Uint32(body[off:])
		off += 4
		ev.OrderID = binary.BigEndian.Uint64(body[off:])
		off += 8
		ev.InstrumentID = binary.BigEndian.Uint32(body[off:])
		off += 4
		ev.Side = domain.ParseSide(body[off])
		off++
		ev.Quantity = binary.BigEndian.Uint64(body[off:])
		// match id, combo group id, and two reserved fields are present
		// on the wire but carry nothing the strategy or book needs; they
		// are intentionally left unread here, mirroring the original
		// parser's "consume remaining fields if present" tolerance for
		// a trailing payload shorter than the full layout.
		return ev, true

	case domain.KindDeleteOrder:
		const need = 4 + 8 + 4 + 1
		if len(body) < need {
			return ev, false
		}
		off := 0
		ev.Nanosec = binary.BigEndian.Uint32(body[off:])
		off += 4
		ev.OrderID = binary.BigEndian.Uint64(body[off:])
		off += 8
		ev.InstrumentID = binary.BigEndian.Uint32(body[off:])
		off += 4
		ev.Side = domain.ParseSide(body[off])
		return ev, true

	default:
		return ev, false
	}
}

func trimTrailingSpaces(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}
