package rsyncwire

import (
	"encoding/binary"
	"fmt"
	"io"

	rsync "github.com/ocrsync/rsync"
	"github.com/ocrsync/rsync/internal/rsyncerr"
)

// EncodeHeader packs a multiplex header: the low 24 bits carry the
// little-endian payload length, the high byte carries the tag
// (rsync.MplexBase + code).
func EncodeHeader(code rsync.MessageCode, payloadLen int) ([4]byte, error) {
	var hdr [4]byte
	if payloadLen < 0 || payloadLen > rsync.MaxPayloadLength {
		return hdr, &rsyncerr.InvalidArgument{Detail: fmt.Sprintf("payload length %d exceeds MaxPayloadLength", payloadLen)}
	}
	v := uint32(payloadLen) | uint32(rsync.MplexBase+int(code))<<24
	binary.LittleEndian.PutUint32(hdr[:], v)
	return hdr, nil
}

// DecodeHeader unpacks a 4-byte multiplex header into a code and payload
// length, validating that the tag is at least MplexBase.
func DecodeHeader(hdr [4]byte) (code rsync.MessageCode, payloadLen int, err error) {
	v := binary.LittleEndian.Uint32(hdr[:])
	payloadLen = int(v & 0x00FFFFFF)
	tag := byte(v >> 24)
	if int(tag) < rsync.MplexBase {
		return 0, 0, &rsyncerr.ProtocolViolation{Detail: fmt.Sprintf("multiplex tag %d below MPLEX_BASE (%d)", tag, rsync.MplexBase)}
	}
	return rsync.MessageCode(int(tag) - rsync.MplexBase), payloadLen, nil
}

// SendMsg writes one multiplex frame: header then payload, retrying
// partial writes; a write that makes no progress and returns no error is
// reported as io.ErrShortWrite.
func SendMsg(w io.Writer, code rsync.MessageCode, payload []byte) error {
	hdr, err := EncodeHeader(code, len(payload))
	if err != nil {
		return err
	}

	if wv, ok := w.(io.Writer); ok {
		// Prefer a single combined write when possible (cheap optimization;
		// most io.Writers do not expose vectored writes in the stdlib so we
		// fall back to writing header+payload as one buffer when small).
		if len(payload) <= 4096 {
			buf := make([]byte, 0, 4+len(payload))
			buf = append(buf, hdr[:]...)
			buf = append(buf, payload...)
			return writeFullRetrying(wv, buf)
		}
	}

	if err := writeFullRetrying(w, hdr[:]); err != nil {
		return err
	}
	return writeFullRetrying(w, payload)
}

func writeFullRetrying(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if n == 0 && err == nil {
			return io.ErrShortWrite
		}
		buf = buf[n:]
		if err != nil {
			if isInterruptedErr(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func isInterruptedErr(err error) bool {
	type temporary interface{ Temporary() bool }
	t, ok := err.(temporary)
	return ok && t.Temporary()
}

// RecvMsg reads exactly one multiplex frame from r.
func RecvMsg(r io.Reader) (code rsync.MessageCode, payload []byte, err error) {
	var hdr [4]byte
	if err := readFullRetrying(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	c, payloadLen, err := DecodeHeader(hdr)
	if err != nil {
		return 0, nil, err
	}
	payload = make([]byte, payloadLen)
	if err := readFullRetrying(r, payload); err != nil {
		return 0, nil, fmt.Errorf("reading %d-byte payload: %w", payloadLen, err)
	}
	return c, payload, nil
}

func readFullRetrying(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// MultiplexWriter wraps an io.Writer, framing every Write call as a DATA
// message, and exposes WriteMsg for sending out-of-band frames (Info,
// Warning, Error, ...).
type MultiplexWriter struct {
	Writer io.Writer
}

func (w *MultiplexWriter) Write(p []byte) (int, error) {
	if err := SendMsg(w.Writer, rsync.MsgData, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteMsg sends an out-of-band (non-DATA) frame.
func (w *MultiplexWriter) WriteMsg(code rsync.MessageCode, payload []byte) error {
	return SendMsg(w.Writer, code, payload)
}

// FrameHandler is invoked for every non-DATA frame MplexReader encounters.
type FrameHandler func(code rsync.MessageCode, payload []byte)

const defaultMplexBufSize = 32 * 1024

// MplexReader wraps a byte source that speaks the post-handshake
// multiplexed protocol, transparently demultiplexing: Read returns at most
// one DATA message's worth of bytes per call, while every other frame code
// is routed to a user-installed handler and otherwise consumed silently.
//
// Reading directly from the wrapped reader instead of through MplexReader
// will desynchronize the frame boundary and corrupt the stream; use
// GetRef/GetMut/IntoInner only to hand the connection off entirely.
type MplexReader struct {
	inner   io.Reader
	handler FrameHandler

	pending []byte // unread remainder of the current DATA frame
}

// NewMplexReader wraps inner, routing non-DATA frames to handler (which may
// be nil to discard them).
func NewMplexReader(inner io.Reader, handler FrameHandler) *MplexReader {
	return &MplexReader{inner: inner, handler: handler}
}

func (m *MplexReader) Read(p []byte) (int, error) {
	for len(m.pending) == 0 {
		code, payload, err := RecvMsg(m.inner)
		if err != nil {
			return 0, err
		}
		if code == rsync.MsgData {
			m.pending = payload
			break
		}
		if m.handler != nil {
			m.handler(code, payload)
		}
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

// GetRef returns the wrapped reader without taking ownership.
func (m *MplexReader) GetRef() io.Reader { return m.inner }

// GetMut returns the wrapped reader for direct (stream-corrupting) access;
// documented as unsafe to use concurrently with Read.
func (m *MplexReader) GetMut() io.Reader { return m.inner }

// IntoInner returns the wrapped reader, relinquishing any buffered pending
// DATA bytes (which are discarded — callers that need them should drain
// Read to empty first).
func (m *MplexReader) IntoInner() io.Reader {
	inner := m.inner
	m.inner = nil
	m.pending = nil
	return inner
}

// DefaultMplexBufSize is the recommended buffer size for callers reading
// through an MplexReader.
const DefaultMplexBufSize = defaultMplexBufSize
