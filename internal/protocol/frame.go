package protocol

import (
	"bufio"
	"bytes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

const (
	MaxPacketSize = 2097152 // 2MB

	// MaxUncompressedSize bounds the declared size of a compressed body.
	MaxUncompressedSize = 8 << 20
)

// ReadPacket reads one frame. threshold < 0 means compression is off and
// the frame has no data-length field.
func ReadPacket(r io.Reader, threshold int) (*RawPacket, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeFrame(data, threshold)
}

// ReadFrame reads one length-prefixed frame and returns its body without
// interpreting it.
func ReadFrame(r io.Reader) ([]byte, error) {
	// 1. Read Packet Length
	packetLen, err := ReadVarint(r)
	if err != nil {
		return nil, err
	}

	if packetLen <= 0 {
		return nil, ErrInvalidPacket
	}
	if packetLen > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}

	// 2. Read entire packet data
	data := make([]byte, packetLen)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Join(ErrInvalidPacket, err)
	}
	return data, nil
}

// DecodeFrame splits a frame body returned by ReadFrame into id and payload.
func DecodeFrame(data []byte, threshold int) (*RawPacket, error) {
	body := bytes.NewReader(data)

	// 3. Handle Compression
	if threshold >= 0 {
		dataLen, err := ReadVarint(body)
		if err != nil {
			return nil, errors.Join(ErrInvalidPacket, err)
		}
		switch {
		case dataLen < 0:
			return nil, fmt.Errorf("%w: negative data length %d", ErrInvalidPacket, dataLen)
		case dataLen > MaxUncompressedSize:
			return nil, ErrPacketTooLarge
		case dataLen > 0 && int(dataLen) < threshold:
			return nil, fmt.Errorf("%w: compressed body of %d is below threshold %d", ErrInvalidPacket, dataLen, threshold)
		case dataLen > 0:
			decompressed, err := inflate(body, int(dataLen))
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(decompressed)
		}
		// dataLen == 0: the remaining bytes are the uncompressed [ID] [Payload]
	}

	// 4. Parse ID and Payload
	id, err := ReadVarint(body)
	if err != nil {
		return nil, errors.Join(ErrInvalidPacket, err)
	}
	payload := make([]byte, body.Len())
	_, _ = body.Read(payload)
	return &RawPacket{
		ID:      id,
		Payload: payload,
	}, nil
}

func inflate(r io.Reader, size int) ([]byte, error) {
	z, err := zlib.NewReader(r)
	if err != nil {
		return nil, errors.Join(ErrInvalidPacket, err)
	}
	defer z.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(z, out); err != nil {
		return nil, errors.Join(ErrInvalidPacket, fmt.Errorf("inflate: %w", err))
	}
	var extra [1]byte
	if n, _ := z.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("%w: decompressed body exceeds declared size %d", ErrInvalidPacket, size)
	}
	return out, nil
}

// WritePacket writes one frame in a single Write call.
func WritePacket(w io.Writer, packet *RawPacket, threshold int) error {
	frame, err := appendFrame(nil, packet, threshold, nil)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// appendFrame encodes packet as a complete frame. zw is reused for
// compression when not nil.
func appendFrame(dst []byte, packet *RawPacket, threshold int, zw *zlib.Writer) ([]byte, error) {
	// 1. Prepare raw [ID] [Payload]
	var idBuf [MaxVarIntLen]byte
	id := AppendVarint(idBuf[:0], packet.ID)
	uncompressedLen := len(id) + len(packet.Payload)

	if threshold < 0 {
		// Format: [Length] [ID] [Payload]
		if uncompressedLen > MaxPacketSize {
			return nil, ErrPacketTooLarge
		}
		dst = AppendVarint(dst, int32(uncompressedLen))
		dst = append(dst, id...)
		return append(dst, packet.Payload...), nil
	}

	if uncompressedLen < threshold {
		// Format: [Length] [0] [ID] [Payload]
		if uncompressedLen+1 > MaxPacketSize {
			return nil, ErrPacketTooLarge
		}
		dst = AppendVarint(dst, int32(uncompressedLen+1))
		dst = append(dst, 0)
		dst = append(dst, id...)
		return append(dst, packet.Payload...), nil
	}

	if uncompressedLen > MaxUncompressedSize {
		return nil, ErrPacketTooLarge
	}
	var buf bytes.Buffer
	if zw == nil {
		zw = zlib.NewWriter(&buf)
	} else {
		zw.Reset(&buf)
	}
	if _, err := zw.Write(id); err != nil {
		return nil, err
	}
	if _, err := zw.Write(packet.Payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	// Format: [Length] [Data Length] [Compressed ID + Payload]
	dataLen := VarintLen(int32(uncompressedLen))
	total := dataLen + buf.Len()
	if total > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}
	dst = AppendVarint(dst, int32(total))
	dst = AppendVarint(dst, int32(uncompressedLen))
	return append(dst, buf.Bytes()...), nil
}

// FrameReader reads frames from a transport. Decryption, once enabled,
// sits between the buffer and the framing logic, so bytes already buffered
// from the transport are decrypted as they are consumed.
type FrameReader struct {
	buf       *bufio.Reader
	r         io.Reader
	threshold int
}

func NewFrameReader(r io.Reader) *FrameReader {
	br := bufio.NewReader(r)
	return &FrameReader{buf: br, r: br, threshold: -1}
}

func (fr *FrameReader) ReadPacket() (*RawPacket, error) {
	return ReadPacket(fr.r, fr.threshold)
}

// SetThreshold must only be called between frames.
func (fr *FrameReader) SetThreshold(threshold int) {
	fr.threshold = threshold
}

func (fr *FrameReader) Threshold() int {
	return fr.threshold
}

// EnableDecryption must only be called between frames.
func (fr *FrameReader) EnableDecryption(s cipher.Stream) {
	fr.r = &cipher.StreamReader{S: s, R: fr.buf}
}

// FrameWriter writes whole frames. It is safe for concurrent use.
type FrameWriter struct {
	mu        sync.Mutex
	w         io.Writer
	raw       io.Writer
	threshold int
	zw        *zlib.Writer
	scratch   []byte
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, raw: w, threshold: -1}
}

func (fw *FrameWriter) WritePacket(p *RawPacket) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.threshold >= 0 && fw.zw == nil {
		fw.zw = zlib.NewWriter(io.Discard)
	}
	frame, err := appendFrame(fw.scratch[:0], p, fw.threshold, fw.zw)
	if err != nil {
		return err
	}
	fw.scratch = frame
	_, err = fw.w.Write(frame)
	return err
}

func (fw *FrameWriter) SetThreshold(threshold int) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.threshold = threshold
}

func (fw *FrameWriter) EnableEncryption(s cipher.Stream) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.w = &cipher.StreamWriter{S: s, W: fw.raw}
}
