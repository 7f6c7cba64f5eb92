// Package wire implements the compact binary layout used on cross-program
// invocations: an 8-byte method discriminator followed by length-prefixed
// little-endian fields. The layout is fixed by the on-wire protocol the
// router speaks and must not change shape.
package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

const DiscriminatorSize = 8

var (
	ErrShortBuffer     = errors.New("wire: buffer too short")
	ErrFieldTooLarge   = errors.New("wire: field exceeds u32 length prefix")
	ErrWrongMethodTag  = errors.New("wire: method discriminator mismatch")
	ErrTrailingGarbage = errors.New("wire: trailing bytes after payload")
)

// Discriminator derives the 8-byte routing tag for a method: the first 8
// bytes of SHA-256 over "global:<method>".
func Discriminator(method string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("global:" + method))
	var tag [DiscriminatorSize]byte
	copy(tag[:], sum[:DiscriminatorSize])
	return tag
}

// AppendString appends a u32-length-prefixed UTF-8 string.
func AppendString(buf []byte, value string) ([]byte, error) {
	return AppendBytes(buf, []byte(value))
}

// AppendBytes appends a u32-length-prefixed byte field.
func AppendBytes(buf []byte, value []byte) ([]byte, error) {
	if uint64(len(value)) > uint64(^uint32(0)) {
		return nil, ErrFieldTooLarge
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	return append(buf, value...), nil
}

// EncodeCallback builds the full callback instruction data:
// discriminator("llm_callback") || request_id || payload.
func EncodeCallback(requestID string, payload []byte) ([]byte, error) {
	tag := Discriminator("llm_callback")
	buf := make([]byte, 0, DiscriminatorSize+4+len(requestID)+4+len(payload))
	buf = append(buf, tag[:]...)
	buf, err := AppendString(buf, requestID)
	if err != nil {
		return nil, err
	}
	return AppendBytes(buf, payload)
}

// DecodeCallback parses callback instruction data produced by EncodeCallback.
// The discriminator is checked before any field is read so a misrouted
// instruction fails fast.
func DecodeCallback(data []byte) (requestID string, payload []byte, err error) {
	if len(data) < DiscriminatorSize {
		return "", nil, ErrShortBuffer
	}
	tag := Discriminator("llm_callback")
	for i := 0; i < DiscriminatorSize; i++ {
		if data[i] != tag[i] {
			return "", nil, ErrWrongMethodTag
		}
	}
	rest := data[DiscriminatorSize:]

	idBytes, rest, err := readBytes(rest)
	if err != nil {
		return "", nil, fmt.Errorf("wire: request_id: %w", err)
	}
	payload, rest, err = readBytes(rest)
	if err != nil {
		return "", nil, fmt.Errorf("wire: payload: %w", err)
	}
	if len(rest) != 0 {
		return "", nil, ErrTrailingGarbage
	}
	return string(idBytes), payload, nil
}

func readBytes(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, ErrShortBuffer
	}
	size := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(size) {
		return nil, nil, ErrShortBuffer
	}
	return buf[:size], buf[size:], nil
}
