package model

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// PayloadFormatV1 is the current payload envelope version.
//
// Layout:
//
//	[1 byte version][uvarint body length][JSON body][32 byte BLAKE2b-256 of body]
const PayloadFormatV1 byte = 1

const digestSize = blake2b.Size256

// ErrMalformedPayload is returned when a stored payload cannot be decoded
// back into a Request: unknown version, truncation, or digest mismatch.
var ErrMalformedPayload = errors.New("malformed request payload")

// EncodeRequest serializes r into a versioned payload.
// A nil Header, Body or Meta decodes as nil and an empty one as empty.
func EncodeRequest(r *Request) ([]byte, error) {
	if r == nil {
		return nil, errors.New("cannot encode nil request")
	}

	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}

	buf := make([]byte, 0, 1+binary.MaxVarintLen64+len(body)+digestSize)
	buf = append(buf, PayloadFormatV1)
	buf = binary.AppendUvarint(buf, uint64(len(body)))
	buf = append(buf, body...)
	sum := blake2b.Sum256(body)
	buf = append(buf, sum[:]...)

	return buf, nil
}

// DecodeRequest parses a payload produced by EncodeRequest.
// Every failure wraps ErrMalformedPayload.
func DecodeRequest(data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if data[0] != PayloadFormatV1 {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrMalformedPayload, data[0])
	}

	length, n := binary.Uvarint(data[1:])
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad length prefix", ErrMalformedPayload)
	}

	rest := data[1+n:]
	if uint64(len(rest)) < digestSize || uint64(len(rest))-digestSize != length {
		return nil, fmt.Errorf("%w: expected %d body bytes, have %d", ErrMalformedPayload, length, len(rest))
	}

	body := rest[:length]
	want := rest[length:]
	sum := blake2b.Sum256(body)
	if !bytes.Equal(sum[:], want) {
		return nil, fmt.Errorf("%w: digest mismatch", ErrMalformedPayload)
	}

	var r Request
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if r.URL == "" {
		return nil, fmt.Errorf("%w: missing URL", ErrMalformedPayload)
	}

	return &r, nil
}
