package transport

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// compressThreshold is the payload size below which gzip framing overhead
// exceeds the saving, so the payload ships raw.
const compressThreshold = 1 << 10

// Encode gzips payloads above the threshold. The returned encoding is either
// "gzip" or "" for the Content-Encoding header.
func Encode(payload []byte) (body []byte, encoding string) {
	if len(payload) < compressThreshold {
		return payload, ""
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return payload, ""
	}
	if err := w.Close(); err != nil {
		return payload, ""
	}

	// Incompressible payloads ship raw.
	if buf.Len() >= len(payload) {
		return payload, ""
	}
	return buf.Bytes(), "gzip"
}

// Decode reverses Encode for the given Content-Encoding value.
func Decode(body []byte, encoding string) ([]byte, error) {
	if encoding != "gzip" {
		return body, nil
	}

	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
