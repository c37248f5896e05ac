package control

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// EncodeModel compresses model bytes and base64-encodes them for transport
// inside a JSON envelope. Empty input encodes to the empty string, which the
// control loop treats as an absent payload.
func EncodeModel(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("compress model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress model: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeModel reverses EncodeModel. The empty string decodes to nil.
func DecodeModel(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress model: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress model: %w", err)
	}
	return data, nil
}
