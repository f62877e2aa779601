package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// EncodeSnapshot serializes a graph record for version storage.
func EncodeSnapshot(rec GraphRecord) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("flow: encode snapshot: %w", err)
	}

	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("flow: creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(raw); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("flow: compressing snapshot: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("flow: closing encoder: %w", err)
	}
	return compressed.Bytes(), nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(b []byte) (GraphRecord, error) {
	var rec GraphRecord
	decoder, err := zstd.NewReader(bytes.NewReader(b))
	if err != nil {
		return rec, fmt.Errorf("flow: creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return rec, fmt.Errorf("flow: decompressing snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("flow: decode snapshot: %w", err)
	}
	return rec, nil
}
