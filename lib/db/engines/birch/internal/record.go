package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Record (one line in a segment)
// --------------------------------------------------------------------------

// Record is a single persisted write. On disk it is one line holding the JSON
// array [timestamp, key, value].
type Record[K comparable, V any] struct {
	Timestamp float64 // seconds since epoch
	Key       K
	Value     V
}

func (r Record[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Timestamp, r.Key, r.Value})
}

func (r *Record[K, V]) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 3 {
		return fmt.Errorf("record has %d fields, expected 3", len(fields))
	}

	if err := json.Unmarshal(fields[0], &r.Timestamp); err != nil {
		return fmt.Errorf("record timestamp: %w", err)
	}
	if err := json.Unmarshal(fields[1], &r.Key); err != nil {
		return fmt.Errorf("record key: %w", err)
	}
	if err := json.Unmarshal(fields[2], &r.Value); err != nil {
		return fmt.Errorf("record value: %w", err)
	}
	return nil
}

// EncodeRecord serializes r into a single newline terminated line.
// JSON escapes control characters, so the line never contains an inner newline.
func EncodeRecord[K comparable, V any](r Record[K, V]) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRecord parses a line produced by EncodeRecord. A trailing newline is optional.
func DecodeRecord[K comparable, V any](line []byte) (Record[K, V], error) {
	var r Record[K, V]
	if err := json.Unmarshal(bytes.TrimSuffix(line, []byte{'\n'}), &r); err != nil {
		return r, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}
