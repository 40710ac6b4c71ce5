// Package storage implements the namespaced key-value persistence layer
// for prepcoach state managers. Values are JSON-serialized entity
// snapshots wrapped in a versioned record envelope.
package storage

import (
	"encoding/json"
	"fmt"
)

// Adapter is the persistence collaborator contract. Implementations hold
// no business logic; managers own serialization and key choice.
type Adapter interface {
	// Get returns the stored value for key. The bool reports whether the
	// key exists; a missing key is not an error.
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any existing value.
	Set(key, value string) error

	// Remove deletes key. Removing a missing key is a no-op.
	Remove(key string) error

	// RemoveMany deletes all given keys in one operation.
	RemoveMany(keys []string) error

	// Close releases adapter resources.
	Close() error
}

// RecordVersion is the current envelope version for persisted records.
// Bump when a record's JSON shape changes and add a migration path in
// DecodeRecord.
const RecordVersion = 1

// envelope wraps every persisted record with a schema version so future
// shape changes have a migration path.
type envelope struct {
	V    int             `json:"v"`
	Data json.RawMessage `json:"data"`
}

// EncodeRecord wraps payload in a versioned envelope and serializes it.
func EncodeRecord(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	env, err := json.Marshal(envelope{V: RecordVersion, Data: data})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return string(env), nil
}

// DecodeRecord unwraps a versioned envelope into payload. Records written
// before the envelope was introduced (bare JSON objects without a "v"
// field) are decoded as-is.
func DecodeRecord(value string, payload interface{}) error {
	var env envelope
	if err := json.Unmarshal([]byte(value), &env); err == nil && env.V > 0 {
		if env.V > RecordVersion {
			return fmt.Errorf("record version %d is newer than supported %d", env.V, RecordVersion)
		}
		return json.Unmarshal(env.Data, payload)
	}
	// Legacy record without envelope
	return json.Unmarshal([]byte(value), payload)
}
