package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Notes:
//   - For the identifier-to-vector map persisted by the store, JSON is stable
//     and portable across versions and languages.
//   - If you need the most portable/lowest-dependency option, use JSON.
//   - The library default may change over time; persisted data always records
//     the codec name so it can be validated on load.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
