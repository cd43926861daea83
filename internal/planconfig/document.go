package planconfig

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

func isBlank(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ParseDocument decodes a plan configuration document. Empty input and JSON
// null decode to nil.
func ParseDocument(data []byte) (*PlanConfiguration, error) {
	if isBlank(data) {
		return nil, nil
	}
	var cfg PlanConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("planconfig: decode document: %w", err)
	}
	return &cfg, nil
}

// ParsePatch decodes an override patch. Empty input is an empty patch.
func ParsePatch(data []byte) (Patch, error) {
	if isBlank(data) {
		return Patch{}, nil
	}
	var patch Patch
	if err := json.Unmarshal(data, &patch); err != nil {
		return Patch{}, fmt.Errorf("planconfig: decode patch: %w", err)
	}
	return patch, nil
}

// MarshalDocument encodes a plan configuration document.
func MarshalDocument(cfg *PlanConfiguration) ([]byte, error) {
	if cfg == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("planconfig: encode document: %w", err)
	}
	return data, nil
}

// MarshalPatch encodes an override patch.
func MarshalPatch(patch Patch) ([]byte, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("planconfig: encode patch: %w", err)
	}
	return data, nil
}
