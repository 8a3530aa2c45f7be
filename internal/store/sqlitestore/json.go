package sqlitestore

import (
	"encoding/json"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/models"
)

func marshalMetadata(m models.TransitionMetadata) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("sqlitestore: marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(raw string) (models.TransitionMetadata, error) {
	var m models.TransitionMetadata
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("sqlitestore: unmarshal metadata: %w", err)
	}
	return m, nil
}

func marshalFloats(fs []float64) (string, error) {
	if len(fs) == 0 {
		return "", nil
	}
	b, err := json.Marshal(fs)
	if err != nil {
		return "", fmt.Errorf("sqlitestore: marshal trigger samples: %w", err)
	}
	return string(b), nil
}

func unmarshalFloats(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	var fs []float64
	if err := json.Unmarshal([]byte(raw), &fs); err != nil {
		return nil, fmt.Errorf("sqlitestore: unmarshal trigger samples: %w", err)
	}
	return fs, nil
}
