package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrClassMismatch is returned when the metadata's label vocabulary does
	// not match the width of the model output.
	ErrClassMismatch = errors.New("class count does not match output shape")
	// ErrInvalidMetadata wraps any other metadata validation failure.
	ErrInvalidMetadata = errors.New("invalid model metadata")
)

// Metadata describes the exported model: tensor layout, label vocabulary and
// the preprocessing it was trained with.
type Metadata struct {
	InputShape  []int64   `json:"input_shape"`
	OutputShape []int64   `json:"output_shape"`
	Classes     []string  `json:"classes"`
	ImageSize   int       `json:"image_size"`
	InputName   string    `json:"input_name,omitempty"`
	OutputName  string    `json:"output_name,omitempty"`
	Logits      bool      `json:"logits"`
	Mean        []float32 `json:"mean,omitempty"`
	Std         []float32 `json:"std,omitempty"`
}

// ClassificationResult is the body returned by POST /classify.
type ClassificationResult struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// ErrorResponse is the body of every non-200 reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status  string   `json:"status"`
	Classes []string `json:"classes"`
}

// LoadMetadata reads and validates the JSON sidecar at path.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Validate checks the metadata for internal consistency and fills in the
// default tensor names.
func (m *Metadata) Validate() error {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}

	if len(m.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidMetadata)
	}
	seen := make(map[string]struct{}, len(m.Classes))
	for _, c := range m.Classes {
		if c == "" {
			return fmt.Errorf("%w: empty class name", ErrInvalidMetadata)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate class %q", ErrInvalidMetadata, c)
		}
		seen[c] = struct{}{}
	}

	if m.ImageSize <= 0 {
		return fmt.Errorf("%w: image_size must be positive", ErrInvalidMetadata)
	}
	want := int64(channels * m.ImageSize * m.ImageSize)
	if got := elements(m.InputShape); got != want {
		return fmt.Errorf("%w: input shape %v holds %d values, want %d", ErrInvalidMetadata, m.InputShape, got, want)
	}
	if got := elements(m.OutputShape); got != int64(len(m.Classes)) {
		return fmt.Errorf("%w: output shape %v, %d classes", ErrClassMismatch, m.OutputShape, len(m.Classes))
	}

	if len(m.Mean) != len(m.Std) || (len(m.Mean) != 0 && len(m.Mean) != channels) {
		return fmt.Errorf("%w: mean and std need %d values each", ErrInvalidMetadata, channels)
	}
	for _, s := range m.Std {
		if s == 0 {
			return fmt.Errorf("%w: std must be non-zero", ErrInvalidMetadata)
		}
	}
	return nil
}

func elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
