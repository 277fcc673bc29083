package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrLabelOutOfRange is returned when an item's integer label has no
	// entry in the vocabulary.
	ErrLabelOutOfRange = errors.New("label out of range")
	// ErrUnsafeLabel is returned for label names that cannot be used as a
	// single directory name.
	ErrUnsafeLabel = errors.New("label is not a safe directory name")
	// ErrNoClassLabel is returned when a split exposes no ClassLabel feature.
	ErrNoClassLabel = errors.New("no class label feature")
	// ErrNoImageFeature is returned when a split exposes no Image feature.
	ErrNoImageFeature = errors.New("no image feature")
	// ErrMissingLabel is returned for rows whose label cell is null.
	ErrMissingLabel = errors.New("missing label")
)

// Vocabulary is the ordered list of human-readable class names.
type Vocabulary []string

// Name resolves an integer label to its class name.
func (v Vocabulary) Name(label int) (string, error) {
	if label < 0 || label >= len(v) {
		return "", fmt.Errorf("%w: %d not in [0,%d)", ErrLabelOutOfRange, label, len(v))
	}
	return v[label], nil
}

// RowsPage is one page of the datasets-server /rows response.
type RowsPage struct {
	Features     []Feature `json:"features"`
	Rows         []Row     `json:"rows"`
	NumRowsTotal int       `json:"num_rows_total"`
	Partial      bool      `json:"partial"`
}

type Feature struct {
	Index int         `json:"feature_idx"`
	Name  string      `json:"name"`
	Type  FeatureType `json:"type"`
}

type FeatureType struct {
	Kind  string   `json:"_type"`
	Names []string `json:"names,omitempty"`
}

type Row struct {
	Index int                        `json:"row_idx"`
	Cells map[string]json.RawMessage `json:"row"`
}

// ImageCell is how datasets-server renders an Image feature.
type ImageCell struct {
	Src    string `json:"src"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Item is one labeled image reference in a split.
type Item struct {
	Index    int
	Label    int
	ImageURL string
}

// ClassLabel returns the name of the first ClassLabel feature and its
// vocabulary.
func (p *RowsPage) ClassLabel() (string, Vocabulary, error) {
	for _, f := range p.Features {
		if f.Type.Kind == "ClassLabel" {
			return f.Name, Vocabulary(f.Type.Names), nil
		}
	}
	return "", nil, ErrNoClassLabel
}

// ImageFeature returns the name of the first Image feature.
func (p *RowsPage) ImageFeature() (string, error) {
	for _, f := range p.Features {
		if f.Type.Kind == "Image" {
			return f.Name, nil
		}
	}
	return "", ErrNoImageFeature
}

// Items decodes the page's rows using the given feature names.
func (p *RowsPage) Items(imageField, labelField string) ([]Item, error) {
	items := make([]Item, 0, len(p.Rows))
	for _, r := range p.Rows {
		var img ImageCell
		if err := json.Unmarshal(r.Cells[imageField], &img); err != nil {
			return nil, fmt.Errorf("row %d: decode %s: %w", r.Index, imageField, err)
		}
		if img.Src == "" {
			return nil, fmt.Errorf("row %d: missing image src", r.Index)
		}

		var label *int
		if err := json.Unmarshal(r.Cells[labelField], &label); err != nil {
			return nil, fmt.Errorf("row %d: decode %s: %w", r.Index, labelField, err)
		}
		if label == nil {
			return nil, fmt.Errorf("row %d: %w", r.Index, ErrMissingLabel)
		}

		items = append(items, Item{Index: r.Index, Label: *label, ImageURL: img.Src})
	}
	return items, nil
}
