package dataset

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultQuality matches the JPEG quality most image libraries save with.
const DefaultQuality = 75

// Source is a paginated labeled image collection.
type Source interface {
	Rows(ctx context.Context, split string, offset, length int) (*RowsPage, error)
	Image(ctx context.Context, src string) (image.Image, error)
}

// Materializer writes one split of a Source to BaseDir/<split>/<label>/<index>.jpg.
type Materializer struct {
	Source   Source
	BaseDir  string
	Split    string
	PageSize int
	// Limit caps the number of items written; zero means the whole split.
	Limit   int
	Quality int
	Log     logrus.FieldLogger
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Split    string
	Written  int
	PerLabel map[string]int
}

// Run walks the split in order and writes every item. It stops at the first
// error; rerunning overwrites files by index.
func (m *Materializer) Run(ctx context.Context) (*Summary, error) {
	pageSize := m.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	quality := m.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	sum := &Summary{
		RunID:    uuid.NewString(),
		Split:    m.Split,
		PerLabel: make(map[string]int),
	}
	log := m.logger().WithFields(logrus.Fields{
		"run_id": sum.RunID,
		"split":  m.Split,
	})
	log.WithField("base_dir", m.BaseDir).Info("materializing split")

	var (
		vocab                  Vocabulary
		imageField, labelField string
	)

	for offset := 0; ; {
		length := pageSize
		if m.Limit > 0 && m.Limit-sum.Written < length {
			length = m.Limit - sum.Written
		}
		if length <= 0 {
			break
		}

		page, err := m.Source.Rows(ctx, m.Split, offset, length)
		if err != nil {
			return sum, fmt.Errorf("failed to fetch rows at offset %d: %w", offset, err)
		}

		if vocab == nil {
			if labelField, vocab, err = page.ClassLabel(); err != nil {
				return sum, err
			}
			if imageField, err = page.ImageFeature(); err != nil {
				return sum, err
			}
			log.WithField("labels", []string(vocab)).Debug("resolved label vocabulary")
		}

		items, err := page.Items(imageField, labelField)
		if err != nil {
			return sum, err
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return sum, err
			}

			name, err := m.save(ctx, vocab, sum.Written, item, quality)
			if err != nil {
				return sum, err
			}
			sum.Written++
			sum.PerLabel[name]++
		}

		offset += len(items)
		log.WithFields(logrus.Fields{
			"written": sum.Written,
			"total":   page.NumRowsTotal,
		}).Info("page done")

		if page.NumRowsTotal > 0 && offset >= page.NumRowsTotal {
			break
		}
	}

	log.WithFields(logrus.Fields{
		"written":   sum.Written,
		"per_label": sum.PerLabel,
	}).Info("split materialized")
	return sum, nil
}

func (m *Materializer) save(ctx context.Context, vocab Vocabulary, index int, item Item, quality int) (string, error) {
	name, err := vocab.Name(item.Label)
	if err != nil {
		return "", fmt.Errorf("item %d: %w", index, err)
	}
	if err := checkLabel(name); err != nil {
		return "", fmt.Errorf("item %d: %w", index, err)
	}

	img, err := m.Source.Image(ctx, item.ImageURL)
	if err != nil {
		return "", fmt.Errorf("item %d: %w", index, err)
	}

	path := ItemPath(m.BaseDir, m.Split, name, index)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create label dir: %w", err)
	}
	if err := writeJPEG(path, img, quality); err != nil {
		return "", err
	}
	return name, nil
}

// ItemPath is where the item at index of split is written.
func ItemPath(base, split, label string, index int) string {
	return filepath.Join(base, split, label, strconv.Itoa(index)+".jpg")
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func checkLabel(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrUnsafeLabel, name)
	}
	return nil
}

func (m *Materializer) logger() logrus.FieldLogger {
	if m.Log != nil {
		return m.Log
	}
	return logrus.StandardLogger()
}
