package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trashVocab = []string{"cardboard", "glass", "metal", "paper", "plastic", "trash"}

// fakeSource serves labels as a paginated split.
type fakeSource struct {
	vocab    []string
	labels   []int
	pages    []int
	imageErr error
}

func (f *fakeSource) Rows(ctx context.Context, split string, offset, length int) (*RowsPage, error) {
	f.pages = append(f.pages, offset)

	page := &RowsPage{
		Features: []Feature{
			{Index: 0, Name: "image", Type: FeatureType{Kind: "Image"}},
			{Index: 1, Name: "label", Type: FeatureType{Kind: "ClassLabel", Names: f.vocab}},
		},
		NumRowsTotal: len(f.labels),
	}
	for i := offset; i < offset+length && i < len(f.labels); i++ {
		img, _ := json.Marshal(ImageCell{Src: fmt.Sprintf("mem://%s/%d", split, i), Width: 4, Height: 4})
		label, _ := json.Marshal(f.labels[i])
		page.Rows = append(page.Rows, Row{
			Index: i,
			Cells: map[string]json.RawMessage{"image": img, "label": label},
		})
	}
	return page, nil
}

func (f *fakeSource) Image(ctx context.Context, src string) (image.Image, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 90, B: 60, A: 255})
		}
	}
	return img, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func TestMaterializeWritesLabelTree(t *testing.T) {
	base := t.TempDir()
	m := &Materializer{
		Source:  &fakeSource{vocab: trashVocab, labels: []int{0, 0, 1}},
		BaseDir: base,
		Split:   "train",
		Log:     quietLogger(),
	}

	sum, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Written)
	assert.Equal(t, map[string]int{"cardboard": 2, "glass": 1}, sum.PerLabel)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, []string{
		"train/cardboard/0.jpg",
		"train/cardboard/1.jpg",
		"train/glass/2.jpg",
	}, listFiles(t, base))

	f, err := os.Open(filepath.Join(base, "train", "glass", "2.jpg"))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	base := t.TempDir()
	labels := []int{4, 1, 5, 0, 2, 3, 4}

	run := func() []string {
		m := &Materializer{
			Source:   &fakeSource{vocab: trashVocab, labels: labels},
			BaseDir:  base,
			Split:    "train",
			PageSize: 3,
			Log:      quietLogger(),
		}
		_, err := m.Run(context.Background())
		require.NoError(t, err)
		return listFiles(t, base)
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.Len(t, second, len(labels))

	for i, label := range labels {
		path := ItemPath(base, "train", trashVocab[label], i)
		assert.FileExists(t, path)
	}
}

func TestMaterializePaginates(t *testing.T) {
	src := &fakeSource{vocab: trashVocab, labels: []int{0, 1, 2, 3, 4}}
	m := &Materializer{Source: src, BaseDir: t.TempDir(), Split: "train", PageSize: 2, Log: quietLogger()}

	sum, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Written)
	assert.Equal(t, []int{0, 2, 4}, src.pages)
}

func TestMaterializeLimit(t *testing.T) {
	base := t.TempDir()
	src := &fakeSource{vocab: trashVocab, labels: []int{0, 1, 2, 3, 4}}
	m := &Materializer{Source: src, BaseDir: base, Split: "test", PageSize: 2, Limit: 3, Log: quietLogger()}

	sum, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Written)
	assert.Equal(t, []string{
		"test/cardboard/0.jpg",
		"test/glass/1.jpg",
		"test/metal/2.jpg",
	}, listFiles(t, base))
}

func TestMaterializeLabelOutOfRange(t *testing.T) {
	m := &Materializer{
		Source:  &fakeSource{vocab: trashVocab, labels: []int{0, 9}},
		BaseDir: t.TempDir(),
		Split:   "train",
		Log:     quietLogger(),
	}

	sum, err := m.Run(context.Background())
	assert.ErrorIs(t, err, ErrLabelOutOfRange)
	assert.Equal(t, 1, sum.Written)
}

func TestMaterializeUnsafeLabel(t *testing.T) {
	m := &Materializer{
		Source:  &fakeSource{vocab: []string{"../escape"}, labels: []int{0}},
		BaseDir: t.TempDir(),
		Split:   "train",
		Log:     quietLogger(),
	}

	_, err := m.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnsafeLabel)
}

func TestMaterializeImageFailureAborts(t *testing.T) {
	base := t.TempDir()
	boom := errors.New("connection reset")
	m := &Materializer{
		Source:  &fakeSource{vocab: trashVocab, labels: []int{0, 1}, imageErr: boom},
		BaseDir: base,
		Split:   "train",
		Log:     quietLogger(),
	}

	_, err := m.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, listFiles(t, base))
}

func TestMaterializeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Materializer{
		Source:  &fakeSource{vocab: trashVocab, labels: []int{0, 1}},
		BaseDir: t.TempDir(),
		Split:   "train",
		Log:     quietLogger(),
	}

	sum, err := m.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Written)
}

func TestMaterializeEmptySplit(t *testing.T) {
	base := t.TempDir()
	m := &Materializer{
		Source:  &fakeSource{vocab: trashVocab},
		BaseDir: base,
		Split:   "train",
		Log:     quietLogger(),
	}

	sum, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Written)
	assert.Empty(t, listFiles(t, base))
}
