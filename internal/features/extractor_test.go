package features

import (
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uchi736/rag-preprocessing-optimizer/internal/mupdf"
)

// fakeSource is an in-memory PageSource with fixed per-page signals.
type fakeSource struct {
	text     map[int]string
	pageW    float64
	pageH    float64
	blocks   map[int][]mupdf.Rect
	images   map[int][]mupdf.ImageInfo
	drawings map[int]mupdf.DrawingStats
	tables   map[int][]mupdf.TableInfo
	errs     map[int]error
}

func (s *fakeSource) NumPages() int {
	n := 0
	for p := range s.text {
		if p > n {
			n = p
		}
	}
	return n
}

func (s *fakeSource) PageText(page int) (string, error) {
	if err := s.errs[page]; err != nil {
		return "", err
	}
	return s.text[page], nil
}

func (s *fakeSource) PageSize(page int) (float64, float64, error) {
	if s.pageW == 0 {
		return 595, 842, nil
	}
	return s.pageW, s.pageH, nil
}

func (s *fakeSource) TextBlocks(page int) ([]mupdf.Rect, error) {
	return s.blocks[page], nil
}

func (s *fakeSource) Images(page int) ([]mupdf.ImageInfo, error) {
	return s.images[page], nil
}

func (s *fakeSource) Drawings(page int) (mupdf.DrawingStats, error) {
	return s.drawings[page], nil
}

func (s *fakeSource) Tables(page int) ([]mupdf.TableInfo, error) {
	return s.tables[page], nil
}

func (s *fakeSource) RenderDPI(page int, dpi float64) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 8, 8)), nil
}

func (s *fakeSource) Close() error { return nil }

func TestQuick_SkipPattern(t *testing.T) {
	src := &fakeSource{text: map[int]string{1: "目次\n1. 概要 ... 3\n2. 設置 ... 7"}}
	ext := New(DefaultConfig())

	f, err := ext.Quick(src, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, f.SkipReason)
	assert.Zero(t, f.TextDensity)
}

func TestQuick_SkipScanWindowBound(t *testing.T) {
	// the skip marker past the scan window must not trigger
	pad := strings.Repeat("本文テキスト", 40) // well past 200 runes
	src := &fakeSource{text: map[int]string{1: pad + "目次"}}
	ext := New(DefaultConfig())

	f, err := ext.Quick(src, 1)
	require.NoError(t, err)
	assert.Empty(t, f.SkipReason)
}

func TestQuick_TextDensity(t *testing.T) {
	src := &fakeSource{
		text:  map[int]string{1: "本文"},
		pageW: 100, pageH: 100,
		blocks: map[int][]mupdf.Rect{
			1: {
				{X0: 0, Y0: 0, X1: 100, Y1: 40},
				{X0: 0, Y0: 50, X1: 100, Y1: 60},
			},
		},
	}
	ext := New(DefaultConfig())

	f, err := ext.Quick(src, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f.TextDensity, 1e-9)
}

func TestQuick_TextDensityClamped(t *testing.T) {
	// overlapping blocks can sum past the page area
	src := &fakeSource{
		text:  map[int]string{1: "本文"},
		pageW: 100, pageH: 100,
		blocks: map[int][]mupdf.Rect{
			1: {
				{X0: 0, Y0: 0, X1: 100, Y1: 100},
				{X0: 0, Y0: 0, X1: 100, Y1: 100},
			},
		},
	}
	ext := New(DefaultConfig())

	f, err := ext.Quick(src, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.TextDensity)
}

func TestQuick_LargeImageCount(t *testing.T) {
	src := &fakeSource{
		text: map[int]string{1: "本文"},
		images: map[int][]mupdf.ImageInfo{
			1: {
				{Width: 300, Height: 200}, // 60000 px^2: large
				{Width: 100, Height: 100}, // 10000 px^2: small
				{Width: 500, Height: 100}, // exactly 50000: not above
			},
		},
	}
	ext := New(DefaultConfig())

	f, err := ext.Quick(src, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.LargeImageCount)
}

func TestQuick_FigureTokenAnalysis(t *testing.T) {
	ext := New(DefaultConfig())

	t.Run("caption makes an actual figure", func(t *testing.T) {
		src := &fakeSource{text: map[int]string{1: "装置の構成を示す。\n図2-1 システム構成\n"}}
		f, err := ext.Quick(src, 1)
		require.NoError(t, err)
		assert.True(t, f.HasFigureNumber)
		assert.False(t, f.HasFigureReference)
		assert.True(t, f.ActualFigure)
	})

	t.Run("back-reference is not an actual figure", func(t *testing.T) {
		src := &fakeSource{text: map[int]string{1: "接続方法は図2-1を参照してください。"}}
		f, err := ext.Quick(src, 1)
		require.NoError(t, err)
		assert.True(t, f.HasFigureNumber)
		assert.True(t, f.HasFigureReference)
		assert.False(t, f.ActualFigure)
	})

	t.Run("mid-sentence mention is not a caption", func(t *testing.T) {
		src := &fakeSource{text: map[int]string{1: "本装置は図2-1のような構成である。"}}
		f, err := ext.Quick(src, 1)
		require.NoError(t, err)
		assert.True(t, f.HasFigureNumber)
		assert.False(t, f.ActualFigure)
	})

	t.Run("force keyword", func(t *testing.T) {
		src := &fakeSource{text: map[int]string{1: "処理のフロー図を以下に示す。"}}
		f, err := ext.Quick(src, 1)
		require.NoError(t, err)
		assert.True(t, f.HasForceKeyword)
	})
}

func TestQuick_PropagatesTextError(t *testing.T) {
	src := &fakeSource{
		text: map[int]string{1: ""},
		errs: map[int]error{1: &mupdf.ExtractionError{Page: 1, Err: assert.AnError}},
	}
	ext := New(DefaultConfig())

	_, err := ext.Quick(src, 1)
	assert.ErrorIs(t, err, mupdf.ErrExtraction)
}

func TestDetail_FillsSecondPhase(t *testing.T) {
	src := &fakeSource{
		text: map[int]string{1: "手順1 電源を入れる\n① 確認\n"},
		drawings: map[int]mupdf.DrawingStats{
			1: {Rects: 4, Lines: 7, Curves: 2, Compound: 3},
		},
		tables: map[int][]mupdf.TableInfo{
			1: {{CellCount: 12}, {CellCount: 9}},
		},
		blocks: map[int][]mupdf.Rect{
			1: {
				{X0: 10, Y0: 20, X1: 50, Y1: 30},
				{X0: 310, Y0: 400, X1: 350, Y1: 420},
			},
		},
	}
	ext := New(DefaultConfig())

	f := PageFeatures{Page: 1}
	require.NoError(t, ext.Detail(src, 1, &f))

	assert.True(t, f.DetailDone)
	assert.Equal(t, 4, f.RectCount)
	assert.Equal(t, 7, f.LineCount)
	assert.Equal(t, 2, f.CurveCount)
	assert.Equal(t, 3, f.CompoundShapes)
	assert.Equal(t, 2, f.TableCount)
	assert.Equal(t, 21, f.TotalCells)
	assert.True(t, f.HasStepPattern)
	assert.True(t, f.HasNumberedList)
	assert.Equal(t, 2, f.BlockCount)
	assert.InDelta(t, 300, f.BlockSpreadX, 1e-9)
	assert.InDelta(t, 380, f.BlockSpreadY, 1e-9)
}
