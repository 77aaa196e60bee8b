package mupdf

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCMPerPixel = 2.54 / analysisDPI

func blackRect(img *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
}

func whiteImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestComponent_Geometry(t *testing.T) {
	c := component{minX: 10, minY: 20, maxX: 19, maxY: 24, pixels: 25}
	assert.Equal(t, 10, c.width())
	assert.Equal(t, 5, c.height())
	assert.InDelta(t, 0.5, c.fillRatio(), 1e-9)
}

func TestIsLine(t *testing.T) {
	tests := []struct {
		name string
		c    component
		want bool
	}{
		{"long thin horizontal", component{maxX: 99, maxY: 1}, true},
		{"long thin vertical", component{maxX: 1, maxY: 99}, true},
		{"too thick", component{maxX: 99, maxY: 19}, false},
		{"too short", component{maxX: 19, maxY: 1}, false},
		{"square blob", component{maxX: 39, maxY: 39}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLine(tt.c, testCMPerPixel))
		})
	}
}

func TestFindConnectedComponents(t *testing.T) {
	img := whiteImage(200, 200)
	blackRect(img, 10, 10, 50, 50)   // 1600 px blob
	blackRect(img, 100, 100, 140, 140)
	blackRect(img, 180, 180, 183, 183) // 9 px: below the noise floor

	comps := findConnectedComponents(img, minComponentPixels)
	require.Len(t, comps, 2)

	assert.Equal(t, 10, comps[0].minX)
	assert.Equal(t, 49, comps[0].maxX)
	assert.Equal(t, 1600, comps[0].pixels)
}

func TestFindConnectedComponents_DiagonalIsSeparate(t *testing.T) {
	// corner-touching blobs are distinct under 4-connectivity
	img := whiteImage(100, 100)
	blackRect(img, 10, 10, 20, 20)
	blackRect(img, 20, 20, 30, 30)

	comps := findConnectedComponents(img, 30)
	assert.Len(t, comps, 2)
}

func TestApplyThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: binaryThreshold - 1})
	img.SetGray(1, 0, color.Gray{Y: binaryThreshold})

	bin := applyThreshold(img, binaryThreshold)
	assert.Equal(t, uint8(0), bin.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), bin.GrayAt(1, 0).Y)
}

func TestMergeRows(t *testing.T) {
	parts := []Rect{
		{X0: 10, Y0: 100, X1: 20, Y1: 110},
		{X0: 25, Y0: 101, X1: 40, Y1: 111}, // same baseline
		{X0: 10, Y0: 200, X1: 30, Y1: 210}, // different row
	}

	rows := mergeRows(parts)
	require.Len(t, rows, 2)
	assert.InDelta(t, 10, rows[0].X0, 1e-9)
	assert.InDelta(t, 40, rows[0].X1, 1e-9)
}

func TestDetectTables(t *testing.T) {
	scale := 72.0 / analysisDPI

	t.Run("grid forms a table", func(t *testing.T) {
		hLines := []component{
			{minX: 10, minY: 10, maxX: 200, maxY: 11},
			{minX: 10, minY: 60, maxX: 200, maxY: 61},
			{minX: 10, minY: 110, maxX: 200, maxY: 111},
		}
		vLines := []component{
			{minX: 10, minY: 10, maxX: 11, maxY: 110},
			{minX: 100, minY: 10, maxX: 101, maxY: 110},
			{minX: 199, minY: 10, maxX: 200, maxY: 110},
		}

		tables := detectTables(hLines, vLines, scale)
		require.Len(t, tables, 1)
		// 3x3 ruling grid: 2 rows x 2 columns
		assert.Equal(t, 4, tables[0].CellCount)
	})

	t.Run("too few rulings", func(t *testing.T) {
		hLines := []component{{minX: 10, maxX: 200}}
		vLines := []component{{minX: 10, maxX: 11}, {minX: 100, maxX: 101}}
		assert.Empty(t, detectTables(hLines, vLines, scale))
	})

	t.Run("verticals outside the grid do not count", func(t *testing.T) {
		hLines := []component{
			{minX: 100, minY: 10, maxX: 200, maxY: 11},
			{minX: 100, minY: 60, maxX: 200, maxY: 61},
		}
		vLines := []component{
			{minX: 10, minY: 10, maxX: 11, maxY: 60}, // left of the grid
			{minX: 120, minY: 10, maxX: 121, maxY: 60},
		}
		assert.Empty(t, detectTables(hLines, vLines, scale))
	})
}

func TestAnalyzeRaster(t *testing.T) {
	t.Run("thin stroke counts as a line", func(t *testing.T) {
		img := whiteImage(300, 300)
		blackRect(img, 50, 100, 150, 102)

		scan := analyzeRaster(img, 144, 144)
		assert.Equal(t, 1, scan.drawings.Lines)
		assert.Zero(t, scan.drawings.Rects)
		assert.Empty(t, scan.images)
	})

	t.Run("dense region counts as an embedded image", func(t *testing.T) {
		img := whiteImage(400, 400)
		blackRect(img, 50, 50, 180, 180) // ~2.2cm square, fully filled

		scan := analyzeRaster(img, 192, 192)
		require.Len(t, scan.images, 1)
		assert.Equal(t, 130, scan.images[0].Width)
	})

	t.Run("hollow outline counts as a rectangle", func(t *testing.T) {
		img := whiteImage(300, 300)
		// 80x80 px box with a 2 px border
		blackRect(img, 50, 50, 130, 52)
		blackRect(img, 50, 128, 130, 130)
		blackRect(img, 50, 52, 52, 128)
		blackRect(img, 128, 52, 130, 128)

		scan := analyzeRaster(img, 144, 144)
		assert.Equal(t, 1, scan.drawings.Rects)
		assert.Empty(t, scan.images)
	})

	t.Run("glyph-height blobs merge into text rows", func(t *testing.T) {
		img := whiteImage(300, 300)
		blackRect(img, 20, 100, 60, 110)
		blackRect(img, 70, 100, 110, 110)
		blackRect(img, 20, 160, 60, 170)

		scan := analyzeRaster(img, 144, 144)
		assert.Len(t, scan.textBlocks, 2)
	})
}
