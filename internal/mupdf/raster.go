package mupdf

import (
	"image"
	"image/color"
)

const (
	// DPI used when rendering a page for raster analysis.
	analysisDPI = 150.0

	// Binary threshold separating content from background (0-255).
	binaryThreshold = 200

	// Components smaller than this are treated as noise.
	minComponentPixels = 30
)

// pageScan holds the raster-derived signals for one page. Built once per
// page and cached by the source so the quick and detail phases share a
// single render.
type pageScan struct {
	textBlocks []Rect
	images     []ImageInfo
	drawings   DrawingStats
	tables     []TableInfo
}

// component is a 4-connected region of dark pixels.
type component struct {
	minX, minY, maxX, maxY int
	pixels                 int
}

func (c component) width() int  { return c.maxX - c.minX + 1 }
func (c component) height() int { return c.maxY - c.minY + 1 }

func (c component) fillRatio() float64 {
	area := c.width() * c.height()
	if area == 0 {
		return 0
	}
	return float64(c.pixels) / float64(area)
}

// analyzeRaster derives text/vector/image signals from a rendered page.
// MuPDF via go-fitz exposes text and rendering but not the structured
// drawing/table enumeration of the full SDK, so those primitives are
// approximated from connected components of the binarized raster.
func analyzeRaster(img image.Image, pageW, pageH float64) *pageScan {
	gray := toGrayscale(img)
	bin := applyThreshold(gray, binaryThreshold)
	comps := findConnectedComponents(bin, minComponentPixels)

	// scale from analysis pixels back to page points
	scale := 72.0 / analysisDPI
	cmPerPixel := 2.54 / analysisDPI

	scan := &pageScan{}
	var hLines, vLines []component

	for _, c := range comps {
		wCM := float64(c.width()) * cmPerPixel
		hCM := float64(c.height()) * cmPerPixel
		fill := c.fillRatio()

		switch {
		case isLine(c, cmPerPixel):
			scan.drawings.Lines++
			if c.width() >= c.height() {
				hLines = append(hLines, c)
			} else {
				vLines = append(vLines, c)
			}
		case wCM >= 2.0 && hCM >= 2.0 && fill >= 0.35:
			// dense large region: embedded raster image
			scan.images = append(scan.images, ImageInfo{Width: c.width(), Height: c.height()})
		case wCM >= 1.0 && hCM >= 1.0 && fill < 0.12:
			// hollow outline: box / node rectangle
			scan.drawings.Rects++
			if wCM >= 1.5 && hCM >= 1.5 {
				scan.drawings.Compound++
			}
		case wCM >= 1.0 && hCM >= 1.0 && fill < 0.3:
			scan.drawings.Curves++
		case hCM <= 0.8:
			// glyph-height component: part of a text block
			scan.textBlocks = append(scan.textBlocks, Rect{
				X0: float64(c.minX) * scale,
				Y0: float64(c.minY) * scale,
				X1: float64(c.maxX+1) * scale,
				Y1: float64(c.maxY+1) * scale,
			})
		}
	}

	scan.textBlocks = mergeRows(scan.textBlocks)
	scan.tables = detectTables(hLines, vLines, scale)
	return scan
}

// isLine reports whether a component is a thin elongated stroke.
func isLine(c component, cmPerPixel float64) bool {
	w, h := c.width(), c.height()
	long, short := w, h
	if h > w {
		long, short = h, w
	}
	if float64(short)*cmPerPixel > 0.12 {
		return false
	}
	return float64(long) >= 8*float64(short) && float64(long)*cmPerPixel >= 0.8
}

// mergeRows coalesces glyph components that share a baseline into one block
// rectangle per text line, so summed block area approximates layout area.
func mergeRows(parts []Rect) []Rect {
	var rows []Rect
	for _, p := range parts {
		merged := false
		for i := range rows {
			r := &rows[i]
			overlap := minF(r.Y1, p.Y1) - maxF(r.Y0, p.Y0)
			if overlap > 0 && overlap >= 0.5*(p.Y1-p.Y0) {
				r.X0 = minF(r.X0, p.X0)
				r.X1 = maxF(r.X1, p.X1)
				r.Y0 = minF(r.Y0, p.Y0)
				r.Y1 = maxF(r.Y1, p.Y1)
				merged = true
				break
			}
		}
		if !merged {
			rows = append(rows, p)
		}
	}
	return rows
}

// detectTables looks for a ruling grid: two or more horizontal and two or
// more vertical lines whose extents overlap form one table whose cell count
// is the grid interior.
func detectTables(hLines, vLines []component, scale float64) []TableInfo {
	if len(hLines) < 2 || len(vLines) < 2 {
		return nil
	}
	minX, minY := hLines[0].minX, hLines[0].minY
	maxX, maxY := hLines[0].maxX, hLines[0].maxY
	for _, l := range hLines[1:] {
		minX = min(minX, l.minX)
		minY = min(minY, l.minY)
		maxX = max(maxX, l.maxX)
		maxY = max(maxY, l.maxY)
	}
	crossing := 0
	for _, v := range vLines {
		if v.minX >= minX && v.maxX <= maxX+2 {
			crossing++
		}
	}
	if crossing < 2 {
		return nil
	}
	cells := (len(hLines) - 1) * (crossing - 1)
	return []TableInfo{{
		CellCount: cells,
		Bounds: Rect{
			X0: float64(minX) * scale, Y0: float64(minY) * scale,
			X1: float64(maxX) * scale, Y1: float64(maxY) * scale,
		},
	}}
}

func toGrayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

func applyThreshold(img *image.Gray, threshold uint8) *image.Gray {
	bounds := img.Bounds()
	bin := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y < threshold {
				bin.SetGray(x, y, color.Gray{Y: 0})
			} else {
				bin.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return bin
}

func findConnectedComponents(img *image.Gray, minPixels int) []component {
	bounds := img.Bounds()
	visited := make([][]bool, bounds.Dy())
	for i := range visited {
		visited[i] = make([]bool, bounds.Dx())
	}

	var comps []component
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y == 255 {
				continue
			}
			c := floodFill(img, visited, x, y, bounds)
			if c.pixels >= minPixels {
				comps = append(comps, c)
			}
		}
	}
	return comps
}

// floodFill is iterative to avoid deep recursion on large regions.
func floodFill(img *image.Gray, visited [][]bool, startX, startY int, bounds image.Rectangle) component {
	c := component{minX: startX, minY: startY, maxX: startX, maxY: startY}
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p.X, p.Y

		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y == 255 {
			continue
		}
		visited[y-bounds.Min.Y][x-bounds.Min.X] = true
		c.pixels++

		c.minX = min(c.minX, x)
		c.maxX = max(c.maxX, x)
		c.minY = min(c.minY, y)
		c.maxY = max(c.maxY, y)

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}
	return c
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
