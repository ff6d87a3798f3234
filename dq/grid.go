package dq

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/wfc3ir/calib"
)

// Grid is a row-major array of flags, one per pixel
type Grid struct {
	Rows, Cols int
	Data       []Flag
}

// NewGrid validates values and builds a Grid.  len(values) must be rows*cols
func NewGrid(rows, cols int, values []int) (Grid, error) {
	if rows*cols != len(values) {
		return Grid{}, fmt.Errorf("%d values cannot fill a %dx%d grid", len(values), rows, cols)
	}
	data := make([]Flag, len(values))
	for i, v := range values {
		f, err := New(v)
		if err != nil {
			return Grid{}, fmt.Errorf("pixel (%d, %d): %w", i/cols, i%cols, err)
		}
		data[i] = f
	}
	return Grid{Rows: rows, Cols: cols, Data: data}, nil
}

// At returns the flag of pixel (i, j)
func (g Grid) At(i, j int) Flag {
	return g.Data[i*g.Cols+j]
}

// Count returns the number of pixels raising each flag, base and derived.
// The special key "bad" counts pixels with any flag raised
func (g Grid) Count() map[string]int {
	out := map[string]int{"bad": 0}
	for _, n := range Names() {
		out[n] = 0
	}
	for _, f := range g.Data {
		if f == 0 {
			continue
		}
		out["bad"]++
		for name, m := range masks {
			if f&m != 0 {
				out[name]++
			}
		}
	}
	return out
}

// Mask returns a row-major slice which is true where any of the named flags is raised.
// With no names, any raised flag counts
func (g Grid) Mask(names ...string) ([]bool, error) {
	var m Flag = MaxValue
	if len(names) > 0 {
		m = 0
		for _, n := range names {
			nm, err := MaskOf(n)
			if err != nil {
				return nil, err
			}
			m |= nm
		}
	}
	out := make([]bool, len(g.Data))
	for i, f := range g.Data {
		out[i] = f&m != 0
	}
	return out, nil
}

// LoadGrid reads the image extension named extname (e.g. "DQ") from a FITS
// stream.  An empty extname selects the first image HDU holding data
func LoadGrid(r io.Reader, extname string) (Grid, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return Grid{}, err
	}
	defer f.Close()

	for _, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		if extname != "" && !strings.EqualFold(strings.TrimSpace(hdu.Name()), extname) {
			continue
		}
		axes := img.Header().Axes()
		if extname == "" && len(axes) == 0 {
			continue
		}
		g, err := readGrid(img)
		if err != nil {
			return Grid{}, fmt.Errorf("DQ extension: %w", err)
		}
		return g, nil
	}
	if extname == "" {
		return Grid{}, fmt.Errorf("no image HDU with data")
	}
	return Grid{}, fmt.Errorf("no image extension named %s", extname)
}

// readGrid scales the stored values to physical ones before range checking,
// so unsigned 16 bit data (BZERO=32768) decodes correctly
func readGrid(img fitsio.Image) (Grid, error) {
	data, rows, cols, err := calib.ReadImage(img)
	if err != nil {
		return Grid{}, err
	}
	values := make([]int, len(data))
	for i, v := range data {
		if math.IsInf(v, 0) || v != math.Trunc(v) {
			return Grid{}, fmt.Errorf("pixel (%d, %d): data quality value %g is not an integer", i/cols, i%cols, v)
		}
		values[i] = int(v)
	}
	return NewGrid(rows, cols, values)
}
