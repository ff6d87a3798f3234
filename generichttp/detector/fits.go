package detector

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/mat"

	"github.com/nasa-jpl/wfc3ir/calib"
)

// WriteFits streams a frame to w as a single 64-bit float image
func WriteFits(w io.Writer, metadata []fitsio.Card, frame mat.Matrix) error {
	rows, cols := frame.Dims()
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(-64, []int{cols, rows})
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}
	err = im.Write(pixels(frame))
	if err != nil {
		return err
	}
	return fits.Write(im)
}

// pixels returns the frame in row major order
func pixels(frame mat.Matrix) []float64 {
	rows, cols := frame.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out = append(out, frame.At(i, j))
		}
	}
	return out
}

// ReadFits reads the first two dimensional image in a FITS stream,
// scaled to physical values by BZERO and BSCALE
func ReadFits(r io.Reader) (*mat.Dense, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("not a FITS file: %w", err)
	}
	defer f.Close()
	for _, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok || len(img.Header().Axes()) == 0 {
			continue
		}
		data, rows, cols, err := calib.ReadImage(img)
		if err != nil {
			return nil, fmt.Errorf("frame: %w", err)
		}
		return mat.NewDense(rows, cols, data), nil
	}
	return nil, fmt.Errorf("no image HDU with data")
}
