package calib

import (
	"fmt"

	"github.com/astrogo/fitsio"
)

// ReadImage reads a two dimensional image HDU as physical values,
// BZERO + BSCALE*stored, in row major order with NAXIS2 rows of NAXIS1 columns.
// Every BITPIX the FITS standard defines is accepted
func ReadImage(img fitsio.Image) (data []float64, rows, cols int, err error) {
	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 2 || axes[0] <= 0 || axes[1] <= 0 {
		return nil, 0, 0, fmt.Errorf("image must be two dimensional, has axes %v", axes)
	}
	cols, rows = axes[0], axes[1]
	data, err = readPixels(img, rows*cols)
	if err != nil {
		return nil, 0, 0, err
	}
	zero, scale := 0.0, 1.0
	if c := hdr.Get("BZERO"); c != nil {
		if zero, err = toFloat(c.Value); err != nil {
			return nil, 0, 0, fmt.Errorf("BZERO: %w", err)
		}
	}
	if c := hdr.Get("BSCALE"); c != nil {
		if scale, err = toFloat(c.Value); err != nil {
			return nil, 0, 0, fmt.Errorf("BSCALE: %w", err)
		}
	}
	if zero != 0 || scale != 1 {
		for i := range data {
			data[i] = zero + scale*data[i]
		}
	}
	return data, rows, cols, nil
}

// readPixels reads n stored values in the element type matching BITPIX;
// fitsio does not convert between element sizes
func readPixels(img fitsio.Image, n int) ([]float64, error) {
	out := make([]float64, n)
	switch bitpix := img.Header().Bitpix(); bitpix {
	case 8:
		raw := make([]uint8, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 64:
		raw := make([]int64, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -64:
		if err := img.Read(&out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX=%d", bitpix)
	}
	return out, nil
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("value %v is a %T, not a number", v, v)
	}
}
