package nonlinear

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/mat"

	"github.com/nasa-jpl/wfc3ir/calib"
	"github.com/nasa-jpl/wfc3ir/detector"
)

// nCoeffs is the number of coefficient extensions in a reference file
const nCoeffs = 4

// CoeffSet holds per-pixel coefficient grids.  All four share one shape
type CoeffSet struct {
	C1, C2, C3, C4 *mat.Dense
}

// ZeroCoeffs returns a CoeffSet of zeros, under which correction is the identity
func ZeroCoeffs(rows, cols int) CoeffSet {
	return CoeffSet{
		C1: mat.NewDense(rows, cols, nil),
		C2: mat.NewDense(rows, cols, nil),
		C3: mat.NewDense(rows, cols, nil),
		C4: mat.NewDense(rows, cols, nil)}
}

func (cs CoeffSet) grids() [nCoeffs]*mat.Dense {
	return [nCoeffs]*mat.Dense{cs.C1, cs.C2, cs.C3, cs.C4}
}

// Dims returns the shape of the grids
func (cs CoeffSet) Dims() (int, int) {
	if cs.C1 == nil {
		return 0, 0
	}
	return cs.C1.Dims()
}

// At returns the coefficients of pixel (i, j)
func (cs CoeffSet) At(i, j int) Coeffs {
	return Coeffs{C1: cs.C1.At(i, j), C2: cs.C2.At(i, j), C3: cs.C3.At(i, j), C4: cs.C4.At(i, j)}
}

// Validate checks that all four grids are present and share a shape
func (cs CoeffSet) Validate() error {
	r, c := cs.Dims()
	for i, g := range cs.grids() {
		if g == nil {
			return fmt.Errorf("coefficient grid c%d is missing", i+1)
		}
		if err := detector.CheckShape(g, r, c); err != nil {
			return fmt.Errorf("coefficient grid c%d: %w", i+1, err)
		}
	}
	return nil
}

// Reference is an uncropped non-linearity calibration reference
type Reference struct {
	CoeffSet

	// Source names where the reference was loaded from
	Source string
}

// LoadReferenceFile loads a reference named name, resolved against root
func LoadReferenceFile(root calib.Root, name string) (*Reference, error) {
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loadReference(f, root.Path(name))
}

// LoadReference reads a reference from a FITS stream whose image extensions
// 1 through 4 hold c1 through c4
func LoadReference(r io.Reader) (*Reference, error) {
	return loadReference(r, "")
}

func loadReference(r io.Reader, source string) (*Reference, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, calib.Invalid(source, "not a FITS file: %v", err)
	}
	defer f.Close()

	hdus := f.HDUs()
	if len(hdus) < nCoeffs+1 {
		return nil, calib.Invalid(source, "expected %d coefficient extensions, file has %d HDUs", nCoeffs, len(hdus))
	}
	var grids [nCoeffs]*mat.Dense
	for i := 0; i < nCoeffs; i++ {
		g, err := readGrid(hdus[i+1])
		if err != nil {
			return nil, calib.Invalid(source, "extension %d: %v", i+1, err)
		}
		if i > 0 {
			r0, c0 := grids[0].Dims()
			if err := detector.CheckShape(g, r0, c0); err != nil {
				return nil, calib.Invalid(source, "extension %d: %v", i+1, err)
			}
		}
		grids[i] = g
	}
	return &Reference{
		CoeffSet: CoeffSet{C1: grids[0], C2: grids[1], C3: grids[2], C4: grids[3]},
		Source:   source}, nil
}

// readGrid reads a 2D image HDU into a Dense, NAXIS2 rows by NAXIS1 columns,
// scaled to physical values
func readGrid(hdu fitsio.HDU) (*mat.Dense, error) {
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("HDU is a %v, not an image", hdu.Type())
	}
	data, rows, cols, err := calib.ReadImage(img)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(rows, cols, data), nil
}

// Crop returns the central rows x cols region of every grid, see detector.CentralWindow
func (ref *Reference) Crop(rows, cols int) (CoeffSet, error) {
	r, c := ref.Dims()
	if rows > r || cols > c {
		return CoeffSet{}, calib.Invalid(ref.Source, "reference is %dx%d, smaller than the %dx%d frame", r, c, rows, cols)
	}
	var out [nCoeffs]*mat.Dense
	for i, g := range ref.grids() {
		cropped, err := detector.CropCentral(g, rows, cols)
		if err != nil {
			return CoeffSet{}, calib.Invalid(ref.Source, "cropping c%d: %v", i+1, err)
		}
		out[i] = cropped
	}
	return CoeffSet{C1: out[0], C2: out[1], C3: out[2], C4: out[3]}, nil
}
