/*Package camera describes a standard set of interfaces for infrared detector readout models

RampReadout covers the timing of a sample-up-the-ramp exposure, while FrameShaper
covers the geometry of the frames the detector produces.  *detector.WFC3IR
implements both.

*/
package camera

import (
	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/mat"
)

// RampReadout describes the timing of a non-destructive, multi-sample readout
type RampReadout interface {
	// ExposureTime gets the total exposure time in seconds of the mode
	// described by the number of samples, subarray size, and sample sequence
	ExposureTime(nsamp, subarray int, sampseq string) (float64, error)

	// ReadTimes gets the time in seconds of every sample up the ramp,
	// ending at ExposureTime
	ReadTimes(nsamp, subarray int, sampseq string) ([]float64, error)

	// NumExpPerBuffer gets the number of exposures that fit in the
	// onboard buffer before it must be dumped
	NumExpPerBuffer(nsamp, subarray int) (int, error)
}

// FrameShaper describes the geometry of the frames a detector produces
type FrameShaper interface {
	// PixelArray returns a zero-filled frame, either the light sensitive
	// area or the full frame including reference pixels
	PixelArray(lightSensitive bool) *mat.Dense

	// AddBiasPixels embeds a light sensitive frame in a full frame
	AddBiasPixels(a mat.Matrix) (*mat.Dense, error)

	// PixelPitch gets the pixel pitch in meters
	PixelPitch() float64

	// TelescopeArea gets the collecting area in square meters
	TelescopeArea() float64
}

// MetadataMaker can produce an array of FITS cards
type MetadataMaker interface {
	// CollectHeaderMetadata produces an array of FITS cards
	CollectHeaderMetadata() []fitsio.Card
}
