package detector

import (
	"time"

	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/mat"

	"github.com/nasa-jpl/wfc3ir/modes"
)

// Subarrays are the permitted subarray sizes
var Subarrays = []int{64, 128, 256, 512, 1024}

// ValidSubarray returns true if n is a permitted subarray size
func ValidSubarray(n int) bool {
	for _, s := range Subarrays {
		if s == n {
			return true
		}
	}
	return false
}

// WFC3IR contains the readout timing and geometry of the WFC3 IR detector.
// It is read only after New and safe for concurrent use
type WFC3IR struct {
	// Telescope, Instrument, and DetectorType identify the detector in headers
	Telescope    string
	Instrument   string
	DetectorType string

	modes *modes.Table
}

// New returns a WFC3IR using the given mode timing table
func New(table *modes.Table) *WFC3IR {
	return &WFC3IR{
		Telescope:    "HST",
		Instrument:   "WFC3",
		DetectorType: "IR",
		modes:        table}
}

// Modes returns the underlying timing table
func (d *WFC3IR) Modes() *modes.Table {
	return d.modes
}

// ExposureTime retrieves the total exposure time in seconds for the mode given
func (d *WFC3IR) ExposureTime(nsamp, subarray int, sampseq string) (float64, error) {
	return d.modes.ExposureTime(nsamp, subarray, sampseq)
}

// ExposureDuration is ExposureTime as a time.Duration
func (d *WFC3IR) ExposureDuration(nsamp, subarray int, sampseq string) (time.Duration, error) {
	return d.modes.ExposureDuration(nsamp, subarray, sampseq)
}

// ReadTimes retrieves the time of each sample up the ramp to nsamp
func (d *WFC3IR) ReadTimes(nsamp, subarray int, sampseq string) ([]float64, error) {
	return d.modes.ReadTimes(nsamp, subarray, sampseq)
}

// PixelArray returns a zero-filled pixel array, see Allocate
func (d *WFC3IR) PixelArray(lightSensitive bool) *mat.Dense {
	return Allocate(lightSensitive)
}

// AddBiasPixels converts a light sensitive array to a full frame with the reference pixel border
func (d *WFC3IR) AddBiasPixels(a mat.Matrix) (*mat.Dense, error) {
	return EmbedInFullFrame(a)
}

// NumExpPerBuffer calculates the maximum number of exposures before a buffer dump
func (d *WFC3IR) NumExpPerBuffer(nsamp, subarray int) (int, error) {
	return MaxExposuresBeforeDump(nsamp, subarray)
}

// PixelPitch returns the pixel pitch in meters
func (d *WFC3IR) PixelPitch() float64 {
	return PixelPitch
}

// TelescopeArea returns the collecting area in square meters
func (d *WFC3IR) TelescopeArea() float64 {
	return TelescopeArea
}

// CollectHeaderMetadata returns FITS cards identifying the detector
func (d *WFC3IR) CollectHeaderMetadata() []fitsio.Card {
	return []fitsio.Card{
		{Name: "TELESCOP", Value: d.Telescope, Comment: "telescope used to acquire data"},
		{Name: "INSTRUME", Value: d.Instrument, Comment: "identifier for instrument used to acquire data"},
		{Name: "DETECTOR", Value: d.DetectorType, Comment: "detector in use"},
	}
}
