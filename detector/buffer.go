package detector

import (
	"math"

	"github.com/nasa-jpl/wfc3ir/modes"
)

const (
	// HardReadLimit is the absolute number of reads (headers) the buffer can hold
	HardReadLimit = 304

	// bufferFullFrameExposures is the number of full frame exposures the buffer holds
	bufferFullFrameExposures = 2

	// bufferFullFrameSamples is the sample count of those exposures
	bufferFullFrameSamples = 16
)

// MaxExposuresBeforeDump calculates the maximum number of exposures that can
// be taken before a buffer dump.  It does this by checking the limit on the
// number of reads (including the zero read) of 304 and the size limit of two
// full frame 16 sample exposures, which smaller subarrays stretch proportionally.
func MaxExposuresBeforeDump(nsamp, subarray int) (int, error) {
	if nsamp <= 0 || subarray <= 0 {
		return 0, &modes.InvalidModeError{SampSeq: "", NSamp: nsamp, Subarray: subarray}
	}
	headersPerExp := float64(nsamp + 1) // + 1 for zero read

	totalAllowedReads := bufferFullFrameExposures * bufferFullFrameSamples * (float64(FullFrame) / float64(subarray))
	totalAllowedReads = math.Min(totalAllowedReads, HardReadLimit)

	return int(math.Floor(totalAllowedReads / headersPerExp)), nil
}
