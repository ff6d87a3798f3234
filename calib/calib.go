/*Package calib locates and opens calibration reference resources.

The reference root is an explicit directory handed to Root; nothing is read from
the process environment.  A typical layout mirrors the CDBS tree,

	<root>/calb/wfc3/u1k1727mi_lin.fits
	<root>/wfc3_ir_mode_exptime.csv

Files are opened through Open, which retries the open (not the parse) with an
exponential backoff for slow or remote mounts.
*/
package calib

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
)

// InvalidCalibrationDataError is generated when a calibration resource is
// missing required content, is malformed, or is too small for its use
type InvalidCalibrationDataError struct {
	// Source is the file name or other description of the resource
	Source string

	// Reason describes what is wrong with it
	Reason string
}

func (e *InvalidCalibrationDataError) Error() string {
	if e.Source == "" {
		return "invalid calibration data: " + e.Reason
	}
	return fmt.Sprintf("invalid calibration data in %s: %s", e.Source, e.Reason)
}

// Invalid is a shorthand to build an InvalidCalibrationDataError with a formatted reason
func Invalid(source, format string, args ...interface{}) error {
	return &InvalidCalibrationDataError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// Root is a directory holding calibration references
type Root struct {
	// Dir is the root directory.  Relative paths passed to Path are joined to it
	Dir string

	// Retries is the number of additional attempts made to open a file.
	// zero means a single attempt
	Retries uint64
}

// Path resolves name against the root.  Absolute names are returned unchanged
func (r Root) Path(name string) string {
	if filepath.IsAbs(name) || r.Dir == "" {
		return name
	}
	return filepath.Join(r.Dir, name)
}

// Open opens name (resolved with Path) for reading.  The caller must close the file
func (r Root) Open(name string) (*os.File, error) {
	var f *os.File
	path := r.Path(name)
	op := func() error {
		var err error
		f, err = os.Open(path)
		return err
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      10 * time.Second,
		Clock:               backoff.SystemClock}
	b.Reset()
	err := backoff.Retry(op, backoff.WithMaxRetries(b, r.Retries))
	if err != nil {
		return nil, fmt.Errorf("opening calibration resource %s: %w", path, err)
	}
	return f, nil
}
