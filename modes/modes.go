/*Package modes holds the WFC3-IR readout mode timing table.

The table maps a (sample sequence, subarray, sample count) triplet to the
cumulative time of that read.  It is loaded once from a CSV resource with the
columns SUBARRAY, SAMPSEQ, NSAMP and TIME and is immutable afterwards, so a
*Table may be shared by any number of goroutines.
*/
package modes

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nasa-jpl/wfc3ir/util"
)

const (
	// MinSamples is the smallest permitted NSAMP
	MinSamples = 1

	// MaxSamples is the largest permitted NSAMP
	MaxSamples = 15
)

// InvalidModeError is generated when no row of the table matches the requested mode
type InvalidModeError struct {
	SampSeq  string
	NSamp    int
	Subarray int
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("SAMPSEQ=%s, NSAMP=%d, SUBARRAY=%d is not a permitted combination", e.SampSeq, e.NSamp, e.Subarray)
}

// InvalidSampleCountError is generated when NSAMP lies outside [MinSamples, MaxSamples]
type InvalidSampleCountError struct {
	NSamp int
}

func (e *InvalidSampleCountError) Error() string {
	return fmt.Sprintf("NSAMP must be an integer between %d and %d, got %d", MinSamples, MaxSamples, e.NSamp)
}

// Row is a single line of the timing table
type Row struct {
	Subarray int     `json:"subarray"`
	SampSeq  string  `json:"sampseq"`
	NSamp    int     `json:"nsamp"`
	Time     float64 `json:"time"`
}

type modeKey struct {
	sampseq  string
	subarray int
	nsamp    int
}

type rampKey struct {
	sampseq  string
	subarray int
}

// Table is the lookup structure over readout modes
type Table struct {
	times map[modeKey]float64

	// ramps holds the rows of each (sampseq, subarray) pair sorted by NSamp
	ramps map[rampKey][]Row
}

func normalize(sampseq string) string {
	return strings.ToUpper(strings.TrimSpace(sampseq))
}

// newTable builds the indices from rows.  Rows may be in any order
func newTable(rows []Row) (*Table, error) {
	t := &Table{
		times: make(map[modeKey]float64, len(rows)),
		ramps: make(map[rampKey][]Row),
	}
	for _, r := range rows {
		r.SampSeq = normalize(r.SampSeq)
		k := modeKey{r.SampSeq, r.Subarray, r.NSamp}
		if _, dup := t.times[k]; dup {
			return nil, fmt.Errorf("duplicate mode %s/%d/%d", r.SampSeq, r.Subarray, r.NSamp)
		}
		t.times[k] = r.Time
		rk := rampKey{r.SampSeq, r.Subarray}
		t.ramps[rk] = append(t.ramps[rk], r)
	}
	for _, ramp := range t.ramps {
		sort.Slice(ramp, func(i, j int) bool { return ramp[i].NSamp < ramp[j].NSamp })
	}
	return t, nil
}

// ExposureTime retrieves the total exposure time in seconds for the mode given
func (t *Table) ExposureTime(nsamp, subarray int, sampseq string) (float64, error) {
	sampseq = normalize(sampseq)
	tm, ok := t.times[modeKey{sampseq, subarray, nsamp}]
	if !ok {
		return 0, &InvalidModeError{SampSeq: sampseq, NSamp: nsamp, Subarray: subarray}
	}
	return tm, nil
}

// ExposureDuration is ExposureTime as a time.Duration
func (t *Table) ExposureDuration(nsamp, subarray int, sampseq string) (time.Duration, error) {
	secs, err := t.ExposureTime(nsamp, subarray, sampseq)
	if err != nil {
		return 0, err
	}
	return util.SecsToDuration(secs), nil
}

// ReadTimes retrieves the time of each sample up the ramp, from the first
// sample to nsamp, in increasing sample order
func (t *Table) ReadTimes(nsamp, subarray int, sampseq string) ([]float64, error) {
	if nsamp < MinSamples || nsamp > MaxSamples {
		return nil, &InvalidSampleCountError{NSamp: nsamp}
	}
	sampseq = normalize(sampseq)
	ramp := t.ramps[rampKey{sampseq, subarray}]
	out := make([]float64, 0, nsamp)
	for _, r := range ramp {
		if r.NSamp > nsamp {
			break
		}
		out = append(out, r.Time)
	}
	if len(out) == 0 {
		return nil, &InvalidModeError{SampSeq: sampseq, NSamp: nsamp, Subarray: subarray}
	}
	return out, nil
}

// Len is the number of rows in the table
func (t *Table) Len() int {
	return len(t.times)
}

// Rows returns a copy of every row, ordered by sample sequence, subarray, then NSAMP
func (t *Table) Rows() []Row {
	out := make([]Row, 0, len(t.times))
	for _, ramp := range t.ramps {
		out = append(out, ramp...)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SampSeq != b.SampSeq {
			return a.SampSeq < b.SampSeq
		}
		if a.Subarray != b.Subarray {
			return a.Subarray < b.Subarray
		}
		return a.NSamp < b.NSamp
	})
	return out
}

// SampleSequences lists the distinct sample sequences in the table, sorted
func (t *Table) SampleSequences() []string {
	seen := map[string]struct{}{}
	for k := range t.ramps {
		seen[k.sampseq] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Subarrays lists the subarray sizes available for a sample sequence, ascending
func (t *Table) Subarrays(sampseq string) []int {
	sampseq = normalize(sampseq)
	out := []int{}
	for k := range t.ramps {
		if k.sampseq == sampseq {
			out = append(out, k.subarray)
		}
	}
	sort.Ints(out)
	return out
}
