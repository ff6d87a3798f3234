package detector_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nasa-jpl/wfc3ir/detector"
	"github.com/nasa-jpl/wfc3ir/modes"
)

func ExampleMaxExposuresBeforeDump() {
	n, _ := detector.MaxExposuresBeforeDump(15, 1024)
	fmt.Println(n)
	// Output: 2
}

func TestMaxExposuresBeforeDump(t *testing.T) {
	cases := []struct{ nsamp, subarray, want int }{
		{15, 1024, 2},
		{1, 256, 64},
		{1, 1024, 16},
		{15, 512, 4},
		{1, 64, 152}, // hard limit of 304 reads
		{15, 64, 19}, // 304 / 16
		{3, 128, 64}, // 256 / 4
	}
	for _, c := range cases {
		got, err := detector.MaxExposuresBeforeDump(c.nsamp, c.subarray)
		if err != nil {
			t.Errorf("(%d, %d) unexpected error %v", c.nsamp, c.subarray, err)
			continue
		}
		if got != c.want {
			t.Errorf("(%d, %d) expected %d got %d", c.nsamp, c.subarray, c.want, got)
		}
	}
}

func TestMaxExposuresBeforeDumpInvalid(t *testing.T) {
	for _, in := range [][2]int{{0, 1024}, {15, 0}, {-1, 256}} {
		_, err := detector.MaxExposuresBeforeDump(in[0], in[1])
		var ime *modes.InvalidModeError
		if !errors.As(err, &ime) {
			t.Errorf("%v: expected InvalidModeError got %v", in, err)
		}
	}
}
