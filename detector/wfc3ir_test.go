package detector_test

import (
	"strings"
	"testing"

	"github.com/nasa-jpl/wfc3ir/detector"
	"github.com/nasa-jpl/wfc3ir/modes"
)

const smallTable = `SUBARRAY,SAMPSEQ,NSAMP,TIME
512,RAPID,1,0.853
512,RAPID,2,1.706
1024,RAPID,1,2.932`

func newDetector(t *testing.T) *detector.WFC3IR {
	t.Helper()
	tbl, err := modes.Load(strings.NewReader(smallTable))
	if err != nil {
		t.Fatal(err)
	}
	return detector.New(tbl)
}

func TestWFC3IRDelegates(t *testing.T) {
	d := newDetector(t)
	if d.Telescope != "HST" || d.Instrument != "WFC3" || d.DetectorType != "IR" {
		t.Errorf("unexpected identity %s/%s/%s", d.Telescope, d.Instrument, d.DetectorType)
	}
	exp, err := d.ExposureTime(2, 512, "RAPID")
	if err != nil || exp != 1.706 {
		t.Errorf("expected 1.706, nil got %v, %v", exp, err)
	}
	times, err := d.ReadTimes(2, 512, "RAPID")
	if err != nil || len(times) != 2 {
		t.Errorf("expected two read times got %v, %v", times, err)
	}
	n, err := d.NumExpPerBuffer(1, 256)
	if err != nil || n != 64 {
		t.Errorf("expected 64 got %d, %v", n, err)
	}
	full, err := d.AddBiasPixels(d.PixelArray(true))
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := full.Dims(); r != detector.FullFrame {
		t.Errorf("expected a full frame got %d rows", r)
	}
}

func TestValidSubarray(t *testing.T) {
	for _, n := range []int{64, 128, 256, 512, 1024} {
		if !detector.ValidSubarray(n) {
			t.Errorf("%d should be a valid subarray", n)
		}
	}
	for _, n := range []int{0, 32, 1014, 2048} {
		if detector.ValidSubarray(n) {
			t.Errorf("%d should not be a valid subarray", n)
		}
	}
}

func TestCollectHeaderMetadata(t *testing.T) {
	cards := newDetector(t).CollectHeaderMetadata()
	want := map[string]string{"TELESCOP": "HST", "INSTRUME": "WFC3", "DETECTOR": "IR"}
	if len(cards) != len(want) {
		t.Fatalf("got %d cards, want %d", len(cards), len(want))
	}
	for _, c := range cards {
		if c.Value != want[c.Name] {
			t.Errorf("card %s = %v, want %s", c.Name, c.Value, want[c.Name])
		}
	}
}
