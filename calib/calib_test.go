package calib_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nasa-jpl/wfc3ir/calib"
)

func TestPathJoinsRelative(t *testing.T) {
	r := calib.Root{Dir: "/cdbs"}
	got := r.Path(filepath.Join("calb", "wfc3", "lin.fits"))
	want := filepath.Join("/cdbs", "calb", "wfc3", "lin.fits")
	if got != want {
		t.Errorf("expected %s got %s", want, got)
	}
}

func TestPathKeepsAbsolute(t *testing.T) {
	r := calib.Root{Dir: "/cdbs"}
	abs := filepath.Join(string(filepath.Separator), "tmp", "x.csv")
	if got := r.Path(abs); got != abs {
		t.Errorf("expected %s got %s", abs, got)
	}
}

func TestOpenExisting(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x"), 0666)
	if err != nil {
		t.Fatal(err)
	}
	f, err := calib.Root{Dir: dir}.Open("a.csv")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	f.Close()
}

func TestOpenMissingFails(t *testing.T) {
	_, err := calib.Root{Dir: t.TempDir()}.Open("nope.fits")
	if err == nil {
		t.Fatal("expected an error opening a missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected error to wrap os.ErrNotExist, got %v", err)
	}
}

func TestInvalidIsMatchable(t *testing.T) {
	err := calib.Invalid("lin.fits", "extension %d missing", 3)
	var ice *calib.InvalidCalibrationDataError
	if !errors.As(err, &ice) {
		t.Fatalf("expected InvalidCalibrationDataError, got %T", err)
	}
	if ice.Source != "lin.fits" || ice.Reason != "extension 3 missing" {
		t.Errorf("unexpected fields %+v", ice)
	}
}
