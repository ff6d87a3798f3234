package detector

import (
	"bytes"
	"testing"

	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/mat"
)

func TestReadFitsAppliesScaling(t *testing.T) {
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	if err != nil {
		t.Fatal(err)
	}
	im := fitsio.NewImage(16, []int{3, 2})
	err = im.Header().Append(
		fitsio.Card{Name: "BZERO", Value: 32768},
		fitsio.Card{Name: "BSCALE", Value: 1.0})
	if err != nil {
		t.Fatal(err)
	}
	if err = im.Write([]int16{-32768, 0, 1, 2, 3, 32767}); err != nil {
		t.Fatal(err)
	}
	if err = f.Write(im); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFits(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := mat.NewDense(2, 3, []float64{0, 32768, 32769, 32770, 32771, 65535})
	if !mat.Equal(got, want) {
		t.Fatalf("got %v", mat.Formatted(got))
	}
}

func TestWriteReadFitsRoundTripShape(t *testing.T) {
	frame := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	var buf bytes.Buffer
	if err := WriteFits(&buf, []fitsio.Card{{Name: "OBSERVER", Value: "ir"}}, frame); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFits(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := got.Dims(); r != 2 || c != 3 {
		t.Fatalf("dims %dx%d", r, c)
	}
	if got.At(1, 0) != 4 {
		t.Fatalf("row major order lost: %v", mat.Formatted(got))
	}
}

func TestReadFitsRejectsCube(t *testing.T) {
	var buf bytes.Buffer
	f, _ := fitsio.Create(&buf)
	im := fitsio.NewImage(-64, []int{2, 2, 2})
	if err := im.Write(make([]float64, 8)); err != nil {
		t.Fatal(err)
	}
	f.Write(im)
	f.Close()
	if _, err := ReadFits(&buf); err == nil {
		t.Fatal("expected an error for a 3-D image")
	}
}
