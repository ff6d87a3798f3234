package dq_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/wfc3ir/dq"
)

func TestGridCount(t *testing.T) {
	g, err := dq.NewGrid(2, 3, []int{0, 16, 8192, 4096 + 16, 0, 16384})
	if err != nil {
		t.Fatal(err)
	}
	counts := g.Count()
	want := map[string]int{"bad": 4, "hot": 2, "cosmic": 2, "cosmic-calwf3": 1, "cosmic-drizzle": 1, "ghost": 1, "warm": 0}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("%s: expected %d got %d", k, v, counts[k])
		}
	}
	if g.At(1, 0) != 4096+16 {
		t.Errorf("At is not row-major")
	}
}

func TestGridMask(t *testing.T) {
	g, _ := dq.NewGrid(1, 4, []int{0, 16, 8192, 1})
	m, err := g.Mask("cosmic", "hot")
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{false, true, true, false}
	for i := range want {
		if m[i] != want[i] {
			t.Errorf("expected %v got %v", want, m)
			break
		}
	}
	all, _ := g.Mask()
	if !all[3] || all[0] {
		t.Errorf("expected no names to mask every bad pixel, got %v", all)
	}
	if _, err := g.Mask("nope"); err == nil {
		t.Errorf("expected an error for an unknown name")
	}
}

func TestNewGridRejectsBadValues(t *testing.T) {
	if _, err := dq.NewGrid(1, 2, []int{0, 40000}); !errors.Is(err, dq.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange got %v", err)
	}
	if _, err := dq.NewGrid(2, 2, []int{0}); err == nil {
		t.Errorf("expected an error for a short slice")
	}
}

func TestLoadGridFromExtension(t *testing.T) {
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	if err != nil {
		t.Fatal(err)
	}
	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Write(phdu); err != nil {
		t.Fatal(err)
	}
	sci := fitsio.NewImage(-32, []int{3, 2})
	sci.Header().Append(fitsio.Card{Name: "EXTNAME", Value: "SCI"})
	if err := sci.Write([]float32{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatal(err)
	}
	if err := f.Write(sci); err != nil {
		t.Fatal(err)
	}
	dqImg := fitsio.NewImage(16, []int{3, 2})
	dqImg.Header().Append(fitsio.Card{Name: "EXTNAME", Value: "DQ"})
	if err := dqImg.Write([]int16{0, 16, 0, 8192, 0, 16384}); err != nil {
		t.Fatal(err)
	}
	if err := f.Write(dqImg); err != nil {
		t.Fatal(err)
	}
	f.Close()

	g, err := dq.LoadGrid(bytes.NewReader(buf.Bytes()), "dq")
	if err != nil {
		t.Fatal(err)
	}
	if g.Rows != 2 || g.Cols != 3 {
		t.Fatalf("expected 2x3 got %dx%d", g.Rows, g.Cols)
	}
	if !g.At(0, 1).IsHot() || !g.At(1, 0).IsCosmic() || !g.At(1, 2).IsGhost() {
		t.Errorf("decoded grid wrong: %v", g.Data)
	}
	if _, err := dq.LoadGrid(bytes.NewReader(buf.Bytes()), "ERR"); err == nil {
		t.Errorf("expected an error for a missing extension")
	}
}

// writeDQ encodes a single DQ image at the given bitpix after an empty primary HDU
func writeDQ(t *testing.T, bitpix int, cols, rows int, data interface{}, cards ...fitsio.Card) []byte {
	t.Helper()
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	if err != nil {
		t.Fatal(err)
	}
	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Write(phdu); err != nil {
		t.Fatal(err)
	}
	im := fitsio.NewImage(bitpix, []int{cols, rows})
	cards = append([]fitsio.Card{{Name: "EXTNAME", Value: "DQ"}}, cards...)
	if err := im.Header().Append(cards...); err != nil {
		t.Fatal(err)
	}
	if err := im.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Write(im); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoadGridUnsigned16(t *testing.T) {
	// physical 0 and 16384 stored as signed 16 bit with the unsigned offset
	raw := writeDQ(t, 16, 2, 1, []int16{-32768, -16384}, fitsio.Card{Name: "BZERO", Value: 32768})
	g, err := dq.LoadGrid(bytes.NewReader(raw), "DQ")
	if err != nil {
		t.Fatal(err)
	}
	if g.At(0, 0) != 0 || g.At(0, 1) != 16384 || !g.At(0, 1).IsGhost() {
		t.Errorf("expected flags [0 16384] got %v", g.Data)
	}
}

func TestLoadGridByte(t *testing.T) {
	raw := writeDQ(t, 8, 3, 1, []uint8{0, 16, 255})
	g, err := dq.LoadGrid(bytes.NewReader(raw), "DQ")
	if err != nil {
		t.Fatal(err)
	}
	if g.At(0, 1) != 16 || g.At(0, 2) != 255 {
		t.Errorf("expected flags [0 16 255] got %v", g.Data)
	}
}

func TestLoadGridRejectsFractionalValues(t *testing.T) {
	raw := writeDQ(t, -32, 2, 1, []float32{0, 1.5})
	if _, err := dq.LoadGrid(bytes.NewReader(raw), "DQ"); err == nil {
		t.Fatal("expected an error for a non-integer flag")
	}
}
