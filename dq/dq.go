/*Package dq decodes WFC3 IR data quality flags.

A flag is a 15 bit mask, one bit per known problem.  Positions count from the
most significant bit, so position 0 (ghost) is the value 16384 and position 14
(reedsolomon) is the value 1.  The taxonomy follows the WFC3 data handbook.

	f := dq.MustNew(16384 + 16)
	f.Problems() // [ghost hot]
	f.IsHot()    // true
*/
package dq

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NBits is the number of bits in a flag
const NBits = 15

// MaxValue is the largest valid flag
const MaxValue = 1<<NBits - 1

// ErrOutOfRange is generated when a flag value does not fit in 15 bits
var ErrOutOfRange = errors.New("data quality flag out of range")

// UnknownFlagError is generated when a flag name is not in the taxonomy
type UnknownFlagError struct {
	Name string
}

func (e *UnknownFlagError) Error() string {
	return fmt.Sprintf("%s is not a valid flag", e.Name)
}

// Definition describes one bit of the flag
type Definition struct {
	// Position is the index from the most significant bit, 0..14
	Position int `json:"position"`

	// Name is the short name, e.g. "hot"
	Name string `json:"name"`

	// Description is the handbook description
	Description string `json:"description"`
}

// Mask returns the bit of the flag value for this definition
func (d Definition) Mask() Flag {
	return 1 << uint(NBits-1-d.Position)
}

// Derived is a flag which is raised if any of several bits are
type Derived struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Positions   []int  `json:"positions"`
}

// Mask returns the OR of the bits of the positions
func (d Derived) Mask() Flag {
	var m Flag
	for _, p := range d.Positions {
		m |= Definitions[p].Mask()
	}
	return m
}

// Definitions is the taxonomy, ordered by position
var Definitions = [NBits]Definition{
	{0, "ghost", "ghost/crosstalk"},
	{1, "cosmic-calwf3", "cosmic ray (calwf3 up-the-ramp fitting)"},
	{2, "cosmic-drizzle", "cosmic ray (MultiDrizzle)"},
	{3, "zero-signal", "Signal in zero-read"},
	{4, "reserved", "(Reserved)"},
	{5, "badflat", "Bad or uncertain flat value"},
	{6, "saturated", "Full-well saturation"},
	{7, "badref", "Bad reference pixel"},
	{8, "warm", "Warm pixel"},
	{9, "unstable", "Unstable response"},
	{10, "hot", "Hot pixel"},
	{11, "deviantzero", "Deviant zero-read (bias) value"},
	{12, "badpix", "Bad detector pixel"},
	{13, "filled", "Data missing and replaced by fill value"},
	{14, "reedsolomon", "Reed-Solomon decoding error"},
}

// DerivedFlags combine bits into more general flags
var DerivedFlags = []Derived{
	{Name: "cosmic", Description: "Cosmic ray", Positions: []int{1, 2}},
}

// masks maps every known name, base and derived, to its bits
var masks = func() map[string]Flag {
	m := make(map[string]Flag, NBits+len(DerivedFlags))
	for _, d := range Definitions {
		m[d.Name] = d.Mask()
	}
	for _, d := range DerivedFlags {
		m[d.Name] = d.Mask()
	}
	return m
}()

// Names returns every name accepted by Has, base names in position order then derived names
func Names() []string {
	out := make([]string, 0, NBits+len(DerivedFlags))
	for _, d := range Definitions {
		out = append(out, d.Name)
	}
	for _, d := range DerivedFlags {
		out = append(out, d.Name)
	}
	return out
}

// MaskOf returns the bits of a named flag
func MaskOf(name string) (Flag, error) {
	m, ok := masks[strings.ToLower(name)]
	if !ok {
		return 0, &UnknownFlagError{Name: name}
	}
	return m, nil
}

// Flag is a single data quality value
type Flag uint16

// New returns the Flag for v, which must be in [0, MaxValue]
func New(v int) (Flag, error) {
	if v < 0 || v > MaxValue {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, v, MaxValue)
	}
	return Flag(v), nil
}

// MustNew is New but panics on an out of range value
func MustNew(v int) Flag {
	f, err := New(v)
	if err != nil {
		panic(err)
	}
	return f
}

// Binary returns the zero padded 15 character binary representation, most significant bit first
func (f Flag) Binary() string {
	s := strconv.FormatUint(uint64(f), 2)
	return strings.Repeat("0", NBits-len(s)) + s
}

func (f Flag) bit(pos int) bool {
	return f&Definitions[pos].Mask() != 0
}

// IsBad returns true if any problem is flagged
func (f Flag) IsBad() bool { return f != 0 }

// IsGhost returns true for ghost/crosstalk
func (f Flag) IsGhost() bool { return f.bit(0) }

// IsCosmicCalwf3 returns true for a cosmic ray found by calwf3 up-the-ramp fitting
func (f Flag) IsCosmicCalwf3() bool { return f.bit(1) }

// IsCosmicDrizzle returns true for a cosmic ray found by MultiDrizzle
func (f Flag) IsCosmicDrizzle() bool { return f.bit(2) }

// IsCosmic returns true if either method flagged a cosmic ray
func (f Flag) IsCosmic() bool { return f.bit(1) || f.bit(2) }

// IsZeroSignal returns true for signal in the zero read
func (f Flag) IsZeroSignal() bool { return f.bit(3) }

// IsReserved returns true if the reserved bit is set
func (f Flag) IsReserved() bool { return f.bit(4) }

// IsBadFlat returns true for a bad or uncertain flat value
func (f Flag) IsBadFlat() bool { return f.bit(5) }

// IsSaturated returns true for full-well saturation
func (f Flag) IsSaturated() bool { return f.bit(6) }

// IsBadRef returns true for a bad reference pixel
func (f Flag) IsBadRef() bool { return f.bit(7) }

// IsWarm returns true for a warm pixel
func (f Flag) IsWarm() bool { return f.bit(8) }

// IsUnstable returns true for an unstable response
func (f Flag) IsUnstable() bool { return f.bit(9) }

// IsHot returns true for a hot pixel
func (f Flag) IsHot() bool { return f.bit(10) }

// IsDeviantZero returns true for a deviant zero-read (bias) value
func (f Flag) IsDeviantZero() bool { return f.bit(11) }

// IsBadPix returns true for a bad detector pixel
func (f Flag) IsBadPix() bool { return f.bit(12) }

// IsFilled returns true for data missing and replaced by fill value
func (f Flag) IsFilled() bool { return f.bit(13) }

// IsReedSolomon returns true for a Reed-Solomon decoding error
func (f Flag) IsReedSolomon() bool { return f.bit(14) }

// Problems returns the short names of every raised flag in position order
func (f Flag) Problems() []string {
	out := []string{}
	for _, d := range Definitions {
		if f&d.Mask() != 0 {
			out = append(out, d.Name)
		}
	}
	return out
}

// Has returns true if the named flag, base or derived, is raised
func (f Flag) Has(name string) (bool, error) {
	m, err := MaskOf(name)
	if err != nil {
		return false, err
	}
	return f&m != 0, nil
}

func (f Flag) String() string {
	return fmt.Sprintf("%d (%s) %v", uint16(f), f.Binary(), f.Problems())
}
