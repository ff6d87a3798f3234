// Package imgrec contains an image recorder used to automatically save corrected frames to disk.
package imgrec

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/snksoft/crc"

	"github.com/nasa-jpl/wfc3ir/generichttp"
	"github.com/nasa-jpl/wfc3ir/server"
)

// CRCCardName is the header keyword holding the CRC-32 of the pixel data
const CRCCardName = "DATACRC"

var crcTable = crc.NewTable(crc.CRC32)

// DataCRC computes the CRC-32 of pixel data, serialized as big-endian
// IEEE-754 doubles the way FITS stores BITPIX=-64
func DataCRC(data []float64) uint32 {
	buf := make([]byte, 8)
	c := crcTable.InitCrc()
	for _, v := range data {
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
		c = crcTable.UpdateCrc(c, buf)
	}
	return crcTable.CRC32(c)
}

// CRCCard returns a FITS card carrying DataCRC(data) as 8 hex digits
func CRCCard(data []float64) fitsio.Card {
	return fitsio.Card{
		Name:    CRCCardName,
		Value:   fmt.Sprintf("%08x", DataCRC(data)),
		Comment: "CRC-32 of the pixel data"}
}

// Verify checks the CRC card of the primary image in a FITS file against its data
func Verify(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	fits, err := fitsio.Open(f)
	if err != nil {
		return err
	}
	defer fits.Close()
	img, ok := fits.HDU(0).(fitsio.Image)
	if !ok {
		return fmt.Errorf("%s: primary HDU is not an image", fn)
	}
	card := img.Header().Get(CRCCardName)
	if card == nil {
		return fmt.Errorf("%s: no %s card", fn, CRCCardName)
	}
	axes := img.Header().Axes()
	n := 1
	for _, a := range axes {
		n *= a
	}
	data := make([]float64, n)
	if err = img.Read(&data); err != nil {
		return err
	}
	want := fmt.Sprintf("%08x", DataCRC(data))
	if got := fmt.Sprint(card.Value); got != want {
		return fmt.Errorf("%s: %s is %s, data hashes to %s", fn, CRCCardName, got, want)
	}
	return nil
}

// Recorder records frames with incrementing filenames in yyyy-mm-dd subfolders.
// It is safe for concurrent use
type Recorder struct {
	mu sync.Mutex

	// counter is the internally incrementing counter
	counter int

	// last is the path of the most recently saved file
	last string

	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// timeFldr is the subfolder with yyyy-mm-dd format.
	timeFldr string

	// Enabled is a flag unused by this struct that allows consumers to disable its use in their code
	Enabled bool
}

// Active returns true if the recorder is enabled and has a root
func (r *Recorder) Active() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Enabled && r.Root != ""
}

// updateFolder checks the current time and updates the folder as needed
func (r *Recorder) updateFolder() {
	now := time.Now()
	r.timeFldr = fmt.Sprintf("%04d-%02d-%02d", now.Year(), now.Month(), now.Day())
}

// mkDir makes the folder and returns it
func (r *Recorder) mkDir() (string, error) {
	fldr := filepath.Join(r.Root, r.timeFldr)
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

func (r *Recorder) filename(fldr string) string {
	return filepath.Join(fldr, fmt.Sprintf("%s%06d.fits", r.Prefix, r.counter))
}

// Write implements io.Writer and appends p to the current file
func (r *Recorder) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(p)
}

func (r *Recorder) write(p []byte) (int, error) {
	r.updateFolder()
	fldr, err := r.mkDir()
	if err != nil {
		return 0, err
	}
	fn := r.filename(fldr)
	fid, err := os.OpenFile(fn, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0666)
	if err != nil {
		return 0, err
	}
	defer fid.Close()
	r.last = fn
	return fid.Write(p)
}

// Save writes p as a new file, numbered one past the highest existing file
// in today's folder, and returns its path
func (r *Recorder) Save(p []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incr()
	if _, err := r.write(p); err != nil {
		return "", err
	}
	return r.last, nil
}

// Last returns the path of the most recently written file, or "" if there is none
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Incr updates the filename counter; it scans the folder to do so.  If there is an error, the counter is not incremented
func (r *Recorder) Incr() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incr()
}

func (r *Recorder) incr() {
	r.updateFolder()
	dn, err := r.mkDir()
	if err != nil {
		return
	}
	files, err := os.ReadDir(dn)
	if err != nil {
		return
	}
	count := -1
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		fn := file.Name()
		if !strings.HasSuffix(fn, ".fits") || !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		bit := strings.TrimSuffix(strings.TrimPrefix(fn, r.Prefix), ".fits")
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		if count < n {
			count = n
		}
	}
	r.counter = count + 1
}

// HTTPWrapper is an HTTP wrapper around an image recorder that allows the folder and prefix to be changed on the fly
//
// it does not implement generichttp.HTTPer, offering an Inject method allowing it to be injected
// into another route table
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

func (h HTTPWrapper) setRoot(root string) error {
	rec := h.Recorder
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.Root = root
	rec.updateFolder()
	if _, err := rec.mkDir(); err != nil {
		return &generichttp.BadRequestError{Err: err}
	}
	return nil
}

func (h HTTPWrapper) getRoot() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Root, nil
}

func (h HTTPWrapper) setPrefix(prefix string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Prefix = prefix
	h.counter = 0
	return nil
}

func (h HTTPWrapper) getPrefix() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Prefix, nil
}

func (h HTTPWrapper) setEnabled(b bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Enabled = b
	return nil
}

func (h HTTPWrapper) getEnabled() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Enabled, nil
}

// GetLast sends the most recently recorded file
func (h HTTPWrapper) GetLast(w http.ResponseWriter, r *http.Request) {
	fn := h.Last()
	if fn == "" {
		http.Error(w, "no frame has been recorded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/fits")
	server.ReplyWithFile(w, r, filepath.Base(fn), filepath.Dir(fn))
}

// Inject adds GET and POST routes for /autowrite/root, /autowrite/prefix, and /autowrite/enabled
// and a GET route for /autowrite/last to the route table which manipulate this wrapper's recorder
func (h HTTPWrapper) Inject(rt server.RouteTable) {
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}] = generichttp.SetString(h.setRoot)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/root"}] = generichttp.GetString(h.getRoot)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}] = generichttp.SetString(h.setPrefix)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}] = generichttp.GetString(h.getPrefix)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite/enabled"}] = generichttp.SetBool(h.setEnabled)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/enabled"}] = generichttp.GetBool(h.getEnabled)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite/last"}] = h.GetLast
}
