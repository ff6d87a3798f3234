// Package detector provides an HTTP interface to the WFC3 IR readout model
// and non-linearity correction
package detector

import (
	"bytes"
	"context"
	"fmt"
	"go/types"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/mat"

	"github.com/nasa-jpl/wfc3ir/camera"
	det "github.com/nasa-jpl/wfc3ir/detector"
	"github.com/nasa-jpl/wfc3ir/dq"
	"github.com/nasa-jpl/wfc3ir/generichttp"
	"github.com/nasa-jpl/wfc3ir/imgrec"
	"github.com/nasa-jpl/wfc3ir/nonlinear"
	"github.com/nasa-jpl/wfc3ir/server"
	"github.com/nasa-jpl/wfc3ir/server/middleware/locker"
)

// MaxFrameBytes bounds the size of a FITS upload to /nonlinear
const MaxFrameBytes = 64 << 20

// Detector is a readout model with a frame geometry
type Detector interface {
	camera.RampReadout
	camera.FrameShaper
}

// Calibration is the pair of resources the server is built from
type Calibration struct {
	Detector  Detector
	Reference *nonlinear.Reference
}

// Loader produces a fresh Calibration, e.g. by re-reading files from disk
type Loader func() (Calibration, error)

// HTTPDetector wraps a Detector and non-linearity reference in an HTTP interface
type HTTPDetector struct {
	mu  sync.RWMutex
	cal Calibration

	// reloading serializes Reload so one caller cannot unlock Locker
	// while another is still loading
	reloading sync.Mutex

	// Corrector inverts the non-linearity of uploaded frames
	Corrector *nonlinear.Corrector

	// Recorder, if active, receives a copy of every corrected frame
	Recorder *imgrec.Recorder

	// Limiter, if not nil, throttles /nonlinear
	Limiter *rate.Limiter

	// Locker is locked while the calibration is being reloaded
	Locker *locker.Locker

	// Loader, if not nil, enables POST /reload
	Loader Loader

	RouteTable server.RouteTable
}

// Options configures NewHTTPDetector
type Options struct {
	Corrector *nonlinear.Corrector
	Recorder  *imgrec.Recorder
	Limiter   *rate.Limiter
	Locker    *locker.Locker
	Loader    Loader
}

// NewHTTPDetector returns a new HTTP wrapper with the route table populated
func NewHTTPDetector(cal Calibration, opts Options) *HTTPDetector {
	h := &HTTPDetector{
		cal:        cal,
		Corrector:  opts.Corrector,
		Recorder:   opts.Recorder,
		Limiter:    opts.Limiter,
		Locker:     opts.Locker,
		Loader:     opts.Loader,
		RouteTable: server.RouteTable{},
	}
	if h.Corrector == nil {
		h.Corrector = &nonlinear.Corrector{}
	}
	if h.Locker == nil {
		h.Locker = locker.New()
	}
	rt := h.RouteTable
	rt[server.MethodPath{Method: http.MethodGet, Path: "/exposure-time"}] = h.GetExposureTime
	rt[server.MethodPath{Method: http.MethodGet, Path: "/read-times"}] = h.GetReadTimes
	rt[server.MethodPath{Method: http.MethodGet, Path: "/buffer"}] = h.GetBuffer
	rt[server.MethodPath{Method: http.MethodGet, Path: "/constants"}] = h.GetConstants
	rt[server.MethodPath{Method: http.MethodGet, Path: "/dq/{flag}"}] = GetFlag
	rt[server.MethodPath{Method: http.MethodGet, Path: "/dq/{flag}/has/{name}"}] = GetFlagHas
	rt[server.MethodPath{Method: http.MethodPost, Path: "/nonlinear"}] = h.limit(h.PostNonlinear)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/nonlinear/tolerance"}] = generichttp.GetFloat(h.tolerance)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/nonlinear/tolerance"}] = generichttp.SetFloat(h.setTolerance)
	rt[server.MethodPath{Method: http.MethodGet, Path: "/nonlinear/workers"}] = generichttp.GetInt(h.workers)
	rt[server.MethodPath{Method: http.MethodPost, Path: "/nonlinear/workers"}] = generichttp.SetInt(h.setWorkers)
	if h.Loader != nil {
		rt[server.MethodPath{Method: http.MethodPost, Path: "/reload"}] = h.PostReload
	}
	if h.Recorder != nil {
		imgrec.NewHTTPWrapper(h.Recorder).Inject(rt)
	}
	locker.Inject(rt, h.Locker)
	return h
}

// RT satisfies generichttp.HTTPer
func (h *HTTPDetector) RT() server.RouteTable {
	return h.RouteTable
}

// Calibration returns the calibration currently in use
func (h *HTTPDetector) Calibration() Calibration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cal
}

// Bind binds the routes, guarded by the lock, to r
func (h *HTTPDetector) Bind(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Locker.Check)
		h.RouteTable.Bind(r)
	})
}

func badRequest(format string, args ...interface{}) error {
	return &generichttp.BadRequestError{Err: fmt.Errorf(format, args...)}
}

// queryInt parses an integer query parameter, falling back to def when absent.
// def < 0 makes the parameter required
func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		if def < 0 {
			return 0, badRequest("query parameter %s is required", name)
		}
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequest("query parameter %s=%q is not an integer", name, s)
	}
	return i, nil
}

type modeQuery struct {
	nsamp, subarray int
	sampseq         string
}

// parseMode reads nsamp (required), subarray (default 1024) and sampseq
func parseMode(r *http.Request, needSeq bool) (modeQuery, error) {
	var (
		q   modeQuery
		err error
	)
	if q.nsamp, err = queryInt(r, "nsamp", -1); err != nil {
		return q, err
	}
	if q.subarray, err = queryInt(r, "subarray", det.FullFrame); err != nil {
		return q, err
	}
	q.sampseq = r.URL.Query().Get("sampseq")
	if needSeq && q.sampseq == "" {
		return q, badRequest("query parameter sampseq is required")
	}
	return q, nil
}

// GetExposureTime replies with the exposure time in seconds as {"f64": ...}
func (h *HTTPDetector) GetExposureTime(w http.ResponseWriter, r *http.Request) {
	q, err := parseMode(r, true)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	t, err := h.Calibration().Detector.ExposureTime(q.nsamp, q.subarray, q.sampseq)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	hp := server.HumanPayload{T: types.Float64, Float: t}
	hp.EncodeAndRespond(w, r)
}

// GetReadTimes replies with the time of each sample as a JSON array
func (h *HTTPDetector) GetReadTimes(w http.ResponseWriter, r *http.Request) {
	q, err := parseMode(r, true)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	times, err := h.Calibration().Detector.ReadTimes(q.nsamp, q.subarray, q.sampseq)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	server.EncodeAndRespond(w, times)
}

// GetBuffer replies with the number of exposures before a buffer dump as {"int": ...}
func (h *HTTPDetector) GetBuffer(w http.ResponseWriter, r *http.Request) {
	q, err := parseMode(r, false)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	n, err := h.Calibration().Detector.NumExpPerBuffer(q.nsamp, q.subarray)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	hp := server.HumanPayload{T: types.Int, Int: n}
	hp.EncodeAndRespond(w, r)
}

// Constants are the physical constants of the detector
type Constants struct {
	PixelPitch     float64 `json:"pixelPitch"`
	TelescopeArea  float64 `json:"telescopeArea"`
	FullFrame      int     `json:"fullFrame"`
	LightSensitive int     `json:"lightSensitive"`
	Subarrays      []int   `json:"subarrays"`
}

// GetConstants replies with the physical constants of the detector
func (h *HTTPDetector) GetConstants(w http.ResponseWriter, r *http.Request) {
	d := h.Calibration().Detector
	server.EncodeAndRespond(w, Constants{
		PixelPitch:     d.PixelPitch(),
		TelescopeArea:  d.TelescopeArea(),
		FullFrame:      det.FullFrame,
		LightSensitive: det.LightSensitive,
		Subarrays:      det.Subarrays,
	})
}

// FlagReport is the decoded form of a data quality value
type FlagReport struct {
	Value    int      `json:"value"`
	Binary   string   `json:"binary"`
	Bad      bool     `json:"bad"`
	Problems []string `json:"problems"`
	Cosmic   bool     `json:"cosmic"`
}

func parseFlag(r *http.Request) (dq.Flag, error) {
	s := chi.URLParam(r, "flag")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequest("flag %q is not an integer", s)
	}
	return dq.New(v)
}

// GetFlag decodes the data quality value in the URL
func GetFlag(w http.ResponseWriter, r *http.Request) {
	f, err := parseFlag(r)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	server.EncodeAndRespond(w, FlagReport{
		Value:    int(f),
		Binary:   f.Binary(),
		Bad:      f.IsBad(),
		Problems: f.Problems(),
		Cosmic:   f.IsCosmic(),
	})
}

// GetFlagHas replies with {"bool": ...}, true if the value in the URL has the named condition
func GetFlagHas(w http.ResponseWriter, r *http.Request) {
	f, err := parseFlag(r)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	has, err := f.Has(chi.URLParam(r, "name"))
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	hp := server.HumanPayload{T: types.Bool, Bool: has}
	hp.EncodeAndRespond(w, r)
}

// limit rejects requests with 429 when the limiter has no tokens
func (h *HTTPDetector) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter != nil && !h.Limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many correction requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// PostNonlinear corrects the FITS frame in the request body and replies with
// the corrected frame as FITS.  The frame may be the light sensitive area or
// any smaller centered region of it
func (h *HTTPDetector) PostNonlinear(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, MaxFrameBytes)
	defer body.Close()
	frame, err := ReadFits(body)
	if err != nil {
		generichttp.Error(w, &generichttp.BadRequestError{Err: err})
		return
	}
	cal := h.Calibration()
	if cal.Reference == nil {
		http.Error(w, "no non-linearity reference is loaded", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	out, err := h.corrector().CorrectWithReference(r.Context(), frame, cal.Reference)
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	var buf bytes.Buffer
	if err = EncodeCorrected(&buf, cal.Detector, cal.Reference, out, time.Since(start)); err != nil {
		generichttp.Error(w, err)
		return
	}
	if h.Recorder.Active() {
		fn, err := h.Recorder.Save(buf.Bytes())
		if err != nil {
			log.Printf("recording corrected frame: %v", err)
		} else {
			w.Header().Set("X-Recorded-As", fn)
		}
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "image/fits")
	hdr.Set("Content-Disposition", "attachment; filename=corrected.fits")
	hdr.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err = buf.WriteTo(w); err != nil {
		log.Printf("sending corrected frame: %v", err)
	}
}

// EncodeCorrected writes a corrected frame to w as FITS, with the detector's
// metadata, the reference that was used, and a CRC card over the pixels
func EncodeCorrected(w io.Writer, d Detector, ref *nonlinear.Reference, out mat.Matrix, elapsed time.Duration) error {
	cards := []fitsio.Card{}
	if carder, ok := d.(camera.MetadataMaker); ok {
		cards = carder.CollectHeaderMetadata()
	}
	cards = append(cards,
		fitsio.Card{Name: "NLINCORR", Value: "COMPLETE", Comment: "non-linearity correction"},
		fitsio.Card{Name: "NLINFILE", Value: ref.Source, Comment: "non-linearity reference"},
		fitsio.Card{Name: "NLINTIME", Value: elapsed.Seconds(), Comment: "correction wall time, s"},
		imgrec.CRCCard(pixels(out)))
	return WriteFits(w, cards, out)
}

// PostReload locks the server, reloads the calibration with Loader, and unlocks
func (h *HTTPDetector) PostReload(w http.ResponseWriter, r *http.Request) {
	if err := h.Reload(r.Context()); err != nil {
		generichttp.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Reload replaces the calibration with the output of Loader.
// Other routes reply 423 while it runs; on error the old calibration is kept.
// Concurrent calls run one after the other
func (h *HTTPDetector) Reload(ctx context.Context) error {
	if h.Loader == nil {
		return fmt.Errorf("no calibration loader configured")
	}
	h.reloading.Lock()
	defer h.reloading.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	h.Locker.Lock()
	defer h.Locker.Unlock()
	cal, err := h.Loader()
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cal = cal
	h.mu.Unlock()
	log.Println("calibration reloaded")
	return nil
}

// corrector returns the current corrector.  Setters replace it rather than mutate it
func (h *HTTPDetector) corrector() *nonlinear.Corrector {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Corrector
}

func (h *HTTPDetector) tolerance() (float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Corrector.Tolerance, nil
}

func (h *HTTPDetector) setTolerance(f float64) error {
	if f < 0 {
		return badRequest("tolerance must be non-negative, got %g", f)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c := *h.Corrector
	c.Tolerance = f
	h.Corrector = &c
	return nil
}

func (h *HTTPDetector) workers() (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Corrector.Workers, nil
}

func (h *HTTPDetector) setWorkers(n int) error {
	if n < 0 {
		return badRequest("workers must be non-negative, got %d", n)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c := *h.Corrector
	c.Workers = n
	h.Corrector = &c
	return nil
}
