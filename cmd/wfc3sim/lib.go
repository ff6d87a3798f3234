package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/wfc3ir/calib"
	"github.com/nasa-jpl/wfc3ir/detector"
	"github.com/nasa-jpl/wfc3ir/generichttp"
	httpdet "github.com/nasa-jpl/wfc3ir/generichttp/detector"
	"github.com/nasa-jpl/wfc3ir/imgrec"
	"github.com/nasa-jpl/wfc3ir/mathx"
	"github.com/nasa-jpl/wfc3ir/metrics"
	"github.com/nasa-jpl/wfc3ir/modes"
	"github.com/nasa-jpl/wfc3ir/nonlinear"
)

// Config is a struct that holds the initialization parameters for the server
// and the command line tools.  It is populated from defaults and wfc3sim.yml
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Endpoint is the URL stem the detector routes are served under, e.g. /wfc3ir
	Endpoint string `koanf:"Endpoint" yaml:"Endpoint"`

	// CalibrationRoot is the directory relative calibration file names are resolved against
	CalibrationRoot string `koanf:"CalibrationRoot" yaml:"CalibrationRoot"`

	// ModesTable is the mode timing table CSV
	ModesTable string `koanf:"ModesTable" yaml:"ModesTable"`

	// NonLinearFile is the non-linearity reference FITS.  If empty, /nonlinear replies 503
	NonLinearFile string `koanf:"NonLinearFile" yaml:"NonLinearFile"`

	// Workers is the number of goroutines used per correction, 0 for one per CPU
	Workers int `koanf:"Workers" yaml:"Workers"`

	// Tolerance is the largest relative imaginary part of an accepted root
	Tolerance float64 `koanf:"Tolerance" yaml:"Tolerance"`

	// OpenRetries is the number of times opening a calibration file is retried
	OpenRetries uint64 `koanf:"OpenRetries" yaml:"OpenRetries"`

	// RecordRoot, if not empty, enables recording of corrected frames under it
	RecordRoot string `koanf:"RecordRoot" yaml:"RecordRoot"`

	// RecordPrefix is the filename prefix of recorded frames
	RecordPrefix string `koanf:"RecordPrefix" yaml:"RecordPrefix"`

	// CorrectionsPerSecond limits the rate of /nonlinear requests, 0 for no limit
	CorrectionsPerSecond float64 `koanf:"CorrectionsPerSecond" yaml:"CorrectionsPerSecond"`
}

// DefaultConfig is the configuration used when there is no file
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8000",
		Endpoint:             "/wfc3ir",
		CalibrationRoot:      ".",
		ModesTable:           "wfc3_ir_mode_exptime.csv",
		Tolerance:            nonlinear.DefaultTolerance,
		OpenRetries:          3,
		RecordPrefix:         "nl",
		CorrectionsPerSecond: 2,
	}
}

// Root returns the calibration root described by c
func (c Config) Root() calib.Root {
	return calib.Root{Dir: c.CalibrationRoot, Retries: c.OpenRetries}
}

// Corrector returns the corrector described by c
func (c Config) Corrector(rec nonlinear.Recorder) *nonlinear.Corrector {
	return &nonlinear.Corrector{Workers: c.Workers, Tolerance: c.Tolerance, Metrics: rec}
}

// LoadDetector loads the mode timing table
func LoadDetector(c Config) (*detector.WFC3IR, error) {
	tbl, err := modes.LoadFromRoot(c.Root(), c.ModesTable)
	if err != nil {
		return nil, err
	}
	return detector.New(tbl), nil
}

// LoadCalibration loads the mode timing table and, if configured, the non-linearity reference
func LoadCalibration(c Config) (httpdet.Calibration, error) {
	d, err := LoadDetector(c)
	if err != nil {
		return httpdet.Calibration{}, err
	}
	cal := httpdet.Calibration{Detector: d}
	if c.NonLinearFile != "" {
		cal.Reference, err = nonlinear.LoadReferenceFile(c.Root(), c.NonLinearFile)
		if err != nil {
			return httpdet.Calibration{}, err
		}
	}
	return cal, nil
}

// BuildMux loads the calibration and constructs a chi mux serving the
// detector routes under c.Endpoint, /metrics, and /endpoints, which
// returns a map of stem to routes as JSON
func BuildMux(c Config, coll *metrics.Collector) (chi.Router, error) {
	cal, err := LoadCalibration(c)
	if err != nil {
		return nil, err
	}
	opts := httpdet.Options{
		Corrector: c.Corrector(coll),
		Loader:    func() (httpdet.Calibration, error) { return LoadCalibration(c) },
	}
	if c.CorrectionsPerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(c.CorrectionsPerSecond), 1)
	}
	if c.RecordRoot != "" {
		opts.Recorder = &imgrec.Recorder{Root: c.RecordRoot, Prefix: c.RecordPrefix, Enabled: true}
	}
	h := httpdet.NewHTTPDetector(cal, opts)

	root := chi.NewRouter()
	root.Use(middleware.Logger)
	root.Use(coll.Middleware)
	root.Handle("/metrics", coll.Handler())

	hndlS := generichttp.SubMuxSanitize(c.Endpoint)
	supergraph := map[string][]string{hndlS: h.RT().Endpoints()}
	r := chi.NewRouter()
	h.Bind(r)
	root.Mount(hndlS, r)
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root, nil
}

// formatSeconds renders a time in seconds rounded to the millisecond
func formatSeconds(t float64) string {
	return strconv.FormatFloat(mathx.Round(t, 1e-3), 'f', 3, 64)
}

func formatTimes(times []float64) string {
	strs := make([]string, len(times))
	for i, t := range times {
		strs[i] = formatSeconds(t)
	}
	return strings.Join(strs, " ")
}
