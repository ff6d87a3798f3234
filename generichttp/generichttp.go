// Package generichttp defines handler builders for getters and setters,
// an interface for types that expose a route table,
// and the mapping of domain errors to HTTP status codes
package generichttp

import (
	"encoding/json"
	"errors"
	"go/types"
	"log"
	"net/http"
	"strings"

	"github.com/nasa-jpl/wfc3ir/detector"
	"github.com/nasa-jpl/wfc3ir/dq"
	"github.com/nasa-jpl/wfc3ir/modes"
	"github.com/nasa-jpl/wfc3ir/nonlinear"
	"github.com/nasa-jpl/wfc3ir/server"
)

// HTTPer is a type which has a route table
type HTTPer interface {
	RT() server.RouteTable
}

// SubMuxSanitize converts a URL stem such as "wfc3/ir" or "/wfc3/ir/*"
// into the "/wfc3/ir" form expected by chi's Mount
func SubMuxSanitize(str string) string {
	str = strings.Trim(str, "/*")
	if str == "" {
		return "/"
	}
	return "/" + str
}

// Status maps an error to an HTTP status code.
// Bad modes, sample counts, flags, and shapes are the client's fault (400),
// a pixel with no real solution is 422.  Anything else, including
// invalid calibration data, is 500
func Status(err error) int {
	var (
		mode   *modes.InvalidModeError
		nsamp  *modes.InvalidSampleCountError
		flag   *dq.UnknownFlagError
		shape  *detector.ShapeMismatchError
		solve  *nonlinear.NonLinearitySolveError
		parsed *BadRequestError
	)
	switch {
	case errors.As(err, &mode), errors.As(err, &nsamp), errors.As(err, &flag),
		errors.As(err, &shape), errors.As(err, &parsed), errors.Is(err, dq.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.As(err, &solve):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// BadRequestError wraps an error caused by a malformed request
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string {
	return e.Err.Error()
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// Error replies to the request with err's message and the code from Status
func Error(w http.ResponseWriter, err error) {
	code := Status(err)
	if code >= http.StatusInternalServerError {
		log.Println(err)
	}
	http.Error(w, err.Error(), code)
}

// GetFloat calls a float-getting function and returns the response
// as json {'f64': value}
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		if err != nil {
			Error(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Float64, Float: f}
		hp.EncodeAndRespond(w, r)
	}
}

// SetFloat parses a JSON input of {'f64': value} and
// calls fcn with it
func SetFloat(fcn func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := server.FloatT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(f.F64); err != nil {
			Error(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetInt calls an int-getting function and returns the response
// as json {'int': value}
func GetInt(fcn func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i, err := fcn()
		if err != nil {
			Error(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Int, Int: i}
		hp.EncodeAndRespond(w, r)
	}
}

// SetInt parses a JSON input of {'int': value} and
// calls fcn with it
func SetInt(fcn func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := server.IntT{}
		err := json.NewDecoder(r.Body).Decode(&i)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(i.Int); err != nil {
			Error(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetString calls a string-getting function and returns the response
// as json {'str': value}
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		if err != nil {
			Error(w, err)
			return
		}
		hp := server.HumanPayload{T: types.String, String: s}
		hp.EncodeAndRespond(w, r)
	}
}

// SetString parses a JSON input of {'str': value} and
// calls fcn with it
func SetString(fcn func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := server.StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(s.Str); err != nil {
			Error(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetBool calls a bool-getting function and returns the response
// as json {'bool': value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			Error(w, err)
			return
		}
		hp := server.HumanPayload{T: types.Bool, Bool: b}
		hp.EncodeAndRespond(w, r)
	}
}

// SetBool parses a JSON input of {'bool': value} and
// calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := server.BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(b.Bool); err != nil {
			Error(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
