// Package server contains misc server utilities.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-chi/chi"
)

// FloatT is a struct with a single float64 field, F64
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single int field, Int
type IntT struct {
	Int int `json:"int"`
}

// StrT is a struct with a single string field, Str
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a struct with a single bool field, Bool
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload is a struct containing the basic types a handler may reply with.
// T selects which field is sent to the client
type HumanPayload struct {
	// T is the type of the payload, one of types.Bool, types.Int, types.Float64, types.String
	T types.BasicKind

	Bool   bool
	Int    int
	Float  float64
	String string
}

// EncodeAndRespond encodes the payload as JSON, {"f64": ...} for floats and
// so on, and writes it to w.  Errors are logged and replied with status 500
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch hp.T {
	case types.Bool:
		v = BoolT{Bool: hp.Bool}
	case types.Int:
		v = IntT{Int: hp.Int}
	case types.Float64:
		v = FloatT{F64: hp.Float}
	case types.String:
		v = StrT{Str: hp.String}
	default:
		fstr := fmt.Sprintf("unsupported payload kind %v", hp.T)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}
	EncodeAndRespond(w, v)
}

// EncodeAndRespond writes v to w as JSON with status 200
func EncodeAndRespond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding data to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// ReplyWithFile replies to the client request by serving the given file name
func ReplyWithFile(w http.ResponseWriter, r *http.Request, fn string, fldr string) {
	filePath, err := filepath.Abs(filepath.Join(fldr, fn))
	if err != nil {
		fstr := fmt.Sprintf("unable to compute abspath of file %s %s %s", fldr, fn, err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		fstr := fmt.Sprintf("source file missing %s", filePath)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		fstr := fmt.Sprintf("error retrieving source file stats %s", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, fn, stat.ModTime(), f)
}

// MethodPath is a struct containing an HTTP method and a URL path
type MethodPath struct {
	Method string
	Path   string
}

// RouteTable maps method/path pairs to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints lists the paths in the table, sorted and without duplicates
func (rt RouteTable) Endpoints() []string {
	seen := map[string]struct{}{}
	routes := make([]string, 0, len(rt))
	for k := range rt {
		if _, ok := seen[k.Path]; ok {
			continue
		}
		seen[k.Path] = struct{}{}
		routes = append(routes, k.Path)
	}
	sort.Strings(routes)
	return routes
}

// Bind registers every route in the table on r, plus a GET route
// /list-of-routes which replies with Endpoints as JSON
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
	r.Get("/list-of-routes", ListRoutes(rt))
}

// ListRoutes returns a handler that replies with the table's endpoints
func ListRoutes(rt RouteTable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		EncodeAndRespond(w, rt.Endpoints())
	}
}
