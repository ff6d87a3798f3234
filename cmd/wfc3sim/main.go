package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"

	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/wfc3ir/dq"
	httpdet "github.com/nasa-jpl/wfc3ir/generichttp/detector"
	"github.com/nasa-jpl/wfc3ir/imgrec"
	"github.com/nasa-jpl/wfc3ir/metrics"
	"github.com/nasa-jpl/wfc3ir/util"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "wfc3sim.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func config() Config {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func root() {
	str := `wfc3sim models the readout of the HST WFC3 infrared detector and corrects
its non-linearity.  It can be used from the command line or run as a server
exposing an HTTP interface, so that clients in any programming language can use it.

Usage:
	wfc3sim <command> [arguments]

Commands:
	run
	help
	mkconf
	conf
	version
	exptime <nsamp> <subarray> <sampseq>
	readtimes <nsamp> <subarray> <sampseq>
	buffer <nsamp> <subarray>
	dq <value | file.fits>
	correct <in.fits> <out.fits>`
	fmt.Println(str)
}

func help() {
	str := `wfc3sim is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Use mkconf to write the default configuration to wfc3sim.yml, and conf to
print the configuration in use.

Calibration files are resolved relative to CalibrationRoot unless they are
absolute paths:
- ModesTable is the CSV of exposure times by SUBARRAY, SAMPSEQ, and NSAMP
- NonLinearFile is the FITS non-linearity reference, with the four
  coefficient images in extensions 1 through 4

The server serves its routes under Endpoint, e.g. /wfc3ir/exposure-time;
GET /wfc3ir/list-of-routes lists them.  /metrics exposes Prometheus metrics.

If RecordRoot is set, every corrected frame is also written to
RecordRoot/yyyy-mm-dd/<RecordPrefix>000000.fits and so on.

dq accepts either a single data quality value, or a FITS file with a DQ extension,
in which case the number of pixels with each condition is printed.`
	fmt.Println(str)
}

func mkconf() {
	c := config()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("wfc3sim version %v\n", Version)
}

func run() {
	c := config()
	coll, err := metrics.NewCollector(nil)
	if err != nil {
		log.Fatal(err)
	}
	mux, err := BuildMux(c, coll)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func atoi(name, s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", name, s)
	}
	return i
}

func needArgs(args []string, n int, usage string) {
	if len(args) != n {
		log.Fatalf("usage: wfc3sim %s", usage)
	}
}

func exptime(args []string) {
	needArgs(args, 3, "exptime <nsamp> <subarray> <sampseq>")
	d, err := LoadDetector(config())
	if err != nil {
		log.Fatal(err)
	}
	t, err := d.ExposureTime(atoi("nsamp", args[0]), atoi("subarray", args[1]), args[2])
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(formatSeconds(t))
}

func readtimes(args []string) {
	needArgs(args, 3, "readtimes <nsamp> <subarray> <sampseq>")
	d, err := LoadDetector(config())
	if err != nil {
		log.Fatal(err)
	}
	times, err := d.ReadTimes(atoi("nsamp", args[0]), atoi("subarray", args[1]), args[2])
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(formatTimes(times))
}

func buffer(args []string) {
	needArgs(args, 2, "buffer <nsamp> <subarray>")
	d, err := LoadDetector(config())
	if err != nil {
		log.Fatal(err)
	}
	n, err := d.NumExpPerBuffer(atoi("nsamp", args[0]), atoi("subarray", args[1]))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(n)
}

func dqinfo(args []string) {
	needArgs(args, 1, "dq <value | file.fits>")
	if util.AllElementsNumbers(args[0]) {
		f, err := dq.New(atoi("value", args[0]))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(describeFlag(f))
		return
	}
	fid, err := os.Open(args[0])
	if err != nil {
		log.Fatal(err)
	}
	defer fid.Close()
	g, err := dq.LoadGrid(fid, "DQ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(describeGrid(g))
}

func describeFlag(f dq.Flag) string {
	return fmt.Sprintf("%d %s %v", int(f), f.Binary(), f.Problems())
}

func describeGrid(g dq.Grid) string {
	counts := g.Count()
	var b strings.Builder
	fmt.Fprintf(&b, "%dx%d pixels, %d bad\n", g.Rows, g.Cols, counts["bad"])
	for _, name := range dq.Names() {
		if n := counts[name]; n > 0 {
			fmt.Fprintf(&b, "%s\t%d\n", name, n)
		}
	}
	return b.String()
}

func correct(args []string) {
	needArgs(args, 2, "correct <in.fits> <out.fits>")
	c := config()
	if c.NonLinearFile == "" {
		log.Fatal("NonLinearFile is not configured, see wfc3sim help")
	}
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " ",
		Message:           "loading calibration",
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		log.Fatal(err)
	}
	spinner.Start()
	fail := func(err error) {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		os.Exit(1)
	}

	cal, err := LoadCalibration(c)
	if err != nil {
		fail(err)
	}
	in, err := os.Open(args[0])
	if err != nil {
		fail(err)
	}
	frame, err := httpdet.ReadFits(in)
	in.Close()
	if err != nil {
		fail(err)
	}
	rows, cols := frame.Dims()
	spinner.Message(fmt.Sprintf("correcting %dx%d frame", rows, cols))

	start := time.Now()
	out, err := c.Corrector(nil).CorrectWithReference(context.Background(), frame, cal.Reference)
	if err != nil {
		fail(err)
	}
	elapsed := time.Since(start)

	spinner.Message("writing " + args[1])
	fid, err := os.Create(args[1])
	if err != nil {
		fail(err)
	}
	err = httpdet.EncodeCorrected(fid, cal.Detector, cal.Reference, out, elapsed)
	if cerr := fid.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fail(err)
	}
	if err = imgrec.Verify(args[1]); err != nil {
		fail(err)
	}
	spinner.StopMessage(fmt.Sprintf("corrected %s in %v", args[1], elapsed.Round(time.Millisecond)))
	spinner.Stop()
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	rest := args[2:]
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	case "exptime":
		exptime(rest)
	case "readtimes":
		readtimes(rest)
	case "buffer":
		buffer(rest)
	case "dq":
		dqinfo(rest)
	case "correct":
		correct(rest)
	default:
		log.Fatal("unknown command")
	}
}
