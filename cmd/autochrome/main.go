// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/klauspost/cpuid"

	nl "github.com/mlnoga/autochrome/internal"
	"github.com/mlnoga/autochrome/internal/ops"
	"github.com/mlnoga/autochrome/internal/ops/autochrome"
	"github.com/mlnoga/autochrome/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", "autochrome%d.jpg", "save output to `file`, with %d replaced by the image number. Suffix selects jpg, png, tif or bmp")
var log = flag.String("log", "", "save log output to `file`")
var jpgQuality = flag.Int("jpgQuality", 95, "JPEG output quality in [1,100]")
var opsFile = flag.String("ops", "", "apply the JSON operator read from `file` to each image instead of the autochrome look")

var yellowTint = flag.Float64("yellowTint", 0, "yellow tint strength in percent, [0,100]. Unset or 0=off")
var greenTint = flag.Float64("greenTint", 0, "green tint strength in percent, [0,100]. Unset or 0=off")
var magentaTint = flag.Float64("magentaTint", 0, "magenta tint strength in percent, [0,100]. Unset or 0=off")
var filmGrain = flag.Float64("filmGrain", 0, "film grain strength in percent, [0,100]. 100=intensity 30")
var grainWhenUnset = flag.String("grainWhenUnset", "default", "grain when filmGrain is unset or 0: default=intensity 15, off=no grain")
var seed = flag.Uint("seed", 0, "random seed for film grain, 0=random")

var threads = flag.Int("threads", 0, "number of threads, 0=one per logical core")
var maxDim = flag.Int("maxDim", 0, "downscale inputs so the longest side has at most this many pixels, 0=never")

var addr = flag.String("addr", ":3000", "serve: listen on this address")
var uploads = flag.String("uploads", "uploads", "serve: directory for uploaded and processed images")
var maxUploadMB = flag.Int64("maxUploadMB", 32, "serve: maximum upload size in MiB, 0=unlimited")
var chroot = flag.String("chroot", "", "serve: chroot into this directory before serving (requires root)")
var setuid = flag.Int("setuid", -1, "serve: change to this user id before serving, -1=don't")
var debug = flag.Bool("debug", false, "serve: verbose text logging instead of JSON")

func main() {
	logWriter := nl.LogWriter()
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Autochrome Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (process|serve|legal|version|help) (img0.jpg ... imgn.jpg)

Commands:
  process Apply the autochrome look to the input images
  serve   Serve the upload page and API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			nl.LogFatalf("Unable to open logfile '%s': %s\n", *log, err.Error())
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "process":
		err = cmdProcess(args[1:], logWriter)

	case "serve":
		err = cmdServe()

	case "legal":
		cmdLegal()

	case "version":
		cmdVersion(logWriter)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	elapsed := time.Since(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		nl.LogClose()
		os.Exit(-1)
	}
	nl.LogSync()
}

// Returns the processing options set on the command line.
// Tint and grain flags which were not given remain absent
func optionsFromFlags() (autochrome.Options, error) {
	policy, err := autochrome.ParseGrainPolicy(*grainWhenUnset)
	if err != nil {
		return autochrome.Options{}, err
	}
	opts := autochrome.Options{GrainWhenUnset: policy, Seed: uint32(*seed)}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "yellowTint":
			opts.YellowTint = autochrome.Percent(*yellowTint)
		case "greenTint":
			opts.GreenTint = autochrome.Percent(*greenTint)
		case "magentaTint":
			opts.MagentaTint = autochrome.Percent(*magentaTint)
		case "filmGrain":
			opts.FilmGrain = autochrome.Percent(*filmGrain)
		}
	})
	return opts, nil
}

// Returns the operator to apply to each image, read from the -ops file if given
func perImageOperator() (ops.Operator, error) {
	if *opsFile == "" {
		opts, err := optionsFromFlags()
		if err != nil {
			return nil, err
		}
		return autochrome.NewOpProcess(opts), nil
	}
	data, err := os.ReadFile(*opsFile)
	if err != nil {
		return nil, err
	}
	return ops.UnmarshalOperator(data)
}

// Perform the process command
func cmdProcess(args []string, logWriter io.Writer) error {
	if len(args) == 0 {
		return errors.New("no input files given")
	}
	c := ops.NewContext(logWriter)
	if *threads > 0 {
		c.MaxThreads = *threads
	}
	c.Limits.MaxDim = *maxDim
	c.Quality = *jpgQuality

	op, err := perImageOperator()
	if err != nil {
		return err
	}
	save := ops.NewOpSave(*out)
	perImage := ops.NewOpSequence(op, save)
	m, err := json.MarshalIndent(perImage, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Processing with these settings:\n%s\n", string(m))

	seq := ops.NewOpSequence(ops.NewOpLoadMany(args), ops.NewOpForEach(perImage))
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	if len(promises) > 1 && !save.IsPattern() {
		return fmt.Errorf("%d input files but output pattern '%s' has no %%d", len(promises), *out)
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

// Perform the serve command
func cmdServe() error {
	policy, err := autochrome.ParseGrainPolicy(*grainWhenUnset)
	if err != nil {
		return err
	}
	if err := rest.MakeSandbox(*chroot, *setuid); err != nil {
		return err
	}
	return rest.Serve(rest.Config{
		Addr:           *addr,
		UploadDir:      *uploads,
		MaxUploadMB:    *maxUploadMB,
		MaxDim:         *maxDim,
		Threads:        *threads,
		Quality:        *jpgQuality,
		GrainWhenUnset: policy,
		Debug:          *debug,
	})
}

// Show version and machine information
func cmdVersion(logWriter io.Writer) {
	c := ops.NewContext(logWriter)
	fmt.Fprintf(logWriter, "Version %s\n", version)
	fmt.Fprintf(logWriter, "CPU %s with %d logical cores, AVX2 %v\n", cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, cpuid.CPU.AVX2())
	fmt.Fprintf(logWriter, "Using %d threads and %d MiB of physical memory\n", c.MaxThreads, c.MemoryMB)
}
