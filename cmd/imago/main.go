// Package main provides the imago command-line tool.
package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/imago-ml/imago/dtype"
	"github.com/imago-ml/imago/img"
	"github.com/imago-ml/imago/internal/parallel"
	"github.com/imago-ml/imago/stats"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("imago %s\n", version)
			return
		case "selftest":
			if err := selftest(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "selftest: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("imago - strided n-dimensional image processing for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version             Show version")
	fmt.Println("  selftest [size]     Run the statistics pipeline on a synthetic image")
}

// selftest exercises the scan, separable and projection engines on a synthetic
// image and prints the results, once single-threaded and once with all cores.
// The two runs must agree; a difference means a reduction merge is broken.
func selftest(args []string) error {
	size := 512
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("bad size %q", args[0])
		}
		size = n
	}

	in, err := img.New(dtype.Float32, size, size)
	if err != nil {
		return err
	}
	it := img.NewIterator(in)
	for it.Next() {
		c := it.Coords()
		in.SetFloat(float64(c[0]%17)-float64(c[1]%5), c...)
	}

	type result struct {
		mean, sd, min, max float64
	}
	run := func(workers int) (result, error) {
		prev := parallel.MaxWorkers()
		defer parallel.SetMaxWorkers(prev)
		parallel.SetMaxWorkers(workers)
		st, err := stats.SampleStatistics(in, nil)
		if err != nil {
			return result{}, err
		}
		mm, err := stats.MaximumAndMinimum(in, nil)
		if err != nil {
			return result{}, err
		}
		return result{st.Mean(), st.StandardDeviation(), mm.Minimum(), mm.Maximum()}, nil
	}

	serial, err := run(1)
	if err != nil {
		return err
	}
	par, err := run(runtime.GOMAXPROCS(0))
	if err != nil {
		return err
	}

	fmt.Printf("image: %dx%d float32\n", size, size)
	fmt.Printf("mean: %g  sd: %g  min: %g  max: %g\n", par.mean, par.sd, par.min, par.max)
	if serial.min != par.min || serial.max != par.max {
		return fmt.Errorf("serial and parallel extrema disagree: %+v vs %+v", serial, par)
	}
	fmt.Println("serial and parallel runs agree")
	return nil
}
