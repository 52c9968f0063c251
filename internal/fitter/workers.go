// Public domain.

package fitter

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Workers selects how many goroutines fit in parallel.  Positive values
// are an explicit count.
type Workers int

const (
	WorkersSerial Workers = 0  // fit in the calling goroutine
	WorkersMax    Workers = -1 // one per usable CPU
)

// ParseWorkers accepts "max", "serial", or a positive integer.
func ParseWorkers(s string) (Workers, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "max", "":
		return WorkersMax, nil
	case "serial":
		return WorkersSerial, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("workers %q: want max, serial, or a positive integer", s)
	}
	return Workers(n), nil
}

// Resolve returns the concrete worker count.
func (w Workers) Resolve() int {
	switch {
	case w == WorkersMax:
		return runtime.GOMAXPROCS(0)
	case w > 0:
		return int(w)
	}
	return 1
}

func (w Workers) String() string {
	switch {
	case w == WorkersMax:
		return "max"
	case w <= WorkersSerial:
		return "serial"
	}
	return strconv.Itoa(int(w))
}

// Granularity is the unit of work handed to a worker.
type Granularity int

const (
	ByStep  Granularity = iota // every pixel along y at one x
	ByPixel                    // a single pixel
)

// ParseGranularity accepts "step" or "pixel".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "step", "":
		return ByStep, nil
	case "pixel":
		return ByPixel, nil
	}
	return 0, fmt.Errorf("granularity %q: want step or pixel", s)
}

func (g Granularity) String() string {
	if g == ByPixel {
		return "pixel"
	}
	return "step"
}
