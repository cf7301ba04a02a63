// Package sysmetrics samples host NIC counters for the panel's bandwidth
// readout.
package sysmetrics

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sample is one cumulative NIC counter reading plus the rate derived from
// the previous reading.
type Sample struct {
	IncomingBytes uint64
	OutgoingBytes uint64
	// Bytes per second since the previous sample.
	IncomingRate uint64
	OutgoingRate uint64
	TakenAt      time.Time
}

// Sampler reads /proc/net/dev and keeps the latest rate sample.
type Sampler struct {
	procPath string

	mu   sync.RWMutex
	last Sample
}

// NewSampler creates a sampler over the default proc path.
func NewSampler() *Sampler {
	return &Sampler{procPath: "/proc/net/dev"}
}

// NewSamplerWithPath creates a sampler over a custom counters file, used by
// tests.
func NewSamplerWithPath(path string) *Sampler {
	return &Sampler{procPath: path}
}

// Tick takes a new reading and updates the derived rates.
func (s *Sampler) Tick() error {
	in, out, err := readCounters(s.procPath)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.last
	sample := Sample{IncomingBytes: in, OutgoingBytes: out, TakenAt: now}
	if !prev.TakenAt.IsZero() {
		elapsed := now.Sub(prev.TakenAt).Seconds()
		if elapsed > 0 && in >= prev.IncomingBytes && out >= prev.OutgoingBytes {
			sample.IncomingRate = uint64(float64(in-prev.IncomingBytes) / elapsed)
			sample.OutgoingRate = uint64(float64(out-prev.OutgoingBytes) / elapsed)
		}
	}
	s.last = sample
	return nil
}

// Latest returns the most recent sample.
func (s *Sampler) Latest() Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// readCounters sums rx/tx bytes across all non-loopback interfaces.
func readCounters(path string) (in, out uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		iface := strings.TrimSpace(line[:idx])
		if iface == "lo" {
			continue
		}
		fields := strings.Fields(line[idx+1:])
		// Layout: rx bytes first, tx bytes ninth.
		if len(fields) < 9 {
			continue
		}
		rx, err1 := strconv.ParseUint(fields[0], 10, 64)
		tx, err2 := strconv.ParseUint(fields[8], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		in += rx
		out += tx
	}
	return in, out, scanner.Err()
}
