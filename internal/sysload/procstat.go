// Package sysload estimates aggregate CPU busy percentage from /proc/stat
// and smooths it with an irregular-interval exponential moving average.
package sysload

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
)

// procStatPath is a var, not a const, so tests can point it at a fixture.
var procStatPath = "/proc/stat"

// sample is a raw tick-count snapshot of the aggregate "cpu" line.
type sample struct {
	total uint64
	idle  uint64
}

// readSample parses the aggregate "cpu ..." line of /proc/stat. Fields are
// user, nice, system, idle, iowait, irq, softirq, steal, guest, guest_nice;
// total is the sum of all present fields, idle is idle+iowait.
func readSample() (sample, error) {
	errFactory := errors.New()

	f, err := os.Open(procStatPath)
	if err != nil {
		return sample{}, errFactory.Wrap(errors.ErrProcStatRead, err)
	}
	defer f.Close()

	line, err := firstLine(f)
	if err != nil {
		return sample{}, errFactory.Wrap(errors.ErrProcStatRead, err)
	}

	return parseAggregateLine(line)
}

func firstLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return scanner.Text(), nil
}

func parseAggregateLine(line string) (sample, error) {
	errFactory := errors.New()

	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "cpu" {
		return sample{}, errFactory.New(errors.ErrProcStatParse)
	}

	var s sample
	for i, field := range fields[1:] {
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return sample{}, errFactory.Wrap(errors.ErrProcStatParse, err)
		}
		s.total += v
		if i == 3 || i == 4 { // idle, iowait
			s.idle += v
		}
	}

	return s, nil
}

// rawBusyPercent computes the busy percentage implied by the transition from
// prev to cur. ok is false when no ticks elapsed between the two samples
// (dTotal is zero, as with two zero-value samples) or a counter reset/wrap
// is observed as cur < prev. It cannot tell a real first sample diffed
// against a zero-value prev from a legitimate pair; callers guard that case.
func rawBusyPercent(prev, cur sample) (pct float64, ok bool) {
	if cur.total < prev.total || cur.idle < prev.idle {
		return 0, false
	}

	dTotal := cur.total - prev.total
	dIdle := cur.idle - prev.idle
	if dTotal == 0 {
		return 0, false
	}

	busy := dTotal - dIdle
	if dIdle > dTotal {
		busy = 0
	}

	return float64(busy) * 100.0 / float64(dTotal), true
}
