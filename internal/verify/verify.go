// Package verify checks a finished result file against the guarantees of a
// run: one record per step, each exactly once, in step order, with both
// halves of the history present.
package verify

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/torosent/lanebench/internal/lane"
	"github.com/torosent/lanebench/internal/message"
)

const maxProblems = 20

// ErrInvalid is returned when the result file fails verification.
var ErrInvalid = errors.New("result file failed verification")

// Options describe the run that produced the file.
type Options struct {
	Format   message.Format
	Lanes    int    // when > 0, Request provenance must name lane id mod Lanes
	Expected uint64 // when > 0, the exact number of records
}

// Record is the parsed form of one sink line.
type Record struct {
	Name       string
	Identifier uint64
	Request    string
	Response   string
}

// Problem is a single verification failure.
type Problem struct {
	Line   int
	Reason string
}

func (p Problem) String() string {
	return fmt.Sprintf("line %d: %s", p.Line, p.Reason)
}

// Report summarises a verified file.
type Report struct {
	Records  uint64
	Lanes    map[string]uint64 // records per Request provenance
	Problems []Problem         // first maxProblems failures
	Failures int               // total failures, including those not kept
}

// OK reports whether the file passed every check.
func (r Report) OK() bool { return r.Failures == 0 }

func (r *Report) fail(line int, format string, args ...any) {
	r.Failures++
	if len(r.Problems) < maxProblems {
		r.Problems = append(r.Problems, Problem{Line: line, Reason: fmt.Sprintf(format, args...)})
	}
}

// File verifies the result file at path.
func File(path string, opt Options) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()
	return Reader(f, opt)
}

// Reader verifies records read line by line from r. The returned error wraps
// ErrInvalid when any check fails; I/O failures are returned as is.
func Reader(r io.Reader, opt Options) (Report, error) {
	parse, err := parserFor(opt.Format)
	if err != nil {
		return Report{}, err
	}

	report := Report{Lanes: make(map[string]uint64)}
	seen := make(map[uint64]struct{})
	var next uint64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		rec, err := parse(scanner.Bytes())
		if err != nil {
			report.fail(line, "%v", err)
			continue
		}
		report.Records++
		report.Lanes[rec.Request]++

		if _, dup := seen[rec.Identifier]; dup {
			report.fail(line, "identifier %d recorded more than once", rec.Identifier)
		}
		seen[rec.Identifier] = struct{}{}
		if rec.Identifier != next {
			report.fail(line, "identifier %d out of order, want %d", rec.Identifier, next)
		}
		next = rec.Identifier + 1

		checkRecord(&report, line, rec, opt)
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read result file: %w", err)
	}

	if opt.Expected > 0 && report.Records != opt.Expected {
		report.fail(line, "found %d records, want %d", report.Records, opt.Expected)
	}
	if !report.OK() {
		return report, fmt.Errorf("%w: %d problem(s), first: %s", ErrInvalid, report.Failures, report.Problems[0])
	}
	return report, nil
}

func checkRecord(report *Report, line int, rec Record, opt Options) {
	if want := "Message #" + strconv.FormatUint(rec.Identifier, 10); rec.Name != want {
		report.fail(line, "name %q does not match identifier %d", rec.Name, rec.Identifier)
	}
	if rec.Response != "OK" {
		report.fail(line, "response history = %q, want %q", rec.Response, "OK")
	}
	switch {
	case rec.Request == "":
		report.fail(line, "request history missing for identifier %d", rec.Identifier)
	case opt.Lanes > 0:
		want := lane.Name(int(rec.Identifier%uint64(opt.Lanes))) + ": OK"
		if rec.Request != want {
			report.fail(line, "request history = %q, want %q", rec.Request, want)
		}
	}
}

func parserFor(format message.Format) (func([]byte) (Record, error), error) {
	switch format {
	case message.FormatText, "":
		return parseText, nil
	case message.FormatJSON:
		return parseJSON, nil
	default:
		return nil, fmt.Errorf("verify: unsupported record format %q", format)
	}
}
