// Package eventcsv loads photon event lists from CSV files with
// arrival-time and energy columns.
package eventcsv

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"lagscan/domain/photon"
	"lagscan/internal/errors"
	"lagscan/ports"
)

// Loader reads a two-column CSV event file. A header row is detected and
// skipped when the first field does not parse as a number.
type Loader struct {
	Path string
}

var _ ports.SampleSource = (*Loader)(nil)

// NewLoader creates a loader for the given file path
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// Load parses the file into a validated photon sample
func (l *Loader) Load(ctx context.Context) (*photon.Sample, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening event file %s", l.Path)
	}
	defer f.Close()

	times, energies, err := parseEvents(ctx, csv.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing event file %s", l.Path)
	}
	return photon.NewSample(times, energies)
}

func parseEvents(ctx context.Context, r *csv.Reader) (times, energies []float64, err error) {
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	first := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(record) < 2 {
			return nil, nil, errors.Newf(errors.CodeDegenerateInput,
				"event row needs time and energy columns, got %d fields", len(record))
		}

		t, terr := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		e, eerr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if terr != nil || eerr != nil {
			if first {
				// header row
				first = false
				continue
			}
			return nil, nil, errors.Newf(errors.CodeDegenerateInput,
				"non-numeric event row %q", strings.Join(record, ","))
		}
		first = false
		times = append(times, t)
		energies = append(energies, e)
	}
	return times, energies, nil
}
