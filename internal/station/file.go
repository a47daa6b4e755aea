package station

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FileSource reads stations from a .json, .csv or .xlsx file.
type FileSource struct {
	Path string
	// City, when set, keeps only records of that city (case-insensitive).
	// Records without a city are kept.
	City string
	// Strict fails the load when any record is invalid.
	Strict bool
}

// Stations loads and validates the file.
func (s FileSource) Stations(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		records []Record
		errs    []error
	)
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".xlsx":
		records, errs = ReadXLSX(s.Path)
	case ".csv", ".json", "":
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "station: open %s", s.Path)
		}
		defer f.Close() //nolint:errcheck
		if strings.EqualFold(filepath.Ext(s.Path), ".csv") {
			records, errs = DecodeCSV(f)
		} else {
			records, errs = Decode(f)
		}
	default:
		return nil, eris.Errorf("station: unsupported file type %q", filepath.Ext(s.Path))
	}

	if records == nil && len(errs) > 0 {
		return nil, eris.Wrapf(errors.Join(errs...), "station: load %s", s.Path)
	}
	if len(errs) > 0 {
		if s.Strict {
			return nil, eris.Wrapf(errors.Join(errs...), "station: %d invalid records in %s", len(errs), s.Path)
		}
		zap.L().Warn("skipped invalid station records",
			zap.String("component", "station"),
			zap.String("path", s.Path),
			zap.Int("skipped", len(errs)),
			zap.Error(errs[0]),
		)
	}
	return filterCity(records, s.City), nil
}

func filterCity(records []Record, city string) []Record {
	if city == "" {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if r.City == "" || strings.EqualFold(r.City, city) {
			out = append(out, r)
		}
	}
	return out
}
