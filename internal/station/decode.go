package station

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Decode reads a JSON array of station records. Records that fail to decode
// or validate are skipped and reported; the rest keep their input order. A
// malformed or truncated array yields no records at all.
func Decode(r io.Reader) ([]Record, []error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err == io.EOF {
		return []Record{}, nil
	}
	if err != nil {
		return nil, []error{eris.Wrap(err, "station: read opening token")}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, []error{eris.Errorf("station: expected '[', got %v", tok)}
	}

	out := []Record{}
	var errs []error
	for i := 0; dec.More(); i++ {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				errs = append(errs, eris.Wrapf(err, "station: record %d", i))
				continue
			}
			return nil, append(errs, eris.Wrapf(err, "station: decode record %d", i))
		}
		if err := rec.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rec)
	}

	tok, err = dec.Token()
	if err != nil {
		return nil, append(errs, eris.Wrap(err, "station: read closing token"))
	}
	if delim, ok := tok.(json.Delim); !ok || delim != ']' {
		return nil, append(errs, eris.Errorf("station: expected ']', got %v", tok))
	}
	return out, errs
}

// DecodeCSV reads station rows with a header naming at least lat and lng
// (lon is accepted for lng). Optional columns: id, name, capacity, city.
func DecodeCSV(r io.Reader) ([]Record, []error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []Record{}, nil
	}
	if err != nil {
		return nil, []error{eris.Wrap(err, "station: read csv header")}
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, []error{eris.Wrap(err, "station: read csv row")}
		}
		rows = append(rows, row)
	}
	return decodeRows(header, rows)
}

// ReadXLSX reads station rows from the first sheet of an XLSX workbook,
// laid out like DecodeCSV.
func ReadXLSX(path string) ([]Record, []error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, []error{eris.Wrap(err, "station: open xlsx")}
	}
	if len(f.Sheets) == 0 {
		return []Record{}, nil
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return []Record{}, nil
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return decodeRows(rows[0], rows[1:])
}

func decodeRows(header []string, rows [][]string) ([]Record, []error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "lon" || name == "long" {
			name = "lng"
		}
		cols[name] = i
	}
	if _, ok := cols["lat"]; !ok {
		return nil, []error{eris.New("station: header has no lat column")}
	}
	if _, ok := cols["lng"]; !ok {
		return nil, []error{eris.New("station: header has no lng column")}
	}

	field := func(row []string, name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return "", false
		}
		v := strings.TrimSpace(row[i])
		return v, v != ""
	}

	out := []Record{}
	var errs []error
	for n, row := range rows {
		line := n + 2
		rec := Record{ID: int64(n + 1)}
		if v, ok := field(row, "id"); ok {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, eris.Wrapf(err, "station: line %d: id", line))
				continue
			}
			rec.ID = id
		}
		if v, ok := field(row, "name"); ok {
			rec.Name = &v
		}
		if v, ok := field(row, "city"); ok {
			rec.City = v
		}
		var bad bool
		for _, c := range []struct {
			name string
			dst  **float64
		}{{"lat", &rec.Lat}, {"lng", &rec.Lng}} {
			v, ok := field(row, c.name)
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, eris.Wrapf(err, "station: line %d: %s", line, c.name))
				bad = true
				break
			}
			*c.dst = &f
		}
		if bad {
			continue
		}
		if v, ok := field(row, "capacity"); ok {
			c, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, eris.Wrapf(err, "station: line %d: capacity", line))
				continue
			}
			rec.Capacity = &c
		}
		if err := rec.Validate(); err != nil {
			errs = append(errs, eris.Wrapf(err, "station: line %d", line))
			continue
		}
		out = append(out, rec)
	}
	return out, errs
}
