package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"nfcattendance/internal/apperr"
)

var csvColumns = []string{"Name", "Register Number", "Section", "Department", "Duration"}

// ParseCSV reads a roster sheet. Headers match case-insensitively and rows
// without a name or register number are skipped.
func ParseCSV(r io.Reader) ([]Input, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.Validation("file", "File is empty")
	}
	if err != nil {
		return nil, apperr.Validation("file", fmt.Sprintf("Error parsing file: %v", err))
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	cols := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		pos, ok := index[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[i] = pos
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("file", "Missing required columns: "+strings.Join(missing, ", "))
	}

	var rows []Input
	for row := 2; ; row++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Validation("file", fmt.Sprintf("Error parsing file: %v", err))
		}
		field := func(i int) string {
			if cols[i] >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[cols[i]])
		}
		in := Input{
			Name:           field(0),
			RegisterNumber: field(1),
			Section:        field(2),
			Department:     field(3),
			Duration:       field(4),
			Row:            row,
		}
		if in.Name == "" || in.RegisterNumber == "" {
			continue
		}
		rows = append(rows, in)
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("file", "No valid student data found in file")
	}
	return rows, nil
}
