package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"gleaner/internal/schema"
)

// CSVFile writes records as CSV with a fixed column order taken from the
// target's declared fields.
type CSVFile struct {
	path    string
	columns []string
}

// NewCSVFile creates a CSV sink. Columns define both the header and the
// cell order for every row.
func NewCSVFile(path string, columns []string) (*CSVFile, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("csv sink requires at least one column")
	}
	return &CSVFile{path: path, columns: columns}, nil
}

func (s *CSVFile) Write(records []schema.ValidatedRecord) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(s.columns); err != nil {
		return err
	}
	for _, record := range records {
		row := make([]string, len(s.columns))
		for i, col := range s.columns {
			if raw, ok := record[col]; ok {
				row[i] = stringify(raw)
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *CSVFile) Close() error { return nil }

// JSONFile writes the result set as a JSON array.
type JSONFile struct {
	path string
}

// NewJSONFile creates a JSON file sink.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (s *JSONFile) Write(records []schema.ValidatedRecord) error {
	if records == nil {
		records = []schema.ValidatedRecord{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONFile) Close() error { return nil }

func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []string:
		payload, _ := json.Marshal(v)
		return string(payload)
	default:
		return fmt.Sprint(v)
	}
}
