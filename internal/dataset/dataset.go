package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Record is one labelled example from the training dataset.
type Record struct {
	ID      string
	Sender  string
	Subject string
	Body    string
	Label   string
}

// EmbeddingText returns the text fed to the embedding model, in the same
// shape the live pipeline uses for incoming mail.
func (r *Record) EmbeddingText() string {
	return fmt.Sprintf("Subject: %s\n\n%s", r.Subject, r.Body)
}

// LoadCSV reads labelled examples from a CSV file. The header row names the
// columns; sender, subject, body and label are matched case-insensitively,
// and a missing id column falls back to the row number.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"subject", "body", "label"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("dataset missing required column %q", required)
		}
	}

	var records []Record
	row := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset row %d: %w", row+1, err)
		}
		row++

		rec := Record{
			Subject: field(fields, cols, "subject"),
			Body:    field(fields, cols, "body"),
			Label:   strings.ToUpper(field(fields, cols, "label")),
			Sender:  field(fields, cols, "sender"),
			ID:      field(fields, cols, "id"),
		}
		if rec.ID == "" {
			rec.ID = strconv.Itoa(row)
		}
		records = append(records, rec)
	}

	return records, nil
}

func field(fields []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// EmbeddedRecord is a dataset record with its embedding attached, one JSON
// object per line in the interchange file.
type EmbeddedRecord struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Label     string    `json:"label"`
}

// WriteEmbeddings writes records as JSONL.
func WriteEmbeddings(w io.Writer, records []EmbeddedRecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, rec := range records {
		if err := enc.Encode(&rec); err != nil {
			return fmt.Errorf("failed to encode embedding record: %w", err)
		}
	}
	return bw.Flush()
}

// ReadEmbeddings reads a JSONL embedding file, skipping blank lines.
func ReadEmbeddings(r io.Reader) ([]EmbeddedRecord, error) {
	var records []EmbeddedRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec EmbeddedRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode embedding record at line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read embedding file: %w", err)
	}

	return records, nil
}
