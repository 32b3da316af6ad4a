package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, `id,sender,subject,body,label
m1,phisher@evil.example,Urgent verification,Click the link now,phishing
m2,newsletter@shop.example,Weekly deals,Here are this week's deals,legitimate
`)

	records, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "m1" || records[0].Label != "PHISHING" {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].Sender != "newsletter@shop.example" {
		t.Errorf("second record = %+v", records[1])
	}
}

func TestLoadCSVGeneratesMissingIDs(t *testing.T) {
	path := writeCSV(t, `subject,body,label
Hello,World,legitimate
`)

	records, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(records) != 1 || records[0].ID != "1" {
		t.Errorf("records = %+v", records)
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	path := writeCSV(t, `subject,body
Hello,World
`)

	if _, err := LoadCSV(path); err == nil {
		t.Error("expected error for missing label column")
	}
}

func TestRecordEmbeddingText(t *testing.T) {
	rec := Record{Subject: "Hello", Body: "World"}
	if got := rec.EmbeddingText(); got != "Subject: Hello\n\nWorld" {
		t.Errorf("EmbeddingText = %q", got)
	}
}

func TestEmbeddingsRoundTrip(t *testing.T) {
	in := []EmbeddedRecord{
		{ID: "m1", Embedding: []float32{0.1, 0.2}, Sender: "a@b.c", Subject: "s1", Label: "PHISHING"},
		{ID: "m2", Embedding: []float32{0.3}, Sender: "d@e.f", Subject: "s2", Label: "LEGITIMATE"},
	}

	var buf bytes.Buffer
	if err := WriteEmbeddings(&buf, in); err != nil {
		t.Fatalf("WriteEmbeddings: %v", err)
	}

	out, err := ReadEmbeddings(&buf)
	if err != nil {
		t.Fatalf("ReadEmbeddings: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].ID != "m1" || len(out[0].Embedding) != 2 {
		t.Errorf("first record = %+v", out[0])
	}
}

func TestReadEmbeddingsSkipsBlankLines(t *testing.T) {
	input := `{"id":"m1","embedding":[0.5],"sender":"a@b.c","subject":"s","label":"PHISHING"}

`
	out, err := ReadEmbeddings(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadEmbeddings: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("got %d records, want 1", len(out))
	}
}
