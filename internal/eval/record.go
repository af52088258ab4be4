package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// SampleRecord is one per-sample evaluation result, appended to the output
// JSON array.
type SampleRecord struct {
	Query            string           `json:"query"`
	Retrieval        RetrievalMetrics `json:"retrieval"`
	ContextRelevance float64          `json:"context_relevance"`
	Faithfulness     float64          `json:"faithfulness"`
	Correctness      float64          `json:"correctness"`
	Answer           string           `json:"answer"`
	RetrievedIDs     []string         `json:"retrieved_ids"`
	ReasonRelevance  string           `json:"reason_context_relevance"`
	ReasonFaith      string           `json:"reason_faithfulness"`
	ReasonCorrect    string           `json:"reason_correctness"`
}

// RecordWriter appends sample records to a JSON array file, rewriting the
// whole array atomically on each append so a crash never leaves a
// truncated document.
type RecordWriter struct {
	filePath string
	records  []SampleRecord
}

// NewRecordWriter opens (or creates) the output file and loads any
// existing records so resumed runs keep appending.
func NewRecordWriter(filePath string) (*RecordWriter, error) {
	w := &RecordWriter{filePath: filePath}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return nil, fmt.Errorf("read records file: %w", err)
	}
	if len(data) == 0 {
		return w, nil
	}
	if err := json.Unmarshal(data, &w.records); err != nil {
		return nil, fmt.Errorf("parse records file: %w", err)
	}
	return w, nil
}

// Append adds a record and persists the full array.
func (w *RecordWriter) Append(record SampleRecord) error {
	w.records = append(w.records, record)

	data, err := json.MarshalIndent(w.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	tmpPath := w.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp records file: %w", err)
	}
	if err := os.Rename(tmpPath, w.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename records file: %w", err)
	}
	return nil
}

// Len returns the number of persisted records.
func (w *RecordWriter) Len() int {
	return len(w.records)
}
