package omr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveResults writes an answer matrix to disk as JSON, marks stored by name.
func SaveResults(path string, m AnswerMatrix) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// LoadResults reads an answer matrix written by SaveResults, typically an answer key.
func LoadResults(path string) (AnswerMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var m AnswerMatrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal results %s: %w", path, err)
	}
	return m, nil
}
