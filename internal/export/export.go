// Package export writes leaderboard snapshots to files.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/proofofsteak/steakboard/internal/records"
)

const (
	FormatYAML    = "yaml"
	FormatParquet = "parquet"
	FormatJSONL   = "jsonl"
)

// Row is one exported record. Only display fields are kept; the raw record
// and consensus document stay on the ledger.
type Row struct {
	ID            int64   `json:"id" yaml:"id" parquet:"id"`
	Rank          int64   `json:"rank" yaml:"rank" parquet:"rank"`
	Category      string  `json:"category" yaml:"category" parquet:"category"`
	Name          string  `json:"name" yaml:"name" parquet:"name"`
	Location      string  `json:"location" yaml:"location" parquet:"location"`
	Score         float64 `json:"score" yaml:"score" parquet:"score"`
	SubmittedBy   string  `json:"submitted_by" yaml:"submittedby" parquet:"submitted_by"`
	CallerAddress string  `json:"caller_address" yaml:"calleraddress" parquet:"caller_address"`
	Description   string  `json:"description" yaml:"description" parquet:"description"`
	Image         string  `json:"image" yaml:"image" parquet:"image"`
	OriginalImage string  `json:"original_image" yaml:"originalimage" parquet:"original_image"`
}

func RowFrom(d records.Display) Row {
	return Row{
		ID:            int64(d.ID),
		Rank:          int64(d.Rank),
		Category:      d.Category,
		Name:          d.Name,
		Location:      d.Location,
		Score:         d.Score,
		SubmittedBy:   d.SubmittedBy,
		CallerAddress: d.Raw.CallerAddress,
		Description:   d.Description,
		Image:         d.Image,
		OriginalImage: d.OriginalImage,
	}
}

// Snapshot is the YAML document layout.
type Snapshot struct {
	Category   string `yaml:"category,omitempty"`
	ExportedAt string `yaml:"exportedat"`
	Count      int    `yaml:"count"`
	Records    []Row  `yaml:"records"`
}

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".parquet":
		return FormatParquet, nil
	case ".jsonl", ".json":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s (supported: .yaml, .parquet, .jsonl)", filepath.Ext(path))
	}
}

// Write encodes recs to w in format.
func Write(w io.Writer, format, category string, recs []records.Display) error {
	rows := make([]Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, RowFrom(r))
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Snapshot{
			Category:   category,
			ExportedAt: time.Now().UTC().Format(time.RFC3339),
			Count:      len(rows),
			Records:    rows,
		}); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case FormatParquet:
		writer := parquet.NewGenericWriter[Row](w)
		if _, err := writer.Write(rows); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
		return writer.Close()
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("failed to encode JSON line: %w", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile writes recs to path, choosing the format from its extension
// when format is empty.
func WriteFile(path, format, category string, recs []records.Display) error {
	if format == "" {
		var err error
		if format, err = FormatFromPath(path); err != nil {
			return err
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	if err := Write(buf, format, category, recs); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	slog.Info("Exported records", "path", path, "format", format, "count", len(recs))
	return nil
}

// Load reads rows back from a parquet or jsonl export.
func Load(path string) ([]Row, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatParquet:
		info, err := file.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		return readParquet(file, info.Size())
	case FormatJSONL:
		return readJSONL(file)
	default:
		var snap Snapshot
		if err := yaml.NewDecoder(file).Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		return snap.Records, nil
	}
}

func readParquet(r io.ReaderAt, size int64) ([]Row, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var rows []Row
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		rows = append(rows, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return rows, nil
}

func readJSONL(r io.Reader) ([]Row, error) {
	var rows []Row
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading export: %w", err)
	}
	return rows, nil
}
