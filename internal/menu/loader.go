package menu

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"menurag/internal/domain"
	"menurag/internal/logging"
)

// Format identifies a corpus encoding.
type Format int

const (
	// FormatText is the "---" delimited key: value format.
	FormatText Format = iota
	// FormatJSON is a JSON array of record objects.
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat maps a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return FormatText, fmt.Errorf("menu: unknown format %q", s)
	}
}

// DetectFormat picks the format from the file extension: .json is JSON,
// everything else is the text format.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatText
}

const segmentDelimiter = "---"

// LoadFile reads a menu file, choosing the format by extension.
func LoadFile(ctx context.Context, path string, logger *logging.Logger) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("menu: read %s: %w", path, err)
	}
	return Load(ctx, data, DetectFormat(path), logger)
}

// Load decodes raw corpus content. Malformed JSON fails the whole load;
// invalid text segments are dropped with a warning.
func Load(ctx context.Context, raw []byte, format Format, logger *logging.Logger) ([]domain.Record, error) {
	if logger == nil {
		logger = logging.Noop()
	}
	switch format {
	case FormatJSON:
		return loadJSON(raw)
	case FormatText:
		return loadText(ctx, raw, logger)
	default:
		return nil, &ParseError{Format: format, cause: fmt.Errorf("unsupported format")}
	}
}

func loadJSON(raw []byte) ([]domain.Record, error) {
	var records []domain.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &ParseError{Format: FormatJSON, cause: err}
	}
	if records == nil {
		records = []domain.Record{}
	}
	return records, nil
}

func loadText(ctx context.Context, raw []byte, logger *logging.Logger) ([]domain.Record, error) {
	var (
		records []domain.Record
		segment []string
	)
	flush := func() {
		if len(segment) == 0 {
			return
		}
		fields := parseSegment(segment)
		segment = segment[:0]
		if len(fields) == 0 {
			return
		}
		r := domain.Record{
			Name:        fields["name"],
			Description: fields["description"],
			Category:    fields["category"],
			Price:       fields["price"],
			Ingredients: fields["ingredients"],
		}
		if err := Check(r); err != nil {
			logger.LogDropped(ctx, "invalid text segment", err)
			return
		}
		records = append(records, r)
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == segmentDelimiter {
			flush()
			continue
		}
		segment = append(segment, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Format: FormatText, cause: err}
	}
	flush()
	if records == nil {
		records = []domain.Record{}
	}
	return records, nil
}

// parseSegment splits each "key: value" line at the first colon. Lines
// without a colon are ignored; later keys override earlier ones.
func parseSegment(lines []string) map[string]string {
	fields := make(map[string]string)
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields
}

// Save writes records as indented JSON, creating directories as needed.
func Save(path string, records []domain.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("menu: create directory: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if records == nil {
		records = []domain.Record{}
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("menu: encode: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
