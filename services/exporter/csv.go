package exporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"sjsage522/gloomfloor/internal/crawler"
	"sjsage522/gloomfloor/logger"
	apperrors "sjsage522/gloomfloor/pkg/errors"
)

// Columns is the fixed column order of the exported file
var Columns = []string{
	"number",
	"price",
	"rank",
	"background",
	"skin",
	"hair",
	"mouth",
	"eyes",
	"eyebrows",
	"clothes",
	"headAccessory",
	"faceAccessory",
	"glasses",
	"url",
}

const lineBreak = "\r\n"

// Export renders records as comma separated rows joined by CRLF, header first.
// Present values are written as JSON string literals; absent ones stay empty.
func Export(records []crawler.Item, columns []string) string {
	rows := make([]string, 0, len(records)+1)
	rows = append(rows, strings.Join(columns, ","))

	fields := make([]string, len(columns))
	for _, record := range records {
		for i, column := range columns {
			value, ok := record.Field(column)
			if !ok {
				fields[i] = ""
				continue
			}
			fields[i] = quote(value)
		}
		rows = append(rows, strings.Join(fields, ","))
	}
	return strings.Join(rows, lineBreak)
}

// quote encodes s the way a JSON serializer would, without HTML escaping
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// WriteFile writes content to path, creating parent directories as needed
func WriteFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.NewExport(path, "failed to create output directory", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return apperrors.NewExport(path, "failed to write export", err)
	}
	logger.ForExporter().Debug().Str("path", path).Int("bytes", len(content)).Msg("Export written")
	return nil
}
