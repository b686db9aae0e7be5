package batch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
)

// IndexName is the aggregate run index at the output root.
const IndexName = "INDEX"

var indexHeader = []string{
	"# lectern run index",
	"# status\tsource\toutput\treason",
}

// writeIndex merges results into the existing index keyed by source path
// and rewrites it atomically. Controller runs spanning several input
// folders invoke the executor once per folder against the same output
// root, so the index accumulates rather than resets.
func writeIndex(outputRoot string, results []FileResult) error {
	indexPath := filepath.Join(outputRoot, IndexName)
	rows := readIndexRows(indexPath)
	for _, result := range results {
		rows[result.Source] = FileResult{
			Status:    result.Status,
			Source:    result.Source,
			OutputDir: result.OutputDir,
			Reason:    result.Reason,
		}
	}

	sources := make([]string, 0, len(rows))
	for source := range rows {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var b strings.Builder
	for _, line := range indexHeader {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, source := range sources {
		row := rows[source]
		b.WriteString(row.Status)
		b.WriteByte('\t')
		b.WriteString(row.Source)
		b.WriteByte('\t')
		b.WriteString(row.OutputDir)
		b.WriteByte('\t')
		b.WriteString(row.Reason)
		b.WriteByte('\n')
	}

	if err := renameio.WriteFile(indexPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// readIndexRows loads an existing index, tolerating a missing file and
// malformed lines.
func readIndexRows(path string) map[string]FileResult {
	rows := make(map[string]FileResult)
	file, err := os.Open(path)
	if err != nil {
		return rows
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		row := FileResult{Status: fields[0], Source: fields[1], OutputDir: fields[2]}
		if len(fields) > 3 {
			row.Reason = fields[3]
		}
		rows[row.Source] = row
	}
	return rows
}
