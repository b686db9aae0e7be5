// Package progress defines the line protocol the batch executor emits on
// stdout and the run controller parses back into typed events.
package progress

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prefix marks a stdout line as a progress record.
const Prefix = "[progress] "

// Record reports one handled file. Done counts records emitted so far in
// the current invocation; Total is the candidate count after limits.
type Record struct {
	Done   int
	Total  int
	Status string
	Source string
}

// Format renders the record as a single stdout line (without newline).
// Status and Source are omitted when empty.
func Format(r Record) string {
	var b strings.Builder
	b.Grow(64 + len(r.Source))
	b.WriteString(Prefix)
	b.WriteString("done=")
	b.WriteString(strconv.Itoa(r.Done))
	b.WriteString(" total=")
	b.WriteString(strconv.Itoa(r.Total))
	if r.Status != "" {
		b.WriteString(" status=")
		b.WriteString(r.Status)
	}
	if r.Source != "" {
		b.WriteString(" source=")
		b.WriteString(r.Source)
	}
	return b.String()
}

// Parse decodes a progress line. It returns ok=false for lines without the
// prefix. Unknown key=value pairs are ignored so the format can grow
// without breaking older controllers. The source value, when present,
// extends to the end of the line so paths may contain spaces.
func Parse(line string) (Record, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), Prefix)
	if !found {
		return Record{}, false
	}
	rest = strings.TrimSpace(rest)

	var rec Record
	for rest != "" {
		if value, ok := strings.CutPrefix(rest, "source="); ok {
			rec.Source = strings.TrimSpace(value)
			break
		}
		token := rest
		if idx := strings.IndexByte(rest, ' '); idx >= 0 {
			token, rest = rest[:idx], strings.TrimSpace(rest[idx+1:])
		} else {
			rest = ""
		}
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		switch key {
		case "done":
			rec.Done = atoiOrZero(value)
		case "total":
			rec.Total = atoiOrZero(value)
		case "status":
			rec.Status = value
		}
	}
	return rec, true
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Fprintln writes the record to w as one line.
func Fprintln(w io.Writer, r Record) error {
	_, err := fmt.Fprintln(w, Format(r))
	return err
}
