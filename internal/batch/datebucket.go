package batch

import (
	"regexp"
	"time"
)

// BucketLayout is the directory name format for date buckets.
const BucketLayout = "2006-01-02"

var (
	separatedDatePattern  = regexp.MustCompile(`((?:19|20)\d{2})[-_](\d{2})[-_](\d{2})`)
	contiguousDatePattern = regexp.MustCompile(`((?:19|20)\d{2})(\d{2})(\d{2})`)
)

// InferBucket derives the date bucket for a source file. Separated dates in
// the name win over contiguous ones; candidates that are not real calendar
// dates fall through; with no usable name date the modification time
// decides. Contiguous candidates embedded in longer digit runs are
// rejected.
func InferBucket(name string, mtime time.Time) (string, time.Time) {
	for _, match := range separatedDatePattern.FindAllStringSubmatch(name, -1) {
		if day, ok := parseDay(match[1], match[2], match[3]); ok {
			return day.Format(BucketLayout), day
		}
	}
	for _, idx := range contiguousDatePattern.FindAllStringSubmatchIndex(name, -1) {
		start, end := idx[0], idx[1]
		if start > 0 && isASCIIDigit(name[start-1]) {
			continue
		}
		if end < len(name) && isASCIIDigit(name[end]) {
			continue
		}
		if day, ok := parseDay(name[idx[2]:idx[3]], name[idx[4]:idx[5]], name[idx[6]:idx[7]]); ok {
			return day.Format(BucketLayout), day
		}
	}
	day := time.Date(mtime.Year(), mtime.Month(), mtime.Day(), 0, 0, 0, 0, time.UTC)
	return day.Format(BucketLayout), day
}

func parseDay(year, month, dayOfMonth string) (time.Time, bool) {
	t, err := time.Parse(BucketLayout, year+"-"+month+"-"+dayOfMonth)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
