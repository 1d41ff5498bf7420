package core

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DateFormat = "2006-01-02" // YYYY-MM-DD
	TimeFormat = "15:04"      // HH:MM
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings cleans every string and drops the empty ones.
func CleanStrings(ss []string, lower ...bool) []string {
	if ss == nil {
		return nil
	}
	cleaned := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = CleanString(s, lower...); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// Round2 rounds f to 2 decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.UTC)
}

// ParseClock parses a HH:MM wall clock time into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock formats minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return time.Date(0, 1, 1, 0, minutes, 0, 0, time.UTC).Format(TimeFormat)
}

// Getwd tries to find the project root, the closest parent directory holding go.mod.
// go-test changes the working directory to the test package being run.
// When no go.mod is found (eg. a deployed binary) the working directory is returned.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
