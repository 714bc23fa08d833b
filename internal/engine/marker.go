package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	successMarker = "SUCCESS:"
	errorMarker   = "ERROR:"
	yearsMarker   = "YEARS:"

	unknownError = "Unknown error"
)

// ErrNoYears is returned when the engine output carries no YEARS line.
var ErrNoYears = errors.New("engine: no YEARS line in output")

// ParseOutcome interprets captured output. The last SUCCESS line names the
// file; without one the run failed and the detail is stderr, then the
// ERROR message, then raw stdout, then "Unknown error".
func ParseOutcome(stdout, stderr []string) Result {
	var success, errMsg string
	found := false
	for _, line := range stdout {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, successMarker):
			success = strings.TrimSpace(strings.TrimPrefix(line, successMarker))
			found = true
		case strings.HasPrefix(line, errorMarker):
			errMsg = strings.TrimSpace(strings.TrimPrefix(line, errorMarker))
		}
	}

	if found {
		name := filepath.Base(filepath.Clean(success))
		if success == "" || name == "." || name == string(filepath.Separator) {
			return Result{Error: "engine reported success without a file name"}
		}
		return Result{Success: true, Filename: name}
	}

	detail := joinLines(stderr)
	if detail == "" {
		detail = errMsg
	}
	if detail == "" {
		detail = joinLines(stdout)
	}
	if detail == "" {
		detail = unknownError
	}
	return Result{Error: detail}
}

// ParseYears extracts the year list from a YEARS:[...] line.
func ParseYears(stdout []string) ([]int, error) {
	for i := len(stdout) - 1; i >= 0; i-- {
		line := strings.TrimSpace(stdout[i])
		if !strings.HasPrefix(line, yearsMarker) {
			continue
		}
		var years []int
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, yearsMarker)), &years); err != nil {
			return nil, fmt.Errorf("engine: malformed years line: %w", err)
		}
		if years == nil {
			years = []int{}
		}
		return years, nil
	}
	return nil, ErrNoYears
}

func joinLines(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
