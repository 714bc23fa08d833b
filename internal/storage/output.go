// Package storage serves generated reports from the output directory and
// mirrors them to S3.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidName is returned for names that could escape the output
	// directory or carry a disallowed extension.
	ErrInvalidName = errors.New("invalid file request: only .xlsx and .zip are allowed")
	// ErrNotFound is returned when a valid name is absent.
	ErrNotFound = errors.New("file not found")
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeZIP  = "application/zip"
)

// <fileName>_<year>.<ext> or <fileName>_<start>-<end>.<ext>
var yearSuffix = regexp.MustCompile(`_\d{4}(-\d{4})?$`)

// FileInfo describes one downloadable report.
type FileInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Date     time.Time `json:"date"`
	Theme    string    `json:"theme"`
}

// OutputDir is the directory the engine writes reports into. The server
// only reads from it.
type OutputDir struct {
	dir string
}

// NewOutputDir creates the directory if needed.
func NewOutputDir(dir string) (*OutputDir, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &OutputDir{dir: dir}, nil
}

// Path is the directory location.
func (o *OutputDir) Path() string { return o.dir }

// ValidateName rejects traversal and anything but .xlsx and .zip.
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	if ContentType(name) == "" {
		return ErrInvalidName
	}
	return nil
}

// ContentType maps an allowed report extension to its media type, or "".
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".xlsx"):
		return ContentTypeXLSX
	case strings.HasSuffix(name, ".zip"):
		return ContentTypeZIP
	}
	return ""
}

// Open returns the named report for reading. The caller closes it.
func (o *OutputDir) Open(name string) (*os.File, os.FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(o.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// List returns the reports present, newest first. Office lock files (~$)
// are skipped.
func (o *OutputDir) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~$") || ContentType(name) == "" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Filename: name,
			Size:     info.Size(),
			Date:     info.ModTime(),
			Theme:    ThemeOf(name),
		})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Date.Equal(files[j].Date) {
			return files[i].Filename < files[j].Filename
		}
		return files[i].Date.After(files[j].Date)
	})
	return files, nil
}

// ThemeOf derives the dataset file name from a report name.
func ThemeOf(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return yearSuffix.ReplaceAllString(base, "")
}
