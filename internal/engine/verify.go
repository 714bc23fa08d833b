package engine

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// VerifyOutput checks that a file the engine claims to have written exists
// in dir and opens as the format its extension announces.
func VerifyOutput(dir, name string) error {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output %s not found: %w", name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("output %s is a directory", name)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return fmt.Errorf("output %s is not a readable workbook: %w", name, err)
		}
		defer f.Close()
		if len(f.GetSheetList()) == 0 {
			return fmt.Errorf("output %s has no sheets", name)
		}
	case ".zip":
		zr, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("output %s is not a readable archive: %w", name, err)
		}
		defer zr.Close()
		if len(zr.File) == 0 {
			return fmt.Errorf("output %s is an empty archive", name)
		}
	default:
		return fmt.Errorf("output %s has an unsupported extension", name)
	}
	return nil
}
