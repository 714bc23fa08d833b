package generation

import (
	"errors"
	"regexp"
)

// Both values end up inside the engine command line.
var (
	datasetPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	yearPattern    = regexp.MustCompile(`^\d{4}(-\d{4})?$`)
)

var (
	ErrInvalidDataset = errors.New("invalid theme parameter")
	ErrInvalidYear    = errors.New("invalid year parameter: expected YYYY or YYYY-YYYY")
)

// ValidateRequest checks the shape of a dataset id and a year or year range
// before any catalog lookup or engine call.
func ValidateRequest(datasetID, year string) error {
	if !datasetPattern.MatchString(datasetID) {
		return ErrInvalidDataset
	}
	if !yearPattern.MatchString(year) {
		return ErrInvalidYear
	}
	return nil
}
