package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewTempFileName generates a collision-free temp file name with the given
// extension (extension includes the dot, e.g. ".jpg").
func NewTempFileName(ext string) string {
	return "mitto_" + uuid.New().String() + ext
}
