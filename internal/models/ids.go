package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier, e.g. "job_4f9c…".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
