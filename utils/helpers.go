/*
Package utils provides helper functions for the coloring book backend.
*/
package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return time.Now().Format("20060102150405") + "-" + uuid.NewString()[:8]
}

// NewJobID generates a unique job identifier
func NewJobID() string {
	return "job_" + uuid.NewString()
}

// NewItemID generates an item identifier that is unique across jobs, which
// the global item index relies on
func NewItemID(jobID string, pos int) string {
	return fmt.Sprintf("%s_item_%03d", jobID, pos)
}
