package runner

import (
	"crypto/rand"
	"fmt"
	"time"
)

// GenerateRunID produces a sortable run identifier: UTC-ish local timestamp
// plus a short random suffix, e.g. "20260829T142233-9f3a01bc".
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}
