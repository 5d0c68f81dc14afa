package config

import "os"

// ImportConfig controls the bulk movie import endpoint.
type ImportConfig struct {
	UploadDir      string // where uploads are spooled while being read
	MaxBytes       int64  // largest accepted upload
	ReportFailures bool   // include per-section failures in the response
}

func LoadImportConfig() ImportConfig {
	c := ImportConfig{
		UploadDir:      envStr("IMPORT_UPLOAD_DIR", os.TempDir()),
		MaxBytes:       envInt64("IMPORT_MAX_BYTES", 10<<20),
		ReportFailures: envBool("IMPORT_REPORT_FAILURES", false),
	}
	if c.MaxBytes <= 0 { c.MaxBytes = 10 << 20 }
	return c
}
