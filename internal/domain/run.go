package domain

import "time"

// RunStats describes one archiver pass.
type RunStats struct {
	RunID              string     `json:"run_id"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	StartWatermark     int64      `json:"start_watermark"`
	Ceiling            int64      `json:"ceiling"`
	Watermark          int64      `json:"watermark"`
	RecordsStored      int        `json:"records_stored"`
	ArtifactsExtracted int        `json:"artifacts_extracted"`
	ArtifactsSkipped   int        `json:"artifacts_skipped"`
	ArtifactsMirrored  int        `json:"artifacts_mirrored"`
	Error              string     `json:"error,omitempty"`
	ErrorKind          ErrorKind  `json:"error_kind,omitempty"`
}

// BackfillStats describes one bulk artifact download over an id range.
type BackfillStats struct {
	From               int64 `json:"from"`
	To                 int64 `json:"to"`
	Requested          int   `json:"requested"`
	ArtifactsExtracted int   `json:"artifacts_extracted"`
	ArtifactsSkipped   int   `json:"artifacts_skipped"`
	ArtifactsMirrored  int   `json:"artifacts_mirrored"`
	FetchFailures      int   `json:"fetch_failures"`
}
