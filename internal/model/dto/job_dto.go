package dto

// RunSummary is the batch-job result returned by the scheduled-job
// endpoints for monitoring.
type RunSummary struct {
	Processed  int   `json:"processed"`
	Successful int   `json:"successful"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
}
