package domain

// OpsMetrics is the operational snapshot served to administrators.
type OpsMetrics struct {
	TransfersCompleted  int64   `json:"transfersCompleted"`
	TransfersFailed     int64   `json:"transfersFailed"`
	TransferFailureRate float64 `json:"transferFailureRate"`
	DealsCreated        int64   `json:"dealsCreated"`
	DealsReleased       int64   `json:"dealsReleased"`
	ConflictRetries     int64   `json:"conflictRetries"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	Period              string  `json:"period"`
}
