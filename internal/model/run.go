package model

// CheckSummary holds the counters reported by one check run's terminal
// completed event
type CheckSummary struct {
	New           int `json:"new"`
	Updated       int `json:"updated"`
	Alerts        int `json:"alerts"`
	LowConfidence int `json:"low_confidence"`
}

// BatchSummary aggregates per-jurisdiction outcomes across one batch run
type BatchSummary struct {
	Total              int `json:"total"`
	Succeeded          int `json:"succeeded"`
	Failed             int `json:"failed"`
	LowConfidenceTotal int `json:"low_confidence_total"`
}

// Metro is one batch target, addressed by label rather than id since the
// jurisdiction may not exist until the run creates it
type Metro struct {
	City  string `yaml:"city" json:"city"`
	State string `yaml:"state" json:"state"`
}
