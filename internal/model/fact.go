package model

// DiscoveredFact is one fact returned by the research capability before it
// has been reconciled against the record set.
type DiscoveredFact struct {
	Category      string  `json:"category"`
	Title         string  `json:"title"`
	Value         string  `json:"value"`
	Status        string  `json:"status,omitempty"` // legislation facts only
	SourceName    string  `json:"source_name"`
	SourceURL     string  `json:"source_url"`
	EffectiveDate string  `json:"effective_date"` // YYYY-MM-DD, may be empty
	Confidence    float64 `json:"confidence"`
}

// ClassifyStatus is the outcome of reconciling a discovered fact against the
// existing record set
type ClassifyStatus string

const (
	StatusNew      ClassifyStatus = "new"
	StatusUpdated  ClassifyStatus = "updated"
	StatusExisting ClassifyStatus = "existing"
)

// ClassifyResult identifies the record a discovered fact landed on
type ClassifyResult struct {
	Status   ClassifyStatus
	RecordID int
}
