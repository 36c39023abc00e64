package database

// Incident lifecycle statuses.
const (
	StatusPending   = "pending"
	StatusAnalyzing = "analyzing"
	StatusAnalyzed  = "analyzed"
	StatusFailed    = "failed"
)

// Ingestion run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Incident represents a stored security-news item and its enrichment state.
type Incident struct {
	ID             int64
	Title          string
	Description    *string
	Content        *string
	URL            string
	Source         string
	PublishedAt    string
	DiscoveredAt   *string
	Status         string
	Fingerprint    string
	Severity       *string
	AttackType     *string
	RiskScore      *int
	Analysis       *string // serialized AnalysisPayload JSON
	ContentFetched bool
	Region         *string
}

// NewIncident holds the fields supplied at insert time. The store assigns
// the ID, discovery timestamp, and pending status.
type NewIncident struct {
	Title       string
	Description *string
	Content     *string
	URL         string
	Source      string
	PublishedAt string
	Fingerprint string
	Region      *string
}

// IngestionRun is the audit record for one pipeline execution.
type IngestionRun struct {
	ID             string
	Source         *string
	StartedAt      *string
	CompletedAt    *string
	ItemsFetched   int
	ItemsNew       int
	ItemsDuplicate int
	ItemsFailed    int
	Status         string
	ErrorMessage   *string
}

// RunUpdate holds the optional fields of a partial run-log update.
// Nil fields are left untouched.
type RunUpdate struct {
	CompletedAt    *string
	ItemsFetched   *int
	ItemsNew       *int
	ItemsDuplicate *int
	ItemsFailed    *int
	Status         *string
	ErrorMessage   *string
}

// ListOptions filters and paginates incident queries. Zero values mean
// "no filter"; Limit 0 falls back to a default page size.
type ListOptions struct {
	Limit      int
	Offset     int
	Severity   string
	AttackType string
	Query      string // free text across title, description, attack type, analysis
	Date       string // exact publication day, YYYY-MM-DD
}
