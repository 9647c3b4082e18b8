package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Rating is the transport form of a rating record.
type Rating struct {
	ExternalID      string  `json:"externalId,omitempty"`
	CatalogID       string  `json:"catalogId"`
	MediaType       string  `json:"mediaType"`
	Source          string  `json:"source"`
	PrimaryRating   string  `json:"primaryRating"`
	SecondaryRating string  `json:"secondaryRating"`
	TertiaryRating  string  `json:"tertiaryRating"`
	PrimaryScore    float64 `json:"primaryScore"`
	SecondaryScore  int     `json:"secondaryScore"`
	TertiaryScore   int     `json:"tertiaryScore"`
	VoteCount       int     `json:"voteCount"`
	Awards          string  `json:"awards"`
	Plot            string  `json:"plot"`
	Title           string  `json:"title"`
	Year            string  `json:"year"`
	CachedAt        string  `json:"cachedAt,omitempty"`
}

// RatingResponse wraps a single rating.
type RatingResponse struct {
	Rating Rating `json:"rating"`
}

// BatchRequest lists catalog ids for a batch lookup.
type BatchRequest struct {
	IDs []string `json:"ids"`
}

// BatchResponse maps each requested id to its rating.
type BatchResponse struct {
	Ratings map[string]Rating `json:"ratings"`
}

// Credential is the masked status of one rating credential.
type Credential struct {
	ID               string `json:"id"`
	Masked           string `json:"masked"`
	DailyUsage       int    `json:"dailyUsage"`
	DailyQuota       int    `json:"dailyQuota"`
	Remaining        int    `json:"remaining"`
	Active           bool   `json:"active"`
	QuotaExceeded    bool   `json:"quotaExceeded"`
	DeactivatedUntil string `json:"deactivatedUntil,omitempty"`
	LastUsedAt       string `json:"lastUsedAt,omitempty"`
	AuthFailures     int    `json:"authFailures"`
	Failures         int    `json:"failures"`
}

// KeysResponse lists credential status.
type KeysResponse struct {
	Credentials []Credential `json:"credentials"`
	Usable      int          `json:"usable"`
}

// Metrics is the transport form of a metrics snapshot.
type Metrics struct {
	CacheHits        int64            `json:"cacheHits"`
	CacheMisses      int64            `json:"cacheMisses"`
	ExternalCalls    int64            `json:"externalCalls"`
	Fallbacks        int64            `json:"fallbacks"`
	Errors           int64            `json:"errors"`
	TotalRequests    int64            `json:"totalRequests"`
	HitRate          float64          `json:"hitRate"`
	TotalLatencyMS   float64          `json:"totalLatencyMs"`
	AverageLatencyMS float64          `json:"averageLatencyMs"`
	CredentialUsage  map[string]int64 `json:"credentialUsage"`
	Since            string           `json:"since,omitempty"`
}

// DiagnosticsResponse aggregates metrics, advice and credential health.
type DiagnosticsResponse struct {
	Metrics         Metrics      `json:"metrics"`
	Recommendations []string     `json:"recommendations"`
	Credentials     []Credential `json:"credentials"`
	Usable          int          `json:"usable"`
	CatalogBreaker  string       `json:"catalogBreaker,omitempty"`
	// CachedRatings is nil when the cache backend cannot count documents.
	CachedRatings *int `json:"cachedRatings,omitempty"`
}

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status         string `json:"status"`
	Running        bool   `json:"running"`
	PID            int    `json:"pid"`
	StartedAt      string `json:"startedAt,omitempty"`
	LockFilePath   string `json:"lockFilePath,omitempty"`
	CatalogBreaker string `json:"catalogBreaker,omitempty"`
	Usable         int    `json:"usable"`
}

// ResetResponse acknowledges a reset request.
type ResetResponse struct {
	Reset   bool   `json:"reset"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
