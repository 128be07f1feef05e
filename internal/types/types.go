package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlanType identifies a billing tier.
type PlanType string

const (
	PlanFree PlanType = "free"
	PlanPro  PlanType = "pro"
)

// AnalysisStatus is the lifecycle state of an analysis. An analysis is
// created pending and transitions exactly once to completed or failed.
type AnalysisStatus string

const (
	StatusPending   AnalysisStatus = "pending"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// Terminal reports whether the status allows no further transitions.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// transition. Only pending->completed and pending->failed are allowed.
func (s AnalysisStatus) CanTransitionTo(next AnalysisStatus) bool {
	return s == StatusPending && next.Terminal()
}

// Subscription is the per-user billing record, mutated by Stripe webhooks.
type Subscription struct {
	UserID               uuid.UUID  `json:"userId"`
	Plan                 PlanType   `json:"plan"`
	Status               string     `json:"status"`
	StripeCustomerID     string     `json:"stripeCustomerId"`
	StripeSubscriptionID string     `json:"stripeSubscriptionId,omitempty"`
	CurrentPeriodStart   *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancelAtPeriodEnd"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Resume is one uploaded document. Immutable after creation; a new upload
// creates a new row.
type Resume struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"userId"`
	OriginalFilename string    `json:"originalFilename"`
	MimeType         string    `json:"mimeType"`
	StorageBucket    string    `json:"storageBucket"`
	StoragePath      string    `json:"storagePath"`
	ExtractedText    string    `json:"-"`
	NormalizedText   string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Analysis is one analysis request and its outcome.
type Analysis struct {
	ID                       uuid.UUID      `json:"id"`
	UserID                   uuid.UUID      `json:"userId"`
	ResumeID                 uuid.UUID      `json:"resumeId"`
	JobDescription           string         `json:"jobDescription"`
	NormalizedJobDescription string         `json:"-"`
	Status                   AnalysisStatus `json:"status"`
	ATSScore                 *int           `json:"atsScore"`
	Summary                  string         `json:"summary,omitempty"`
	MissingKeywords          []string       `json:"missingKeywords,omitempty"`
	Recommendations          []string       `json:"recommendations,omitempty"`
	OptimizedResumeText      string         `json:"optimizedResumeText,omitempty"`
	CoverLetter              string         `json:"coverLetter,omitempty"`
	OptimizedPDFBucket       string         `json:"-"`
	OptimizedPDFPath         string         `json:"-"`
	ErrorMessage             string         `json:"errorMessage,omitempty"`
	Model                    string         `json:"model,omitempty"`
	PromptTokens             *int64         `json:"promptTokens,omitempty"`
	CompletionTokens         *int64         `json:"completionTokens,omitempty"`
	TotalTokens              *int64         `json:"totalTokens,omitempty"`
	ResumeTokensEstimate     int            `json:"resumeTokensEstimate"`
	JobTokensEstimate        int            `json:"jobTokensEstimate"`
	CreatedAt                time.Time      `json:"createdAt"`
	UpdatedAt                time.Time      `json:"updatedAt"`
}

// CompletionParams carries everything needed to mark an analysis completed.
type CompletionParams struct {
	ATSScore            int
	Summary             string
	MissingKeywords     []string
	Recommendations     []string
	OptimizedResumeText string
	CoverLetter         string
	OptimizedPDFBucket  string
	OptimizedPDFPath    string
	Model               string
	PromptTokens        int64
	CompletionTokens    int64
	TotalTokens         int64
}

// UsageEvent is an append-only audit record. Quota accounting counts
// completed analyses directly, never usage events.
type UsageEvent struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"userId"`
	ActionType string         `json:"actionType"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

const (
	ActionResumeBoost = "resume_boost"
	ActionProfileView = "profile_view"
)

// QuotaInfo is the result of a quota check. MonthlyLimit < 0 means the
// plan is unbounded.
type QuotaInfo struct {
	PlanType     PlanType `json:"planType"`
	MonthlyLimit int      `json:"monthlyLimit"`
	Used         int      `json:"used"`
	Remaining    int      `json:"remaining"`
	IsLimited    bool     `json:"isLimited"`
	CanAnalyze   bool     `json:"canAnalyze"`
}

// ResumeAnalysis is the validated payload returned by the AI provider.
type ResumeAnalysis struct {
	ATSScore            int      `json:"ats_score"`
	Summary             string   `json:"summary"`
	MissingKeywords     []string `json:"missing_keywords"`
	Recommendations     []string `json:"recommendations"`
	OptimizedResumeText string   `json:"optimized_resume_text"`
	CoverLetter         string   `json:"cover_letter"`
}

// AnalyzeResult is everything the orchestrator returns to the transport
// layer after a successful pipeline run.
type AnalyzeResult struct {
	AnalysisID          uuid.UUID `json:"analysisId"`
	ResumeID            uuid.UUID `json:"resumeId"`
	ATSScore            int       `json:"atsScore"`
	Summary             string    `json:"summary"`
	MissingKeywords     []string  `json:"missingKeywords"`
	Recommendations     []string  `json:"recommendations"`
	OptimizedResumeText string    `json:"optimizedResumeText"`
	CoverLetter         string    `json:"coverLetter"`
	OptimizedPDFURL     string    `json:"optimizedPdfUrl"`

	// Token counts ride along for metrics but stay out of the response body.
	PromptTokens     int64 `json:"-"`
	CompletionTokens int64 `json:"-"`
	TotalTokens      int64 `json:"-"`
}

// ActivityItem is one entry in the dashboard's recent-activity feed.
type ActivityItem struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// DashboardMetrics is the cached aggregate view behind the dashboard page.
type DashboardMetrics struct {
	TotalResumes      int            `json:"totalResumes"`
	TotalAnalyses     int            `json:"totalAnalyses"`
	ThisMonthAnalyses int            `json:"thisMonthAnalyses"`
	ProfileViews      int            `json:"profileViews"`
	AverageATSScore   int            `json:"averageAtsScore"`
	RecentActivity    []ActivityItem `json:"recentActivity"`
	Usage             UsageSummary   `json:"usageData"`
	Plan              PlanSummary    `json:"planInfo"`
}

// UsageSummary describes rolling-window consumption for the dashboard.
type UsageSummary struct {
	ThisMonthUsage int     `json:"thisMonthUsage"`
	MonthlyLimit   int     `json:"monthlyLimit"`
	Percentage     float64 `json:"percentage"`
}

// PlanSummary is the dashboard's view of the active plan.
type PlanSummary struct {
	PlanType PlanType `json:"planType"`
	Status   string   `json:"status"`
}

// AnalysisListItem is one row of the paginated history view.
type AnalysisListItem struct {
	ID               uuid.UUID      `json:"id"`
	ResumeID         uuid.UUID      `json:"resumeId"`
	JobDescription   string         `json:"jobDescription"`
	Status           AnalysisStatus `json:"status"`
	ATSScore         *int           `json:"atsScore"`
	OriginalFilename string         `json:"originalFilename"`
	MimeType         string         `json:"mimeType"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// AnalysisHistory is a page of history rows plus its pagination envelope.
type AnalysisHistory struct {
	Items      []AnalysisListItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// ErrIllegalTransition is returned when a terminal analysis would be
// mutated again.
type ErrIllegalTransition struct {
	From AnalysisStatus
	To   AnalysisStatus
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal analysis status transition: %s -> %s", e.From, e.To)
}
