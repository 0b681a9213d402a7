package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SearchConfig describes the product search handed to the source connector.
type SearchConfig struct {
	Phrase   string
	MinPrice int
	MaxPrice int
	Pages    int
}

// CandidateListing is a search result as extracted by the source connector.
type CandidateListing struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	RawPrice         string   `json:"price"`
	Link             string   `json:"link"`
	Location         string   `json:"location,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	IsInquiry        bool     `json:"is_inquiry,omitempty"`
	Snippet          string   `json:"snippet,omitempty"`
	GeneratedMessage string   `json:"generated_message,omitempty"`
}

// ListingDetails is the long-form content of a listing's detail page.
type ListingDetails struct {
	Description string
	SellerName  string
}

// Triage is the in-run working state of one candidate moving through the filter stages.
type Triage struct {
	Candidate   CandidateListing
	Price       float64
	Description string
	SellerName  string
	Status      FilterStatus
	Reason      string
	Category    Category
}

// NewTriage starts a candidate in the pending state.
func NewTriage(c CandidateListing) *Triage {
	return &Triage{Candidate: c, Status: StatusPending, Category: CategoryNormal}
}

// Advance moves the triage to status `to` if the state machine allows it.
// Rejected and passed states are terminal; Advance on them is a no-op returning false.
func (t *Triage) Advance(to FilterStatus, reason string) bool {
	if !CanTransition(t.Status, to) {
		return false
	}
	t.Status = to
	t.Reason = reason
	return true
}

type triagePayload struct {
	CandidateListing
	PriceValue  float64 `json:"price_value"`
	Description string  `json:"description,omitempty"`
	SellerName  string  `json:"seller_name,omitempty"`
}

// Record snapshots the triage into its durable form.
func (t *Triage) Record(sessionID string, now time.Time) (TriageRecord, error) {
	payload, err := json.Marshal(triagePayload{
		CandidateListing: t.Candidate,
		PriceValue:       t.Price,
		Description:      t.Description,
		SellerName:       t.SellerName,
	})
	if err != nil {
		return TriageRecord{}, fmt.Errorf("marshal payload %s: %w", t.Candidate.ID, err)
	}
	return TriageRecord{
		ID:           t.Candidate.ID,
		Title:        t.Candidate.Title,
		Price:        t.Price,
		RawPrice:     t.Candidate.RawPrice,
		Link:         t.Candidate.Link,
		Location:     t.Candidate.Location,
		Category:     t.Category,
		FilterStatus: t.Status,
		FilterReason: t.Reason,
		SessionID:    sessionID,
		CreatedAt:    now,
		Payload:      payload,
	}, nil
}

// TriageRecord is the durable outcome of triage for one listing.
type TriageRecord struct {
	ID           string
	Title        string
	Price        float64
	RawPrice     string
	Link         string
	Location     string
	Category     Category
	FilterStatus FilterStatus
	FilterReason string
	SessionID    string
	CreatedAt    time.Time
	Payload      json.RawMessage
	MessageSent  bool
	Deleted      bool
}

// GeneratedMessage returns the per-listing message stored in the payload, if any.
func (r TriageRecord) GeneratedMessage() string {
	if len(r.Payload) == 0 {
		return ""
	}
	var p struct {
		GeneratedMessage string `json:"generated_message"`
	}
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return ""
	}
	return p.GeneratedMessage
}

// SentMessageRecord is one outreach attempt. Rows are only ever appended.
type SentMessageRecord struct {
	ID        int64
	ListingID string
	Status    SendStatus
	SentAt    time.Time
	Log       string
}

// MessageTemplate is an externally managed outreach text.
type MessageTemplate struct {
	ID       int64
	Content  string
	IsActive bool
}

// Stats aggregates the store for the status summary.
type Stats struct {
	Listings       int
	ByFilterStatus map[FilterStatus]int
	ByCategory     map[Category]int
	BySendStatus   map[SendStatus]int
	MessagesSent   int
	Deleted        int
}
