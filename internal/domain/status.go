package domain

import "strings"

// FilterStatus is the triage state of a listing. The set is closed; see CanTransition.
type FilterStatus string

const (
	StatusPending              FilterStatus = "pending"
	StatusPassedPrefilter      FilterStatus = "passed_prefilter"
	StatusPassedAITitle        FilterStatus = "passed_ai_title"
	StatusPassed               FilterStatus = "passed"
	StatusRejectedNameMismatch FilterStatus = "rejected_name_mismatch"
	StatusRejectedKeyword      FilterStatus = "rejected_keyword"
	StatusRejectedPrice        FilterStatus = "rejected_price"
	StatusRejectedAITitle      FilterStatus = "rejected_ai_title"
	StatusRejectedAIDesc       FilterStatus = "rejected_ai_desc"
)

// AllFilterStatuses lists every status in pipeline order.
func AllFilterStatuses() []FilterStatus {
	return []FilterStatus{
		StatusPending,
		StatusPassedPrefilter,
		StatusPassedAITitle,
		StatusPassed,
		StatusRejectedNameMismatch,
		StatusRejectedKeyword,
		StatusRejectedPrice,
		StatusRejectedAITitle,
		StatusRejectedAIDesc,
	}
}

// Valid reports whether s is one of the declared statuses.
func (s FilterStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPassedPrefilter, StatusPassedAITitle, StatusPassed,
		StatusRejectedNameMismatch, StatusRejectedKeyword, StatusRejectedPrice,
		StatusRejectedAITitle, StatusRejectedAIDesc:
		return true
	default:
		return false
	}
}

// Rejected reports whether s is any rejected_* status.
func (s FilterStatus) Rejected() bool {
	return strings.HasPrefix(string(s), "rejected_")
}

// Terminal reports whether no later stage may change s.
func (s FilterStatus) Terminal() bool {
	return s == StatusPassed || s.Rejected()
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to FilterStatus) bool {
	switch from {
	case StatusPending:
		switch to {
		case StatusPassedPrefilter, StatusRejectedNameMismatch, StatusRejectedKeyword:
			return true
		}
	case StatusPassedPrefilter:
		switch to {
		case StatusRejectedPrice, StatusPassedAITitle, StatusRejectedAITitle, StatusRejectedKeyword:
			return true
		}
	case StatusPassedAITitle:
		switch to {
		case StatusPassed, StatusRejectedAIDesc:
			return true
		}
	case StatusPassed, StatusRejectedNameMismatch, StatusRejectedKeyword, StatusRejectedPrice,
		StatusRejectedAITitle, StatusRejectedAIDesc:
		return false
	}
	return false
}

// Category is the content classification of a listing, independent of FilterStatus.
type Category string

const (
	CategoryNormal Category = "normal"
	CategoryPickup Category = "abholung"
	CategoryDefect Category = "defekt"
)

// SendStatus is the outcome of one outreach attempt.
type SendStatus string

const (
	SendStatusSent   SendStatus = "sent"
	SendStatusFailed SendStatus = "failed"
)
