package margin

// Status and category values come from field data. Each type documents its
// known set, but any other string is kept verbatim so it can be displayed.

// =============================================================================
// CHANGE ORDER STATUS
// =============================================================================

// ChangeOrderStatus is the approval state of a change order.
type ChangeOrderStatus string

const (
	COApproved    ChangeOrderStatus = "Approved"
	COPending     ChangeOrderStatus = "Pending"
	COUnderReview ChangeOrderStatus = "Under Review"
	CORejected    ChangeOrderStatus = "Rejected"
)

// Known reports whether s is one of the documented statuses.
func (s ChangeOrderStatus) Known() bool {
	switch s {
	case COApproved, COPending, COUnderReview, CORejected:
		return true
	}
	return false
}

// IsPending is true for Pending and Under Review.
func (s ChangeOrderStatus) IsPending() bool {
	return s == COPending || s == COUnderReview
}

// =============================================================================
// SCOPE CREEP RESPONSIBILITY
// =============================================================================

// Responsibility names who caused out-of-scope work.
type Responsibility string

const (
	ResponsibilityOwner        Responsibility = "owner"
	ResponsibilityGC           Responsibility = "gc"
	ResponsibilityMorrison     Responsibility = "morrison"
	ResponsibilitySelfAbsorbed Responsibility = "self_absorbed"
)

// Known reports whether r is one of the documented parties.
func (r Responsibility) Known() bool {
	switch r {
	case ResponsibilityOwner, ResponsibilityGC, ResponsibilityMorrison, ResponsibilitySelfAbsorbed:
		return true
	}
	return false
}

// Billable is true when the owner or the GC is responsible for the work.
func (r Responsibility) Billable() bool {
	return r == ResponsibilityOwner || r == ResponsibilityGC
}

// =============================================================================
// SCOPE CREEP CHANGE-ORDER STATUS
// =============================================================================

// ScopeCOStatus tracks whether scope creep was turned into a change order.
type ScopeCOStatus string

const (
	ScopeNotSubmitted     ScopeCOStatus = "not_submitted"
	ScopeSubmitted        ScopeCOStatus = "submitted"
	ScopeApproved         ScopeCOStatus = "approved"
	ScopePending          ScopeCOStatus = "pending"
	ScopeAwaitingApproval ScopeCOStatus = "awaiting_approval"
	ScopeAbsorbed         ScopeCOStatus = "absorbed"
)

// Known reports whether s is one of the documented statuses.
func (s ScopeCOStatus) Known() bool {
	switch s {
	case ScopeNotSubmitted, ScopeSubmitted, ScopeApproved, ScopePending, ScopeAwaitingApproval, ScopeAbsorbed:
		return true
	}
	return false
}

// IsPending is true for pending and awaiting_approval.
func (s ScopeCOStatus) IsPending() bool {
	return s == ScopePending || s == ScopeAwaitingApproval
}

// =============================================================================
// CHANGE ORDER REASON CATEGORY
// =============================================================================

// ReasonCategory is an open set ("Owner Request", "Design Error", ...).
type ReasonCategory string

// UnknownReason labels change orders recorded without a category.
const UnknownReason ReasonCategory = "Unknown"

// Label returns the category for display, UnknownReason when empty.
func (r ReasonCategory) Label() ReasonCategory {
	if r == "" {
		return UnknownReason
	}
	return r
}

// =============================================================================
// ALERTS
// =============================================================================

// Severity ranks alerts: high, medium, low.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// rank orders severities high first. Unknown severities sort last.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

type AlertType string

const (
	AlertScopeCreep   AlertType = "scope_creep"
	AlertLaborOverrun AlertType = "labor_overrun"
	AlertBillingLag   AlertType = "billing_lag"
	AlertPendingCO    AlertType = "pending_co"
)
