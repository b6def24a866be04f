package domain

import "fmt"

// TimeLayout formats lead and event timestamps. The fractional part is
// fixed width so the strings sort lexicographically in chronological
// order; the store's ORDER BY and the feed's ordered view both compare
// timestamps as strings and rely on this.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Status is the workflow state of a lead.
type Status string

const (
	StatusNeedsFollowUp Status = "needs_follow_up"
	StatusInReview      Status = "in_review"
	StatusSuccess       Status = "success"
)

// Statuses lists every legal status value, in workflow order.
var Statuses = []Status{StatusNeedsFollowUp, StatusInReview, StatusSuccess}

// ValidStatus reports whether s is one of the enumerated workflow states.
func ValidStatus(s Status) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successors of current. The workflow is
// strictly linear: needs_follow_up -> in_review -> success.
func NextStatuses(current Status) []Status {
	switch current {
	case StatusNeedsFollowUp:
		return []Status{StatusInReview}
	case StatusInReview:
		return []Status{StatusSuccess}
	default:
		return nil
	}
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to Status) bool {
	for _, s := range NextStatuses(from) {
		if s == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports a status change that violates the
// workflow order.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// Lead is the single persisted entity: an inbound contact and its
// workflow state. OwnerID never changes after creation. AIIdeation is
// set once the ideation agent has run; its presence is the only signal
// that the agent was invoked.
type Lead struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	OrgID           string  `json:"org_id,omitempty"`
	ArtifactContent string  `json:"artifact_content"`
	ContactEmail    string  `json:"contact_email,omitempty"`
	Description     string  `json:"description,omitempty"`
	Source          string  `json:"source,omitempty"`
	Status          Status  `json:"status" enum:"needs_follow_up,in_review,success"`
	AIIdeation      *string `json:"ai_ideation,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

// Event is one entry in the append-only event log.
type Event struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	LeadID  string `json:"lead_id,omitempty"`
	ActorID string `json:"actor_id"`
	Payload string `json:"payload_json"`
}
