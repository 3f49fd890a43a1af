package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// OwnershipSnapshot is what the external CRM reports about a lead: its current
// owner reference and the access lists attached to the record.
type OwnershipSnapshot struct {
	LeadID      int64           `json:"lead_id"`
	OwnerRef    string          `json:"owner_ref"`
	AccessLists json.RawMessage `json:"access_lists,omitempty"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// Client talks to the external CRM that owns the authoritative lead record.
// AssignOwnership transfers the lead to a seller and writes the unit's
// management-department reference into the lead's access lists. FetchOwnership
// reads the current state without modifying it.
type Client interface {
	AssignOwnership(ctx context.Context, leadID int64, sellerID int64, departmentRef string, unitName string) (OwnershipSnapshot, error)
	FetchOwnership(ctx context.Context, leadID int64) (OwnershipSnapshot, error)
}

// TransientError covers timeouts, transport failures and 5xx responses. The
// caller may retry; no ownership change happened.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("crm %s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError covers 4xx responses such as an unknown lead or a rejected
// payload. Retrying with the same input will not help.
type PermanentError struct {
	Op     string
	Status int
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("crm %s: permanent (status %d): %v", e.Op, e.Status, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }
