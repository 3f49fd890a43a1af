package models

import "time"

// QueueKind distinguishes the two flavors of the same queue entity: the
// automatic webhook-driven unit queue and the manually advanced roleta queue.
type QueueKind string

const (
	QueueAuto   QueueKind = "auto"
	QueueRoleta QueueKind = "roleta"
)

type Unit struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DepartmentRef string `json:"department_ref"`
	Active        bool   `json:"active"`
}

type Seller struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	UnitID int64  `json:"unit_id"`
	Active bool   `json:"active"`
}

type Queue struct {
	ID      int64        `json:"id"`
	UnitID  int64        `json:"unit_id"`
	Kind    QueueKind    `json:"kind"`
	Version int64        `json:"version"`
	Entries []QueueEntry `json:"entries"`
}

// QueueEntry carries the seller's active flag alongside the position so the
// eligibility filter never needs a second lookup. Seq is 1-based and
// contiguous; seq 1 is the current head.
type QueueEntry struct {
	SellerID     int64  `json:"seller_id"`
	Seq          int    `json:"seq"`
	SellerName   string `json:"seller_name"`
	SellerActive bool   `json:"seller_active"`
}

type Absence struct {
	ID       int64     `json:"id"`
	SellerID int64     `json:"seller_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Reason   string    `json:"reason"`
}

// AssignmentLogEntry is append-only. LeadID is nil for manual advances.
// PriorOwner and PriorAccessLists hold the pre-write CRM snapshot when one
// could be fetched.
type AssignmentLogEntry struct {
	ID               int64     `json:"id"`
	UnitID           int64     `json:"unit_id"`
	SellerID         int64     `json:"seller_id"`
	LeadID           *int64    `json:"lead_id"`
	QueueLength      int       `json:"queue_length"`
	PriorOwner       *string   `json:"prior_owner"`
	PriorAccessLists []byte    `json:"prior_access_lists,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
