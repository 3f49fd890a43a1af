package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roleta_leads/backend/internal/crm"
	"github.com/roleta_leads/backend/internal/models"
)

type QueueStore interface {
	GetUnit(ctx context.Context, unitID int64) (models.Unit, error)
	LoadQueue(ctx context.Context, unitID int64, kind models.QueueKind) (models.Queue, error)
	ReplaceQueue(ctx context.Context, queueID int64, sellerIDs []int64, expectedVersion int64) error
}

type AbsenceStore interface {
	AbsentSellers(ctx context.Context, sellerIDs []int64, at time.Time) (map[int64]bool, error)
}

type AuditStore interface {
	RecordAssignment(ctx context.Context, e models.AssignmentLogEntry) error
}

// Resolver orchestrates the round-robin engine: it picks the eligible head,
// mirrors the decision to the external CRM, commits the rotation and records
// the audit entry. All state-changing operations on one unit run under that
// unit's lock; different units never contend.
type Resolver struct {
	Queues   QueueStore
	Absences AbsenceStore
	Audit    AuditStore
	CRM      crm.Client
	Logger   zerolog.Logger
	Now      func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// AssignResult is returned to the webhook caller. RotationPending marks the
// partial-failure state where the CRM write committed but the queue rotation
// did not persist; the assignment itself still succeeded.
type AssignResult struct {
	Unit             models.Unit           `json:"unit"`
	SellerID         int64                 `json:"seller_id"`
	SellerName       string                `json:"seller_name"`
	PriorOwner       *string               `json:"prior_owner,omitempty"`
	PriorAccessLists json.RawMessage       `json:"prior_access_lists,omitempty"`
	Confirmed        crm.OwnershipSnapshot `json:"confirmed_owner"`
	NewOrder         []int64               `json:"new_order"`
	RotationPending  bool                  `json:"rotation_pending"`
}

type AdvanceResult struct {
	Unit       models.Unit `json:"unit"`
	SellerID   int64       `json:"seller_id"`
	SellerName string      `json:"seller_name"`
	NewOrder   []int64     `json:"new_order"`
}

func (r *Resolver) lockUnit(unitID int64) func() {
	r.mu.Lock()
	if r.locks == nil {
		r.locks = map[int64]*sync.Mutex{}
	}
	l, ok := r.locks[unitID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[unitID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// AssignNext distributes leadID to the unit's current eligible head and
// mirrors the ownership change to the external CRM before rotating. A CRM
// failure leaves the queue untouched, so a retry resolves to the same
// candidate.
func (r *Resolver) AssignNext(ctx context.Context, unitID int64, leadID int64) (AssignResult, error) {
	unlock := r.lockUnit(unitID)
	defer unlock()

	unit, err := r.Queues.GetUnit(ctx, unitID)
	if err != nil {
		return AssignResult{}, err
	}
	if !unit.Active {
		return AssignResult{}, ErrUnitInactive
	}

	q, err := r.Queues.LoadQueue(ctx, unitID, models.QueueAuto)
	if err != nil {
		return AssignResult{}, err
	}
	if len(q.Entries) == 0 {
		return AssignResult{}, ErrEmptyQueue
	}

	at := r.now()
	absent, err := r.Absences.AbsentSellers(ctx, sellerIDs(q.Entries), at)
	if err != nil {
		return AssignResult{}, err
	}
	eligible := FilterEligible(q.Entries, absent)
	if len(eligible) == 0 {
		return AssignResult{}, ErrNoEligibleSeller
	}
	candidate := eligible[0]

	// Best effort: the prior-owner snapshot feeds the audit trail, a fetch
	// failure must not block the assignment.
	var priorOwner *string
	var priorAccess json.RawMessage
	if prior, ferr := r.CRM.FetchOwnership(ctx, leadID); ferr != nil {
		r.Logger.Warn().Err(ferr).Int64("lead_id", leadID).Msg("prior ownership fetch failed")
	} else {
		if prior.OwnerRef != "" {
			owner := prior.OwnerRef
			priorOwner = &owner
		}
		priorAccess = prior.AccessLists
	}

	confirmed, err := r.CRM.AssignOwnership(ctx, leadID, candidate.SellerID, unit.DepartmentRef, unit.Name)
	if err != nil {
		// Ownership never transferred: no rotation, same candidate on retry.
		return AssignResult{}, err
	}

	res := AssignResult{
		Unit:             unit,
		SellerID:         candidate.SellerID,
		SellerName:       candidate.SellerName,
		PriorOwner:       priorOwner,
		PriorAccessLists: priorAccess,
		Confirmed:        confirmed,
		NewOrder:         Rotate(q.Entries, candidate.SellerID),
	}

	if err := r.Queues.ReplaceQueue(ctx, q.ID, res.NewOrder, q.Version); err != nil {
		// The CRM already committed the ownership change. Failing the whole
		// request now would make the caller retry and double-assign the
		// lead, so this surfaces as success with the rotation left pending
		// for reconciliation.
		r.Logger.Error().Err(err).
			Int64("unit_id", unitID).
			Int64("lead_id", leadID).
			Int64("seller_id", candidate.SellerID).
			Msg("rotation persist failed after CRM commit, queue needs reconciliation")
		res.RotationPending = true
	}

	lead := leadID
	r.recordAudit(ctx, models.AssignmentLogEntry{
		UnitID:           unitID,
		SellerID:         candidate.SellerID,
		LeadID:           &lead,
		QueueLength:      len(q.Entries),
		PriorOwner:       priorOwner,
		PriorAccessLists: priorAccess,
		CreatedAt:        at,
	})
	return res, nil
}

// AdvanceQueue is the manual path: identical rotation on the roleta queue,
// no CRM call, audit entry without a lead.
func (r *Resolver) AdvanceQueue(ctx context.Context, unitID int64) (AdvanceResult, error) {
	unlock := r.lockUnit(unitID)
	defer unlock()

	unit, err := r.Queues.GetUnit(ctx, unitID)
	if err != nil {
		return AdvanceResult{}, err
	}
	if !unit.Active {
		return AdvanceResult{}, ErrUnitInactive
	}

	q, err := r.Queues.LoadQueue(ctx, unitID, models.QueueRoleta)
	if err != nil {
		return AdvanceResult{}, err
	}
	if len(q.Entries) == 0 {
		return AdvanceResult{}, ErrEmptyQueue
	}

	at := r.now()
	absent, err := r.Absences.AbsentSellers(ctx, sellerIDs(q.Entries), at)
	if err != nil {
		return AdvanceResult{}, err
	}
	eligible := FilterEligible(q.Entries, absent)
	if len(eligible) == 0 {
		return AdvanceResult{}, ErrNoEligibleSeller
	}
	candidate := eligible[0]

	newOrder := Rotate(q.Entries, candidate.SellerID)
	if err := r.Queues.ReplaceQueue(ctx, q.ID, newOrder, q.Version); err != nil {
		return AdvanceResult{}, err
	}

	r.recordAudit(ctx, models.AssignmentLogEntry{
		UnitID:      unitID,
		SellerID:    candidate.SellerID,
		QueueLength: len(q.Entries),
		CreatedAt:   at,
	})

	return AdvanceResult{
		Unit:       unit,
		SellerID:   candidate.SellerID,
		SellerName: candidate.SellerName,
		NewOrder:   newOrder,
	}, nil
}

// ReorderQueue replaces the full order with the given seller list. The new
// order must contain exactly the current seller set: reordering is not the
// place to add or drop members.
func (r *Resolver) ReorderQueue(ctx context.Context, unitID int64, kind models.QueueKind, order []int64, recordAudit bool) error {
	unlock := r.lockUnit(unitID)
	defer unlock()

	q, err := r.Queues.LoadQueue(ctx, unitID, kind)
	if err != nil {
		return err
	}
	if !sameSellerSet(q.Entries, order) {
		return ErrOrderMismatch
	}
	if err := r.Queues.ReplaceQueue(ctx, q.ID, order, q.Version); err != nil {
		return err
	}

	if recordAudit && len(order) > 0 {
		r.recordAudit(ctx, models.AssignmentLogEntry{
			UnitID:      unitID,
			SellerID:    order[0],
			QueueLength: len(order),
			CreatedAt:   r.now(),
		})
	}
	return nil
}

// AddSeller appends the seller at the tail of the unit's queue. Membership
// changes take the same per-unit lock and versioned replace as rotation, so a
// concurrent assignment can never overwrite them from a stale read.
func (r *Resolver) AddSeller(ctx context.Context, unitID int64, kind models.QueueKind, sellerID int64) error {
	unlock := r.lockUnit(unitID)
	defer unlock()

	q, err := r.Queues.LoadQueue(ctx, unitID, kind)
	if err != nil {
		return err
	}
	for _, e := range q.Entries {
		if e.SellerID == sellerID {
			return ErrAlreadyQueued
		}
	}
	order := append(sellerIDs(q.Entries), sellerID)
	return r.Queues.ReplaceQueue(ctx, q.ID, order, q.Version)
}

// RemoveSeller drops the seller's entry; the replace renumbers the remaining
// entries contiguously from 1.
func (r *Resolver) RemoveSeller(ctx context.Context, unitID int64, kind models.QueueKind, sellerID int64) error {
	unlock := r.lockUnit(unitID)
	defer unlock()

	q, err := r.Queues.LoadQueue(ctx, unitID, kind)
	if err != nil {
		return err
	}
	order := make([]int64, 0, len(q.Entries))
	found := false
	for _, e := range q.Entries {
		if e.SellerID == sellerID {
			found = true
			continue
		}
		order = append(order, e.SellerID)
	}
	if !found {
		return ErrNotQueued
	}
	return r.Queues.ReplaceQueue(ctx, q.ID, order, q.Version)
}

// SwapEntries swaps the entries at seq and seq+1, the up/down buttons of the
// roleta admin screen.
func (r *Resolver) SwapEntries(ctx context.Context, unitID int64, kind models.QueueKind, seq int) error {
	unlock := r.lockUnit(unitID)
	defer unlock()

	q, err := r.Queues.LoadQueue(ctx, unitID, kind)
	if err != nil {
		return err
	}
	if seq < 1 || seq >= len(q.Entries) {
		return ErrBadSwap
	}

	order := sellerIDs(q.Entries)
	order[seq-1], order[seq] = order[seq], order[seq-1]
	return r.Queues.ReplaceQueue(ctx, q.ID, order, q.Version)
}

func (r *Resolver) recordAudit(ctx context.Context, e models.AssignmentLogEntry) {
	if err := r.Audit.RecordAssignment(ctx, e); err != nil {
		r.Logger.Error().Err(err).
			Int64("unit_id", e.UnitID).
			Int64("seller_id", e.SellerID).
			Msg("assignment log write failed")
	}
}

func sameSellerSet(entries []models.QueueEntry, order []int64) bool {
	if len(entries) != len(order) {
		return false
	}
	current := make(map[int64]bool, len(entries))
	for _, e := range entries {
		current[e.SellerID] = true
	}
	seen := make(map[int64]bool, len(order))
	for _, id := range order {
		if !current[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}
