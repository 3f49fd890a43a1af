package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/roleta_leads/backend/internal/crm"
	"github.com/roleta_leads/backend/internal/db"
	"github.com/roleta_leads/backend/internal/models"
)

type fakeQueue struct {
	id      int64
	version int64
	order   []int64
}

type fakeStore struct {
	mu          sync.Mutex
	unit        models.Unit
	sellers     map[int64]models.Seller
	queues      map[models.QueueKind]*fakeQueue
	absent      map[int64]bool
	replaceErr  error
	replaceHook func()
	log         []models.AssignmentLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		unit: models.Unit{ID: 10, Name: "Centro", DepartmentRef: "dept-77", Active: true},
		sellers: map[int64]models.Seller{
			1: {ID: 1, Name: "A", UnitID: 10, Active: true},
			2: {ID: 2, Name: "B", UnitID: 10, Active: true},
			3: {ID: 3, Name: "C", UnitID: 10, Active: true},
		},
		queues: map[models.QueueKind]*fakeQueue{
			models.QueueAuto:   {id: 1, version: 1, order: []int64{1, 2, 3}},
			models.QueueRoleta: {id: 2, version: 1, order: []int64{1, 2, 3}},
		},
		absent: map[int64]bool{},
	}
}

func (f *fakeStore) GetUnit(ctx context.Context, unitID int64) (models.Unit, error) {
	if unitID != f.unit.ID {
		return models.Unit{}, db.ErrUnitNotFound
	}
	return f.unit, nil
}

func (f *fakeStore) LoadQueue(ctx context.Context, unitID int64, kind models.QueueKind) (models.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[kind]
	if !ok {
		return models.Queue{}, db.ErrQueueNotFound
	}
	out := models.Queue{ID: q.id, UnitID: unitID, Kind: kind, Version: q.version}
	for i, sellerID := range q.order {
		s := f.sellers[sellerID]
		out.Entries = append(out.Entries, models.QueueEntry{
			SellerID:     sellerID,
			Seq:          i + 1,
			SellerName:   s.Name,
			SellerActive: s.Active,
		})
	}
	return out, nil
}

func (f *fakeStore) ReplaceQueue(ctx context.Context, queueID int64, sellerIDs []int64, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if f.replaceHook != nil {
		hook := f.replaceHook
		f.replaceHook = nil
		hook()
	}
	for _, q := range f.queues {
		if q.id != queueID {
			continue
		}
		if q.version != expectedVersion {
			return db.ErrVersionConflict
		}
		q.order = append([]int64(nil), sellerIDs...)
		q.version++
		return nil
	}
	return db.ErrQueueNotFound
}

func (f *fakeStore) AbsentSellers(ctx context.Context, sellerIDs []int64, at time.Time) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]bool{}
	for _, id := range sellerIDs {
		if f.absent[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeStore) RecordAssignment(ctx context.Context, e models.AssignmentLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, e)
	return nil
}

func (f *fakeStore) orderOf(kind models.QueueKind) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.queues[kind].order...)
}

func newTestResolver(store *fakeStore, mock *crm.MockClient) *Resolver {
	return &Resolver{
		Queues:   store,
		Absences: store,
		Audit:    store,
		CRM:      mock,
		Logger:   zerolog.Nop(),
	}
}

func assertOrder(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestAssignNextSelectsHeadAndRotates(t *testing.T) {
	store := newFakeStore()
	mock := crm.NewMockClient()
	r := newTestResolver(store, mock)

	res, err := r.AssignNext(context.Background(), 10, 100)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.SellerID != 1 || res.SellerName != "A" {
		t.Fatalf("expected seller A first, got %+v", res)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{2, 3, 1})

	res, err = r.AssignNext(context.Background(), 10, 101)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.SellerID != 2 {
		t.Fatalf("expected seller B second, got %d", res.SellerID)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{3, 1, 2})

	assigns, _ := mock.Calls()
	if len(assigns) != 2 {
		t.Fatalf("expected 2 CRM assign calls, got %d", len(assigns))
	}
	if assigns[0].DepartmentRef != "dept-77" || assigns[0].UnitName != "Centro" {
		t.Fatalf("expected department ref and unit name on CRM call, got %+v", assigns[0])
	}

	if len(store.log) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(store.log))
	}
	if store.log[0].LeadID == nil || *store.log[0].LeadID != 100 {
		t.Fatalf("expected lead 100 in first log entry, got %+v", store.log[0])
	}
	if store.log[0].QueueLength != 3 {
		t.Fatalf("expected queue length 3 in log, got %d", store.log[0].QueueLength)
	}
}

func TestAssignNextEmptyQueue(t *testing.T) {
	store := newFakeStore()
	store.queues[models.QueueAuto].order = nil
	r := newTestResolver(store, crm.NewMockClient())

	_, err := r.AssignNext(context.Background(), 10, 100)
	if !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue, got %v", err)
	}
}

func TestAssignNextNoEligibleSeller(t *testing.T) {
	store := newFakeStore()
	store.absent = map[int64]bool{1: true, 2: true, 3: true}
	mock := crm.NewMockClient()
	r := newTestResolver(store, mock)

	_, err := r.AssignNext(context.Background(), 10, 100)
	if !errors.Is(err, ErrNoEligibleSeller) {
		t.Fatalf("expected ErrNoEligibleSeller, got %v", err)
	}
	assigns, _ := mock.Calls()
	if len(assigns) != 0 {
		t.Fatalf("no CRM write may be attempted, got %d calls", len(assigns))
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3})
}

func TestAssignNextSyncFailureIsIdempotent(t *testing.T) {
	store := newFakeStore()
	mock := crm.NewMockClient()
	mock.FailAssign = &crm.TransientError{Op: "assign", Err: errors.New("timeout")}
	r := newTestResolver(store, mock)

	for i := 0; i < 3; i++ {
		_, err := r.AssignNext(context.Background(), 10, 100)
		var transient *crm.TransientError
		if !errors.As(err, &transient) {
			t.Fatalf("attempt %d: expected TransientError, got %v", i, err)
		}
		assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3})
	}
	if len(store.log) != 0 {
		t.Fatalf("failed syncs must not produce log entries, got %d", len(store.log))
	}

	// Every failed attempt offered the same candidate; the first success
	// resolves to that candidate too.
	assigns, _ := mock.Calls()
	for _, call := range assigns {
		if call.SellerID != 1 {
			t.Fatalf("expected seller 1 offered on every retry, got %+v", call)
		}
	}

	mock.FailAssign = nil
	res, err := r.AssignNext(context.Background(), 10, 100)
	if err != nil {
		t.Fatalf("assign after recovery: %v", err)
	}
	if res.SellerID != 1 {
		t.Fatalf("expected seller 1 after recovery, got %d", res.SellerID)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{2, 3, 1})
}

func TestAssignNextPermanentErrorNoRotation(t *testing.T) {
	store := newFakeStore()
	mock := crm.NewMockClient()
	mock.FailAssign = &crm.PermanentError{Op: "assign", Status: 404, Err: errors.New("lead not found")}
	r := newTestResolver(store, mock)

	_, err := r.AssignNext(context.Background(), 10, 100)
	var permanent *crm.PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("expected PermanentError, got %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3})
}

func TestAssignNextSkipsAbsentHeadKeepsRawPosition(t *testing.T) {
	store := newFakeStore()
	store.absent = map[int64]bool{1: true}
	r := newTestResolver(store, crm.NewMockClient())

	res, err := r.AssignNext(context.Background(), 10, 102)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.SellerID != 2 {
		t.Fatalf("expected seller B while A is absent, got %d", res.SellerID)
	}
	// Only B moves: A keeps its raw-queue slot even though it was skipped.
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 3, 2})
}

func TestAssignNextRotationPersistFailureIsSuccessWithWarning(t *testing.T) {
	store := newFakeStore()
	mock := crm.NewMockClient()
	r := newTestResolver(store, mock)
	store.replaceErr = errors.New("db connection lost")

	res, err := r.AssignNext(context.Background(), 10, 100)
	if err != nil {
		t.Fatalf("CRM committed, the caller must not see a failure: %v", err)
	}
	if !res.RotationPending {
		t.Fatalf("expected rotation_pending on persist failure")
	}
	if res.SellerID != 1 {
		t.Fatalf("expected seller 1, got %d", res.SellerID)
	}
	if len(store.log) != 1 {
		t.Fatalf("audit entry must still be written, got %d", len(store.log))
	}
}

func TestAssignNextPriorFetchFailureDoesNotBlock(t *testing.T) {
	store := newFakeStore()
	mock := crm.NewMockClient()
	mock.FailFetch = &crm.TransientError{Op: "fetch", Err: errors.New("timeout")}
	r := newTestResolver(store, mock)

	res, err := r.AssignNext(context.Background(), 10, 100)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.PriorOwner != nil {
		t.Fatalf("expected no prior owner on fetch failure, got %v", *res.PriorOwner)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{2, 3, 1})
}

func TestConcurrentAssignNextSerialized(t *testing.T) {
	store := newFakeStore()
	mock := crm.NewMockClient()
	r := newTestResolver(store, mock)

	var wg sync.WaitGroup
	results := make([]AssignResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.AssignNext(context.Background(), 10, int64(100+i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	got := map[int64]bool{results[0].SellerID: true, results[1].SellerID: true}
	if !got[1] || !got[2] {
		t.Fatalf("expected exactly A and B assigned, got %d and %d", results[0].SellerID, results[1].SellerID)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{3, 1, 2})
	if len(store.log) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(store.log))
	}
}

func TestAdvanceQueueNoCRMCall(t *testing.T) {
	store := newFakeStore()
	mock := crm.NewMockClient()
	r := newTestResolver(store, mock)

	res, err := r.AdvanceQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.SellerID != 1 {
		t.Fatalf("expected seller 1 promoted, got %d", res.SellerID)
	}
	assertOrder(t, res.NewOrder, []int64{2, 3, 1})
	assertOrder(t, store.orderOf(models.QueueRoleta), []int64{2, 3, 1})
	// The automatic queue is untouched.
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3})

	assigns, fetches := mock.Calls()
	if len(assigns) != 0 || len(fetches) != 0 {
		t.Fatalf("manual advance must not reach the CRM: %d assigns, %d fetches", len(assigns), len(fetches))
	}

	if len(store.log) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(store.log))
	}
	if store.log[0].LeadID != nil {
		t.Fatalf("manual advance must log a nil lead, got %v", *store.log[0].LeadID)
	}
}

func TestAdvanceQueueSkipsAbsentSeller(t *testing.T) {
	store := newFakeStore()
	store.absent = map[int64]bool{1: true}
	r := newTestResolver(store, crm.NewMockClient())

	res, err := r.AdvanceQueue(context.Background(), 10)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.SellerID != 2 {
		t.Fatalf("expected seller 2 while 1 is absent, got %d", res.SellerID)
	}
	assertOrder(t, store.orderOf(models.QueueRoleta), []int64{1, 3, 2})
}

func TestReorderQueueRejectsDifferentSellerSet(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(store, crm.NewMockClient())

	err := r.ReorderQueue(context.Background(), 10, models.QueueAuto, []int64{1, 2, 99}, false)
	if !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("expected ErrOrderMismatch, got %v", err)
	}
	err = r.ReorderQueue(context.Background(), 10, models.QueueAuto, []int64{1, 2}, false)
	if !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("expected ErrOrderMismatch for short order, got %v", err)
	}

	if err := r.ReorderQueue(context.Background(), 10, models.QueueAuto, []int64{3, 1, 2}, false); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{3, 1, 2})
}

func TestReorderQueueAuditFlag(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(store, crm.NewMockClient())

	if err := r.ReorderQueue(context.Background(), 10, models.QueueAuto, []int64{2, 1, 3}, true); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if len(store.log) != 1 {
		t.Fatalf("expected audited reorder, got %d entries", len(store.log))
	}
	if store.log[0].LeadID != nil {
		t.Fatalf("reorder log entry must carry no lead")
	}
}

func TestSwapEntries(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(store, crm.NewMockClient())

	if err := r.SwapEntries(context.Background(), 10, models.QueueRoleta, 1); err != nil {
		t.Fatalf("swap: %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueRoleta), []int64{2, 1, 3})

	if err := r.SwapEntries(context.Background(), 10, models.QueueRoleta, 3); !errors.Is(err, ErrBadSwap) {
		t.Fatalf("expected ErrBadSwap for tail position, got %v", err)
	}
	if err := r.SwapEntries(context.Background(), 10, models.QueueRoleta, 0); !errors.Is(err, ErrBadSwap) {
		t.Fatalf("expected ErrBadSwap for zero position, got %v", err)
	}
}

func TestAddSellerAppendsTail(t *testing.T) {
	store := newFakeStore()
	store.sellers[4] = models.Seller{ID: 4, Name: "D", UnitID: 10, Active: true}
	r := newTestResolver(store, crm.NewMockClient())

	if err := r.AddSeller(context.Background(), 10, models.QueueAuto, 4); err != nil {
		t.Fatalf("add: %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3, 4})
	// The roleta queue is untouched.
	assertOrder(t, store.orderOf(models.QueueRoleta), []int64{1, 2, 3})
}

func TestAddSellerAlreadyQueued(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(store, crm.NewMockClient())

	if err := r.AddSeller(context.Background(), 10, models.QueueAuto, 2); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3})
}

func TestRemoveSellerClosesGap(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(store, crm.NewMockClient())

	if err := r.RemoveSeller(context.Background(), 10, models.QueueAuto, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 3})
}

func TestRemoveSellerNotQueued(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(store, crm.NewMockClient())

	if err := r.RemoveSeller(context.Background(), 10, models.QueueAuto, 99); !errors.Is(err, ErrNotQueued) {
		t.Fatalf("expected ErrNotQueued, got %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3})
}

// blockingCRM parks AssignOwnership until released, so a test can observe
// what other operations do while an assignment is in flight.
type blockingCRM struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCRM) AssignOwnership(ctx context.Context, leadID int64, sellerID int64, departmentRef string, unitName string) (crm.OwnershipSnapshot, error) {
	close(b.entered)
	<-b.release
	return crm.OwnershipSnapshot{LeadID: leadID, OwnerRef: "seller"}, nil
}

func (b *blockingCRM) FetchOwnership(ctx context.Context, leadID int64) (crm.OwnershipSnapshot, error) {
	return crm.OwnershipSnapshot{}, nil
}

func TestMembershipChangeWaitsForAssignment(t *testing.T) {
	store := newFakeStore()
	store.sellers[4] = models.Seller{ID: 4, Name: "D", UnitID: 10, Active: true}
	blocking := &blockingCRM{entered: make(chan struct{}), release: make(chan struct{})}
	r := &Resolver{
		Queues:   store,
		Absences: store,
		Audit:    store,
		CRM:      blocking,
		Logger:   zerolog.Nop(),
	}

	assignDone := make(chan error, 1)
	go func() {
		_, err := r.AssignNext(context.Background(), 10, 100)
		assignDone <- err
	}()
	<-blocking.entered

	addDone := make(chan error, 1)
	go func() {
		addDone <- r.AddSeller(context.Background(), 10, models.QueueAuto, 4)
	}()

	select {
	case <-addDone:
		t.Fatalf("membership change completed while an assignment held the unit lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(blocking.release)
	if err := <-assignDone; err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := <-addDone; err != nil {
		t.Fatalf("add: %v", err)
	}
	// The assignment rotated first, then the new seller joined at the tail.
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{2, 3, 1, 4})
}

func TestAdvanceQueueVersionConflict(t *testing.T) {
	store := newFakeStore()
	store.replaceHook = func() {
		store.queues[models.QueueRoleta].version++
	}
	r := newTestResolver(store, crm.NewMockClient())

	_, err := r.AdvanceQueue(context.Background(), 10)
	if !errors.Is(err, db.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueRoleta), []int64{1, 2, 3})
	if len(store.log) != 0 {
		t.Fatalf("conflicting advance must not write an audit entry, got %d", len(store.log))
	}
}

func TestReorderQueueVersionConflict(t *testing.T) {
	store := newFakeStore()
	store.replaceHook = func() {
		store.queues[models.QueueAuto].version++
	}
	r := newTestResolver(store, crm.NewMockClient())

	err := r.ReorderQueue(context.Background(), 10, models.QueueAuto, []int64{3, 1, 2}, false)
	if !errors.Is(err, db.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3})
}

func TestAssignNextInactiveUnit(t *testing.T) {
	store := newFakeStore()
	store.unit.Active = false
	mock := crm.NewMockClient()
	r := newTestResolver(store, mock)

	_, err := r.AssignNext(context.Background(), 10, 100)
	if !errors.Is(err, ErrUnitInactive) {
		t.Fatalf("expected ErrUnitInactive, got %v", err)
	}
	assigns, fetches := mock.Calls()
	if len(assigns) != 0 || len(fetches) != 0 {
		t.Fatalf("inactive unit must not reach the CRM: %d assigns, %d fetches", len(assigns), len(fetches))
	}
	assertOrder(t, store.orderOf(models.QueueAuto), []int64{1, 2, 3})
}

func TestAdvanceQueueInactiveUnit(t *testing.T) {
	store := newFakeStore()
	store.unit.Active = false
	r := newTestResolver(store, crm.NewMockClient())

	_, err := r.AdvanceQueue(context.Background(), 10)
	if !errors.Is(err, ErrUnitInactive) {
		t.Fatalf("expected ErrUnitInactive, got %v", err)
	}
	assertOrder(t, store.orderOf(models.QueueRoleta), []int64{1, 2, 3})
}
