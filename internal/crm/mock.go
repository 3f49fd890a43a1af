package crm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type AssignCall struct {
	LeadID        int64
	SellerID      int64
	DepartmentRef string
	UnitName      string
}

// MockClient keeps ownership in memory and records every call so tests can
// assert that the manual path never reaches the CRM.
type MockClient struct {
	mu          sync.Mutex
	owners      map[int64]OwnershipSnapshot
	AssignCalls []AssignCall
	FetchCalls  []int64
	FailAssign  error
	FailFetch   error
}

func NewMockClient() *MockClient {
	return &MockClient{owners: map[int64]OwnershipSnapshot{}}
}

func (m *MockClient) AssignOwnership(ctx context.Context, leadID int64, sellerID int64, departmentRef string, unitName string) (OwnershipSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AssignCalls = append(m.AssignCalls, AssignCall{
		LeadID:        leadID,
		SellerID:      sellerID,
		DepartmentRef: departmentRef,
		UnitName:      unitName,
	})
	if m.FailAssign != nil {
		return OwnershipSnapshot{}, m.FailAssign
	}

	snap := OwnershipSnapshot{
		LeadID:    leadID,
		OwnerRef:  fmt.Sprintf("seller-%d", sellerID),
		FetchedAt: time.Now().UTC(),
	}
	if m.owners == nil {
		m.owners = map[int64]OwnershipSnapshot{}
	}
	m.owners[leadID] = snap
	return snap, nil
}

func (m *MockClient) FetchOwnership(ctx context.Context, leadID int64) (OwnershipSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchCalls = append(m.FetchCalls, leadID)
	if m.FailFetch != nil {
		return OwnershipSnapshot{}, m.FailFetch
	}
	if snap, ok := m.owners[leadID]; ok {
		return snap, nil
	}
	return OwnershipSnapshot{LeadID: leadID, FetchedAt: time.Now().UTC()}, nil
}

// Calls returns copies so assertions do not race with in-flight requests.
func (m *MockClient) Calls() ([]AssignCall, []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assigns := append([]AssignCall(nil), m.AssignCalls...)
	fetches := append([]int64(nil), m.FetchCalls...)
	return assigns, fetches
}
