package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type HTTPClient struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

type assignRequest struct {
	SellerID      int64  `json:"seller_id"`
	DepartmentRef string `json:"department_ref"`
	UnitName      string `json:"unit_name"`
}

type leadResponse struct {
	LeadID      int64           `json:"lead_id"`
	OwnerRef    string          `json:"owner_ref"`
	AccessLists json.RawMessage `json:"access_lists"`
}

func (h *HTTPClient) AssignOwnership(ctx context.Context, leadID int64, sellerID int64, departmentRef string, unitName string) (OwnershipSnapshot, error) {
	payload := assignRequest{
		SellerID:      sellerID,
		DepartmentRef: departmentRef,
		UnitName:      unitName,
	}
	b, _ := json.Marshal(payload)

	endpoint := fmt.Sprintf("%s/leads/%d/assign", h.BaseURL, leadID)
	return h.do(ctx, "assign", http.MethodPost, endpoint, bytes.NewBuffer(b))
}

func (h *HTTPClient) FetchOwnership(ctx context.Context, leadID int64) (OwnershipSnapshot, error) {
	endpoint := fmt.Sprintf("%s/leads/%d", h.BaseURL, leadID)
	return h.do(ctx, "fetch", http.MethodGet, endpoint, nil)
}

func (h *HTTPClient) do(ctx context.Context, op string, method string, endpoint string, body io.Reader) (OwnershipSnapshot, error) {
	client := h.Client
	if client == nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return OwnershipSnapshot{}, &PermanentError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return OwnershipSnapshot{}, &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 500:
		return OwnershipSnapshot{}, &TransientError{Op: op, Err: errors.New(resp.Status)}
	case resp.StatusCode >= 400:
		return OwnershipSnapshot{}, &PermanentError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    errors.New(resp.Status),
		}
	default:
		// Redirects and other sub-400 statuses the CRM should never emit;
		// treat them as transient so the caller retries.
		return OwnershipSnapshot{}, &TransientError{Op: op, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var r leadResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return OwnershipSnapshot{}, &TransientError{Op: op, Err: err}
	}

	return OwnershipSnapshot{
		LeadID:      r.LeadID,
		OwnerRef:    r.OwnerRef,
		AccessLists: r.AccessLists,
		FetchedAt:   time.Now().UTC(),
	}, nil
}
