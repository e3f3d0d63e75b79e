package toolsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetStatusParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/requests/TOOLS000042/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_ = json.NewEncoder(w).Encode(RequestStatus{
			RequestNumber:  "TOOLS000042",
			StatusCode:     3,
			StatusComments: "done",
		})
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, ApiKey: "secret"})
	status, err := c.GetStatusByRequestNumber(context.Background(), "TOOLS000042")
	if err != nil {
		t.Fatalf("status query failed: %v", err)
	}
	if status == nil || status.StatusCode != 3 || status.StatusComments != "done" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestGetStatusNotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})
	status, err := c.GetStatusByRequestNumber(context.Background(), "TOOLS000099")
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if status != nil {
		t.Fatalf("404 must yield a nil status, got %+v", status)
	}
}

func TestGetStatusServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})
	if _, err := c.GetStatusByRequestNumber(context.Background(), "TOOLS000001"); err == nil {
		t.Fatalf("500 must surface as an error")
	}
}

func TestGetStatusRejectsEmptyRequestNumber(t *testing.T) {
	c := NewClient(ClientOptions{BaseURL: "http://unused"})
	if _, err := c.GetStatusByRequestNumber(context.Background(), "  "); err == nil {
		t.Fatalf("blank request number must be rejected")
	}
}

func TestSubmitRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/requests" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var payload SubmitPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.SamAccount != "jdoe" || payload.Operation != "Disable" {
			t.Errorf("unexpected payload %+v", payload)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(SubmitResult{RequestNumber: "TOOLS000042"})
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})
	result, err := c.SubmitRequest(context.Background(), SubmitPayload{
		SamAccount: "jdoe",
		Operation:  "Disable",
		Comments:   "leaver",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.RequestNumber != "TOOLS000042" {
		t.Fatalf("unexpected request number %q", result.RequestNumber)
	}
}

func TestSubmitRejectedSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate request", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})
	if _, err := c.SubmitRequest(context.Background(), SubmitPayload{SamAccount: "jdoe", Operation: "Disable"}); err == nil {
		t.Fatalf("rejected submit must surface as an error")
	}
}
