package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(WithToken("tok"), WithBaseID("app1"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(WithToken("tok")); err == nil {
		t.Fatal("expected error without base id")
	}
	if _, err := NewClient(WithBaseID("app1")); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestCreateRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/app1/Leads") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Records []struct {
				Fields Fields `json:"fields"`
			} `json:"records"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Records) != 1 || body.Records[0].Fields["Client Name"] != "Dana" {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records":[{"id":"rec1","fields":{"Client Name":"Dana"}}]}`))
	})

	id, err := c.CreateRecord(context.Background(), "Leads", Fields{"Client Name": "Dana"})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if id != "rec1" {
		t.Errorf("expected rec1, got %q", id)
	}
}

func TestCreateRecordRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"UNKNOWN_FIELD_NAME"}}`, http.StatusUnprocessableEntity)
	})

	if _, err := c.CreateRecord(context.Background(), "Leads", Fields{"Headline": "x"}); err == nil {
		t.Fatal("expected an error for a rejected record")
	}
}

func TestCreateRecordHonoursContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"records":[{"id":"rec1","fields":{}}]}`))
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.CreateRecord(ctx, "Leads", Fields{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestListRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/app1/Contractors") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("filterByFormula"); got != "{Active}=TRUE()" {
			t.Errorf("unexpected formula %q", got)
		}
		if got := r.URL.Query().Get("maxRecords"); got != "1" {
			t.Errorf("unexpected maxRecords %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records":[{"id":"rec9","fields":{"Business Name":"Acme","Active":true}}]}`))
	})

	recs, err := c.ListRecords(context.Background(), "Contractors", "{Active}=TRUE()", 1)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "rec9" || recs[0].String("Business Name") != "Acme" || !recs[0].Bool("Active") {
		t.Errorf("unexpected records %+v", recs)
	}
	if recs[0].String("Missing") != "" {
		t.Error("missing field should read as empty")
	}
}
