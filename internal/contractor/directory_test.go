package contractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/airtable"
	"github.com/BTreeMap/IntakeLine/internal/store"
)

type fakeLister struct {
	records []airtable.Record
	err     error
	calls   int
	formula string
}

func (f *fakeLister) ListRecords(ctx context.Context, table, formula string, maxRecords int) ([]airtable.Record, error) {
	f.calls++
	f.formula = formula
	return f.records, f.err
}

func acmeRecord() airtable.Record {
	return airtable.Record{ID: "rec1", Fields: airtable.Fields{
		"Business Name":   "Acme Plumbing",
		"Emergency Phone": "+15550009999",
		"Notify Email":    "owner@acme.test",
		"Active":          true,
	}}
}

func TestLookupReadThrough(t *testing.T) {
	kv := store.NewInMemoryStore()
	src := &fakeLister{records: []airtable.Record{acmeRecord()}}
	d := NewDirectory(kv, src)
	ctx := context.Background()

	p, ok := d.Lookup(ctx, "+15550001111")
	if !ok || p.BusinessName != "Acme Plumbing" || p.EmergencyPhone != "+15550009999" {
		t.Fatalf("unexpected profile %+v ok=%v", p, ok)
	}
	if src.formula != "AND({Twilio Number}='+15550001111', {Active}=TRUE())" {
		t.Errorf("unexpected formula %q", src.formula)
	}

	if _, err := kv.Get(ctx, "mmeai:contractor_cache:+15550001111"); err != nil {
		t.Fatalf("expected cached profile: %v", err)
	}

	p, ok = d.Lookup(ctx, "+15550001111")
	if !ok || p.NotifyEmail != "owner@acme.test" {
		t.Fatalf("cached lookup returned %+v", p)
	}
	if src.calls != 1 {
		t.Errorf("expected one upstream call, got %d", src.calls)
	}
}

func TestLookupCacheExpires(t *testing.T) {
	kv := store.NewInMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	kv.SetClock(func() time.Time { return now })
	src := &fakeLister{records: []airtable.Record{acmeRecord()}}
	d := NewDirectory(kv, src)
	ctx := context.Background()

	d.Lookup(ctx, "+15550001111")
	now = now.Add(DefaultCacheTTL + time.Second)
	d.Lookup(ctx, "+15550001111")
	if src.calls != 2 {
		t.Errorf("expected refetch after TTL, got %d calls", src.calls)
	}
}

func TestLookupNotFoundIsNotCached(t *testing.T) {
	kv := store.NewInMemoryStore()
	src := &fakeLister{}
	d := NewDirectory(kv, src)

	p, ok := d.Lookup(context.Background(), "+15550002222")
	if ok || p.DisplayName() != "our office" {
		t.Fatalf("expected empty profile, got %+v ok=%v", p, ok)
	}
	d.Lookup(context.Background(), "+15550002222")
	if src.calls != 2 {
		t.Errorf("misses should not be cached, got %d calls", src.calls)
	}
}

func TestLookupSourceFailure(t *testing.T) {
	d := NewDirectory(store.NewInMemoryStore(), &fakeLister{err: errors.New("timeout")})
	if _, ok := d.Lookup(context.Background(), "+15550001111"); ok {
		t.Fatal("expected failed lookup")
	}
}

func TestLookupDegradedStore(t *testing.T) {
	src := &fakeLister{records: []airtable.Record{acmeRecord()}}
	d := NewDirectory(store.NewDegradedKV(nil), src)
	p, ok := d.Lookup(context.Background(), "+15550001111")
	if !ok || p.BusinessName != "Acme Plumbing" {
		t.Fatalf("expected upstream profile with degraded cache, got %+v", p)
	}
}

func TestLookupWithoutSource(t *testing.T) {
	d := NewDirectory(store.NewInMemoryStore(), nil)
	if _, ok := d.Lookup(context.Background(), "+15550001111"); ok {
		t.Fatal("expected miss without a source")
	}
	if _, ok := d.Lookup(context.Background(), ""); ok {
		t.Fatal("expected miss for empty number")
	}
}

func TestInvalidate(t *testing.T) {
	kv := store.NewInMemoryStore()
	src := &fakeLister{records: []airtable.Record{acmeRecord()}}
	d := NewDirectory(kv, src)
	ctx := context.Background()

	d.Lookup(ctx, "+15550001111")
	if err := d.Invalidate(ctx, "+15550001111"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	d.Lookup(ctx, "+15550001111")
	if src.calls != 2 {
		t.Errorf("expected refetch after invalidate, got %d", src.calls)
	}
}
