// Package contractor resolves the business behind a called number.
package contractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/IntakeLine/internal/airtable"
	"github.com/BTreeMap/IntakeLine/internal/flow"
	"github.com/BTreeMap/IntakeLine/internal/models"
	"github.com/BTreeMap/IntakeLine/internal/store"
)

const (
	// DefaultTable is the Airtable table holding contractor rows.
	DefaultTable = "Contractors"
	// DefaultCacheTTL is how long a looked-up profile is cached.
	DefaultCacheTTL = time.Hour
	// DefaultLookupTimeout bounds the Airtable request.
	DefaultLookupTimeout = 10 * time.Second
)

// Airtable column names.
const (
	fieldTwilioNumber   = "Twilio Number"
	fieldBusinessName   = "Business Name"
	fieldEmergencyPhone = "Emergency Phone"
	fieldNotifyEmail    = "Notify Email"
	fieldNotifyPhone    = "Notify Phone"
	fieldActive         = "Active"
)

// recordLister is the subset of the Airtable client the directory needs.
type recordLister interface {
	ListRecords(ctx context.Context, table, formula string, maxRecords int) ([]airtable.Record, error)
}

// Directory is a read-through cache over the contractor table. It
// satisfies flow.Directory.
type Directory struct {
	kv      store.KV
	keys    flow.Keyspace
	source  recordLister
	table   string
	ttl     time.Duration
	timeout time.Duration
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithTable overrides DefaultTable.
func WithTable(table string) DirectoryOption {
	return func(d *Directory) {
		if table != "" {
			d.table = table
		}
	}
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) { d.ttl = ttl }
}

// WithKeyspace sets the cache key layout.
func WithKeyspace(keys flow.Keyspace) DirectoryOption {
	return func(d *Directory) { d.keys = keys }
}

// NewDirectory builds a Directory. source may be nil, in which case only
// cached profiles are ever found.
func NewDirectory(kv store.KV, source recordLister, opts ...DirectoryOption) *Directory {
	d := &Directory{
		kv:      kv,
		keys:    flow.DefaultKeyspace(),
		source:  source,
		table:   DefaultTable,
		ttl:     DefaultCacheTTL,
		timeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Lookup returns the profile for called. Any failure yields an empty
// profile and false; callers fall back to models.DefaultBusinessName.
func (d *Directory) Lookup(ctx context.Context, called string) (models.ContractorProfile, bool) {
	if called == "" {
		return models.ContractorProfile{}, false
	}
	key := d.keys.ContractorCache(called)

	if raw, err := d.kv.Get(ctx, key); err == nil {
		var p models.ContractorProfile
		if jerr := json.Unmarshal([]byte(raw), &p); jerr == nil {
			slog.Debug("Directory.Lookup: cache hit", "called", called)
			return p, true
		}
		slog.Warn("Directory.Lookup: discarding unreadable cache entry", "called", called)
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Directory.Lookup: cache read failed", "called", called, "error", err)
	}

	if d.source == nil {
		return models.ContractorProfile{}, false
	}
	p, found, err := d.fetch(ctx, called)
	if err != nil {
		slog.Error("Directory.Lookup: contractor fetch failed", "called", called, "error", err)
		return models.ContractorProfile{}, false
	}
	if !found {
		slog.Info("Directory.Lookup: no active contractor", "called", called)
		return models.ContractorProfile{}, false
	}

	if data, err := json.Marshal(p); err == nil {
		if err := d.kv.Set(ctx, key, string(data), d.ttl); err != nil {
			slog.Warn("Directory.Lookup: cache write failed", "called", called, "error", err)
		}
	}
	return p, true
}

// Invalidate drops the cached profile for called.
func (d *Directory) Invalidate(ctx context.Context, called string) error {
	return d.kv.Delete(ctx, d.keys.ContractorCache(called))
}

func (d *Directory) fetch(ctx context.Context, called string) (models.ContractorProfile, bool, error) {
	fctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	recs, err := d.source.ListRecords(fctx, d.table, activeNumberFormula(called), 1)
	if err != nil {
		return models.ContractorProfile{}, false, fmt.Errorf("list contractors: %w", err)
	}
	if len(recs) == 0 {
		return models.ContractorProfile{}, false, nil
	}
	r := recs[0]
	return models.ContractorProfile{
		BusinessName:   r.String(fieldBusinessName),
		EmergencyPhone: r.String(fieldEmergencyPhone),
		NotifyEmail:    r.String(fieldNotifyEmail),
		NotifyPhone:    r.String(fieldNotifyPhone),
		Active:         r.Bool(fieldActive),
	}, true, nil
}

// activeNumberFormula matches the active row whose Twilio number is called.
func activeNumberFormula(called string) string {
	quoted := strings.ReplaceAll(called, "'", "\\'")
	return fmt.Sprintf("AND({%s}='%s', {%s}=TRUE())", fieldTwilioNumber, quoted, fieldActive)
}
