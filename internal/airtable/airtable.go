// Package airtable wraps the Airtable SDK for the two calls the service
// makes: creating a record and listing records by formula.
package airtable

import (
	"context"
	"fmt"
	"log/slog"

	airtableapi "github.com/mehanizm/airtable"
)

// Fields is the field map of a single record.
type Fields map[string]any

// Record is one row returned by the API.
type Record struct {
	ID     string
	Fields Fields
}

// String returns a field as a string, or "" when absent or not a string.
func (r Record) String(name string) string {
	v, _ := r.Fields[name].(string)
	return v
}

// Bool returns a checkbox field.
func (r Record) Bool(name string) bool {
	v, _ := r.Fields[name].(bool)
	return v
}

// Opts holds client configuration.
type Opts struct {
	Token   string
	BaseID  string
	BaseURL string
}

// Option configures the client.
type Option func(*Opts)

// WithToken sets the personal access token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithBaseID sets the Airtable base.
func WithBaseID(id string) Option {
	return func(o *Opts) { o.BaseID = id }
}

// WithBaseURL points the client at another API root; used by tests.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// Client talks to one Airtable base.
type Client struct {
	api    *airtableapi.Client
	baseID string
}

// NewClient builds a client. Token and base id are required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" || cfg.BaseID == "" {
		return nil, fmt.Errorf("airtable token and base id must be provided")
	}
	api := airtableapi.NewClient(cfg.Token)
	if cfg.BaseURL != "" {
		if err := api.SetBaseURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("airtable base url: %w", err)
		}
	}
	slog.Debug("Airtable client created", "baseID", cfg.BaseID, "customURL", cfg.BaseURL != "")
	return &Client{api: api, baseID: cfg.BaseID}, nil
}

// within runs fn and returns early when ctx ends first. The SDK calls are
// not context aware, so an abandoned call finishes in the background.
func within[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// CreateRecord adds one record to table and returns its id.
func (c *Client) CreateRecord(ctx context.Context, table string, fields Fields) (string, error) {
	t := c.api.GetTable(c.baseID, table)
	batch := &airtableapi.Records{Records: []*airtableapi.Record{{Fields: map[string]any(fields)}}}

	created, err := within(ctx, func() (*airtableapi.Records, error) {
		return t.AddRecords(batch)
	})
	if err != nil {
		return "", fmt.Errorf("airtable create in %s: %w", table, err)
	}
	if created == nil || len(created.Records) == 0 {
		return "", fmt.Errorf("airtable create in %s: no record returned", table)
	}
	id := created.Records[0].ID
	slog.Debug("Airtable.CreateRecord: created", "table", table, "recordID", id)
	return id, nil
}

// ListRecords returns up to maxRecords rows of table matching formula.
func (c *Client) ListRecords(ctx context.Context, table, formula string, maxRecords int) ([]Record, error) {
	query := c.api.GetTable(c.baseID, table).GetRecords()
	if formula != "" {
		query = query.WithFilterFormula(formula)
	}
	if maxRecords > 0 {
		query = query.MaxRecords(maxRecords)
	}

	page, err := within(ctx, query.Do)
	if err != nil {
		return nil, fmt.Errorf("airtable list %s: %w", table, err)
	}
	if page == nil {
		return nil, nil
	}
	out := make([]Record, 0, len(page.Records))
	for _, r := range page.Records {
		if r == nil {
			continue
		}
		out = append(out, Record{ID: r.ID, Fields: Fields(r.Fields)})
	}
	return out, nil
}
