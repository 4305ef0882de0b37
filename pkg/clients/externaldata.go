package clients

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CompanyRecord is the external-data view of a company.
type CompanyRecord struct {
	Name         string            `json:"name"`
	Registered   string            `json:"registered,omitempty"`
	Jurisdiction string            `json:"jurisdiction,omitempty"`
	Officers     []string          `json:"officers,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// PersonRecord is the external-data view of a person.
type PersonRecord struct {
	Name       string            `json:"name"`
	Roles      []string          `json:"roles,omitempty"`
	Companies  []string          `json:"companies,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ExternalDataClient talks to the external corporate/people data
// service. Lookups are cached by (operation, key); concurrent misses
// for the same key coalesce into a single upstream call.
type ExternalDataClient struct {
	baseURL string
	token   string
	doer    httpDoer
	timeout time.Duration

	group    singleflight.Group
	mu       sync.RWMutex
	cache    map[string]cacheEntry
	cacheTTL time.Duration
}

type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// NewExternalDataClient creates an external-data client with the given
// cache TTL. Auth token is read from EXTERNAL_DATA_TOKEN.
func NewExternalDataClient(baseURL string, timeout, cacheTTL time.Duration) *ExternalDataClient {
	return &ExternalDataClient{
		baseURL:  baseURL,
		token:    authToken("EXTERNAL_DATA_TOKEN"),
		doer:     newHTTPClient(),
		timeout:  timeout,
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
	}
}

type lookupRequest struct {
	Name string `json:"name"`
}

// LookupCompany fetches a company record, or nil when the service has
// no match. Results are cached.
func (c *ExternalDataClient) LookupCompany(ctx context.Context, name string) (*CompanyRecord, error) {
	v, err := c.lookup(ctx, "company:"+name, "/v1/company", name, func() any { return &CompanyRecord{} })
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*CompanyRecord), nil
}

// LookupPerson fetches a person record, or nil when the service has no
// match. Results are cached.
func (c *ExternalDataClient) LookupPerson(ctx context.Context, name string) (*PersonRecord, error) {
	v, err := c.lookup(ctx, "person:"+name, "/v1/person", name, func() any { return &PersonRecord{} })
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*PersonRecord), nil
}

type lookupResponse struct {
	Found  bool `json:"found"`
	Record any  `json:"record,omitempty"`
}

func (c *ExternalDataClient) lookup(ctx context.Context, key, path, name string, newRecord func() any) (any, error) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) <= c.cacheTTL {
		return entry.value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		record := newRecord()
		resp := lookupResponse{Record: record}
		if err := postJSON(ctx, c.doer, "external_data", c.baseURL+path, c.token, c.timeout,
			lookupRequest{Name: name}, &resp); err != nil {
			return nil, err
		}
		var value any
		if resp.Found {
			value = record
		}
		c.mu.Lock()
		c.cache[key] = cacheEntry{value: value, fetchedAt: time.Now()}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
