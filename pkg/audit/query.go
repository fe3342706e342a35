package audit

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platinummonkey/warden/pkg/faults"
	"github.com/platinummonkey/warden/pkg/observability"
)

// DefaultPageSize applies when a caller does not specify a page size.
const DefaultPageSize = 50

// identityCacheSize bounds the user-id to display-identity cache.
const identityCacheSize = 1024

// Filter is a single-predicate constraint for log retrieval. Exactly one
// field must be set.
type Filter struct {
	Status    *TriageStatus
	UserID    *int64
	IPAddress *string
}

func (f Filter) count() int {
	n := 0
	if f.Status != nil {
		n++
	}
	if f.UserID != nil {
		n++
	}
	if f.IPAddress != nil {
		n++
	}
	return n
}

func (f Filter) predicate() string {
	switch {
	case f.Status != nil:
		return "status"
	case f.UserID != nil:
		return "user"
	case f.IPAddress != nil:
		return "ip"
	}
	return "none"
}

// Engine is the read path over the audit log: filtered, paginated,
// reverse-chronological retrieval. It never mutates entries.
type Engine struct {
	store         *Store
	metrics       *observability.Metrics
	identityCache *lru.Cache[int64, string]
}

// NewEngine creates a query engine over the given store.
func NewEngine(store *Store, metrics *observability.Metrics) (*Engine, error) {
	cache, err := lru.New[int64, string](identityCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:         store,
		metrics:       metrics,
		identityCache: cache,
	}, nil
}

// Query retrieves one page of entries matching the filter, ordered by id
// descending. Exactly one predicate must be active; the precondition is
// enforced here, before any query executes. An empty page is a valid,
// non-error outcome.
func (e *Engine) Query(ctx context.Context, filter Filter, page, pageSize int) ([]*Entry, error) {
	switch n := filter.count(); {
	case n == 0:
		return nil, faults.New(faults.KindInvalidFilterCombination, "exactly one filter is required, got none")
	case n > 1:
		return nil, faults.Newf(faults.KindInvalidFilterCombination, "filters are mutually exclusive, got %d", n)
	}

	limit, offset := paginate(page, pageSize)
	e.metrics.AuditQueriesTotal.WithLabelValues(filter.predicate()).Inc()

	entries, err := e.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, faults.Wrap(faults.KindPersistence, "failed to query audit log", err)
	}
	return entries, nil
}

// QueryByStatus retrieves entries with the given triage status. Status input
// is normalized to uppercase.
func (e *Engine) QueryByStatus(ctx context.Context, status string, page, pageSize int) ([]*Entry, error) {
	normalized := TriageStatus(strings.ToUpper(strings.TrimSpace(status)))
	return e.Query(ctx, Filter{Status: &normalized}, page, pageSize)
}

// QueryByUser retrieves entries referencing the given account id.
func (e *Engine) QueryByUser(ctx context.Context, userID int64, page, pageSize int) ([]*Entry, error) {
	return e.Query(ctx, Filter{UserID: &userID}, page, pageSize)
}

// QueryByIP retrieves entries recorded from the given address.
func (e *Engine) QueryByIP(ctx context.Context, ip string, page, pageSize int) ([]*Entry, error) {
	return e.Query(ctx, Filter{IPAddress: &ip}, page, pageSize)
}

// QueryWithIdentity retrieves denormalized rows joined against the account
// directory. Unlike the single-predicate calls, this lower-level primitive
// accepts multiple simultaneous field=value criteria, conjoined by equality.
func (e *Engine) QueryWithIdentity(ctx context.Context, criteria map[string]interface{}, page, pageSize int) ([]*EntryWithIdentity, error) {
	limit, offset := paginate(page, pageSize)
	e.metrics.AuditQueriesTotal.WithLabelValues("identity").Inc()

	entries, err := e.store.ListWithIdentity(ctx, criteria, limit, offset)
	if err != nil {
		return nil, faults.Wrap(faults.KindPersistence, "failed to query audit log with identity", err)
	}
	return entries, nil
}

// ResolveUsername resolves a log entry's user reference to a display
// identity, caching results. Missing or deleted accounts resolve to "".
func (e *Engine) ResolveUsername(ctx context.Context, userID int64) (string, error) {
	if username, ok := e.identityCache.Get(userID); ok {
		return username, nil
	}

	username, err := e.store.GetUsername(ctx, userID)
	if err != nil {
		return "", faults.Wrap(faults.KindPersistence, "failed to resolve display identity", err)
	}

	// Negative results are cached too; deleted accounts stay deleted.
	e.identityCache.Add(userID, username)
	return username, nil
}

// paginate converts a 1-based page and page size into limit/offset.
func paginate(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	offset = (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}
	return pageSize, offset
}
