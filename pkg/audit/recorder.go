package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/platinummonkey/warden/pkg/faults"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/requestinfo"
)

// Recorder is the append-only write path for audit entries. It owns id
// assignment (delegated to the storage sequence) and timestamping.
//
// A failed write is degraded mode, not a fatal condition: the failure goes to
// the operational logger and the degraded-writes counter, and business
// operations that log through RecordBestEffort proceed regardless.
type Recorder struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRecorder wires a recorder from its collaborators.
func NewRecorder(store *Store, logger *observability.Logger, metrics *observability.Metrics) *Recorder {
	return &Recorder{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Record appends one entry, stamping the current time and attaching any
// request metadata found in the context. On persistence failure it reports
// the degradation operationally and returns the unsaved entry together with
// an AuditWriteDegraded error; callers in the business path are expected not
// to propagate it.
func (r *Recorder) Record(ctx context.Context, name, message string, level Level, userID *int64) (*Entry, error) {
	now := time.Now().UTC()
	entry := &Entry{
		Name:    name,
		Message: message,
		Time:    &now,
		Level:   level,
		UserID:  userID,
		Status:  TriageUnread,
	}

	if info, ok := requestinfo.FromContext(ctx); ok {
		entry.IPAddress = info.IPAddress
		entry.UserAgent = info.UserAgent
		entry.RequestURI = info.RequestURI
		entry.RequestMethod = info.RequestMethod
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		r.metrics.AuditWriteFailuresTotal.Inc()
		logger := observability.LoggerWithTraceContext(ctx, r.logger)
		logger.WithError(err).WithFields(map[string]interface{}{
			"log_name": name,
			"level":    int(level),
		}).Error("audit write degraded: entry not persisted")
		return entry, faults.Wrap(faults.KindAuditWriteDegraded, "failed to persist audit entry", err)
	}

	r.metrics.AuditWritesTotal.WithLabelValues(name, strconv.Itoa(int(level))).Inc()
	return entry, nil
}

// RecordBestEffort appends one entry and swallows any degraded-write error.
// The failure has already been reported to the operational channel by Record.
func (r *Recorder) RecordBestEffort(ctx context.Context, name, message string, level int, userID *int64) {
	_, _ = r.Record(ctx, name, message, Level(level), userID)
}
