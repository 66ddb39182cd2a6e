package audit

import (
	"context"
	"time"

	"custodia/internal/platform/metrics"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/requestcontext"
)

// DefaultDetailCap bounds every detail value; long free text (comment
// bodies, custody notes) is truncated before storage.
const DefaultDetailCap = 255

// Recorder writes audit entries. Record must run inside the same unit of
// work as the triggering mutation; a failed append fails the whole mutation
// rather than being swallowed.
type Recorder struct {
	store     Store
	metrics   *metrics.Metrics
	detailCap int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithDetailCap overrides the per-value truncation cap.
func WithDetailCap(limit int) RecorderOption {
	return func(r *Recorder) { r.detailCap = limit }
}

// WithRecorderMetrics wires the entries-recorded counter.
func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder builds a Recorder over the given store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, detailCap: DefaultDetailCap}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends exactly one entry for a committed mutation, correlated by
// (resource id, action). The entry joins the caller's transaction via the
// store; if the append fails the caller's mutation must not commit.
func (r *Recorder) Record(ctx context.Context, p domain.Principal, action domain.AuditAction, resourceType domain.ResourceType, resourceID string, details map[string]string) (Entry, error) {
	if !action.IsValid() {
		return Entry{}, dErrors.Newf(dErrors.CodeValidation, "unknown audit action: %s", action)
	}
	if !resourceType.IsValid() {
		return Entry{}, dErrors.Newf(dErrors.CodeValidation, "unknown resource type: %s", resourceType)
	}
	if p.ID.IsNil() {
		return Entry{}, dErrors.New(dErrors.CodeUnauthenticated, "audit entry requires a principal")
	}

	entry := Entry{
		ID:           domain.NewAuditEntryID(),
		Principal:    p.ID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      truncateDetails(details, r.detailCap),
		Timestamp:    requestcontext.Now(ctx).UTC(),
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "append audit entry")
	}
	r.metrics.RecordAuditEntry(string(action))
	return entry, nil
}

// truncateDetails copies the payload with every value clipped to cap runes.
func truncateDetails(details map[string]string, limit int) map[string]string {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		out[k] = Truncate(v, limit)
	}
	return out
}

// Truncate clips s to at most limit runes, appending an ellipsis marker when
// clipping happened.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
