package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"custodia/internal/platform/metrics"
	"custodia/pkg/domain"
	"custodia/pkg/sentinel"
)

// VersionReader resolves a version token for a resource so cached decisions
// can be keyed on it. The token must change whenever any relation the ref's
// rule depends on changes: for evidence that includes the parent case, whose
// membership the evidence rule delegates to. Any such mutation (update,
// assignment, custody append) makes every cached decision for the old token
// unreachable.
type VersionReader interface {
	ResourceVersion(ctx context.Context, ref ResourceRef) (string, error)
}

// CachedEngine caches Evaluate outcomes in redis under
// policy:{principal}:{type}:{id}:v{version}:{action}. Decisions are never
// cached without the version component, so a role, assignment, or custody
// change between requests can never serve a stale grant.
type CachedEngine struct {
	engine   *Engine
	client   *redis.Client
	versions VersionReader
	ttl      time.Duration
	metrics  *metrics.Metrics
}

const defaultDecisionTTL = 5 * time.Minute

// CacheOption configures a CachedEngine.
type CacheOption func(*CachedEngine)

// WithDecisionTTL bounds how long a cached decision may live. Non-positive
// values keep the default.
func WithDecisionTTL(ttl time.Duration) CacheOption {
	return func(c *CachedEngine) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewCachedEngine wraps the engine with a redis decision cache.
func NewCachedEngine(engine *Engine, client *redis.Client, versions VersionReader, m *metrics.Metrics, opts ...CacheOption) *CachedEngine {
	c := &CachedEngine{
		engine:   engine,
		client:   client,
		versions: versions,
		ttl:      defaultDecisionTTL,
		metrics:  m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate consults the cache for case and evidence refs; everything else
// (comments delegate to parents, audit refs are pure) passes through.
func (c *CachedEngine) Evaluate(ctx context.Context, p domain.Principal, action Action, ref ResourceRef) (Decision, error) {
	if ref.Type != domain.ResourceCase && ref.Type != domain.ResourceEvidence {
		return c.engine.Evaluate(ctx, p, action, ref)
	}

	version, err := c.versions.ResourceVersion(ctx, ref)
	if err != nil {
		// Missing resources and version-read failures fall through to the
		// engine, which produces the authoritative answer.
		return c.engine.Evaluate(ctx, p, action, ref)
	}

	key := fmt.Sprintf("policy:%s:%s:%s:v%s:%s", p.ID, ref.Type, ref.ID(), version, action)
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		c.metrics.RecordPolicyCache("hit")
		return decodeDecision(cached), nil
	}
	c.metrics.RecordPolicyCache("miss")

	dec, err := c.engine.Evaluate(ctx, p, action, ref)
	if err != nil {
		return Decision{}, err
	}
	// Best effort: a failed cache write only costs a future re-evaluation.
	_ = c.client.Set(ctx, key, encodeDecision(dec), c.ttl).Err()
	return dec, nil
}

// Authorize applies the same translation as Engine.Authorize over the cached
// Evaluate.
func (c *CachedEngine) Authorize(ctx context.Context, p domain.Principal, action Action, ref ResourceRef) error {
	dec, err := c.Evaluate(ctx, p, action, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fmtNotFound(ref)
		}
		return err
	}
	if dec.Allowed {
		return nil
	}
	if c.engine.hideDenied {
		return fmtNotFound(ref)
	}
	return fmtForbidden(ref)
}

func encodeDecision(d Decision) string {
	if d.Allowed {
		return "allow"
	}
	return "deny:" + d.Reason
}

func decodeDecision(s string) Decision {
	if s == "allow" {
		return Allow()
	}
	return Deny(strings.TrimPrefix(s, "deny:"))
}

// PostgresVersionReader reads resource versions with a single-row query.
type PostgresVersionReader struct {
	db *sql.DB
}

// NewPostgresVersionReader builds a version reader over the given handle.
func NewPostgresVersionReader(db *sql.DB) *PostgresVersionReader {
	return &PostgresVersionReader{db: db}
}

// ResourceVersion returns a version token for case and evidence refs. The
// evidence token folds in the parent case's version, because the evidence
// rule delegates to case membership: reassigning the case bumps only the case
// row, and that alone must retire every cached evidence decision.
func (r *PostgresVersionReader) ResourceVersion(ctx context.Context, ref ResourceRef) (string, error) {
	switch ref.Type {
	case domain.ResourceCase:
		const query = `SELECT version FROM cases WHERE id = $1`
		var version int64
		if err := r.db.QueryRowContext(ctx, query, uuid.MustParse(ref.ID())).Scan(&version); err != nil {
			return "", versionReadErr(err)
		}
		return strconv.FormatInt(version, 10), nil
	case domain.ResourceEvidence:
		const query = `
			SELECT e.version, c.version
			FROM evidence e
			JOIN cases c ON c.id = e.case_id
			WHERE e.id = $1
		`
		var evidenceVersion, caseVersion int64
		if err := r.db.QueryRowContext(ctx, query, uuid.MustParse(ref.ID())).Scan(&evidenceVersion, &caseVersion); err != nil {
			return "", versionReadErr(err)
		}
		return fmt.Sprintf("%d.%d", evidenceVersion, caseVersion), nil
	default:
		return "", fmt.Errorf("no version column for resource type %q", ref.Type)
	}
}

func versionReadErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("read resource version: %w", err)
}
