// Package custody keeps the append-only chain-of-custody ledger for
// evidence items. Entries are immutable, totally ordered per item, and
// hash-chained so tampering with a stored entry is detectable.
package custody

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"custodia/pkg/domain"
)

// Entry is one custody event. Immutable once created; the package exposes
// no update or delete path. At least one of FromPrincipal/ToPrincipal is
// always present.
type Entry struct {
	ID            domain.CustodyEntryID
	EvidenceID    domain.EvidenceID
	Action        domain.CustodyAction
	FromPrincipal *domain.PrincipalID
	ToPrincipal   *domain.PrincipalID
	Location      string
	Notes         string
	Timestamp     time.Time
	// PrevHash is the EntryHash of the preceding entry for the same
	// evidence item, empty for the first entry. EntryHash covers the
	// entry's canonical payload plus PrevHash.
	PrevHash  string
	EntryHash string
}

// canonicalPayload is the deterministic string the hash covers. Field order
// is fixed; changing it invalidates every stored chain.
func (e Entry) canonicalPayload() string {
	from := ""
	if e.FromPrincipal != nil {
		from = e.FromPrincipal.String()
	}
	to := ""
	if e.ToPrincipal != nil {
		to = e.ToPrincipal.String()
	}
	return strings.Join([]string{
		e.ID.String(),
		e.EvidenceID.String(),
		string(e.Action),
		from,
		to,
		e.Location,
		e.Notes,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.PrevHash,
	}, "|")
}

// ComputeHash returns the hex SHA-256 of the entry's canonical payload.
func (e Entry) ComputeHash() string {
	sum := sha256.Sum256([]byte(e.canonicalPayload()))
	return hex.EncodeToString(sum[:])
}

// NewChainedEntry assembles an entry linked against the current chain tail.
// The timestamp is nudged forward when the clock has not advanced past the
// tail so per-item ordering stays strict.
func NewChainedEntry(evidenceID domain.EvidenceID, action domain.CustodyAction, from, to *domain.PrincipalID, location, notes string, ts time.Time, prev *Entry) Entry {
	// Postgres keeps microsecond precision; hash the timestamp at the
	// precision it survives a round trip with, or Verify would flag every
	// stored entry.
	ts = ts.Truncate(time.Microsecond)
	prevHash := ""
	if prev != nil {
		prevHash = prev.EntryHash
		if !ts.After(prev.Timestamp) {
			ts = prev.Timestamp.Add(time.Microsecond)
		}
	}
	entry := Entry{
		ID:            domain.NewCustodyEntryID(),
		EvidenceID:    evidenceID,
		Action:        action,
		FromPrincipal: from,
		ToPrincipal:   to,
		Location:      location,
		Notes:         notes,
		Timestamp:     ts,
		PrevHash:      prevHash,
	}
	entry.EntryHash = entry.ComputeHash()
	return entry
}

// VerifyReport is the outcome of walking one evidence item's chain.
type VerifyReport struct {
	Intact  bool
	Entries int
	// BrokenAt identifies the first entry whose hash or linkage failed;
	// nil when the chain is intact.
	BrokenAt *domain.CustodyEntryID
	Reason   string
}

// verifyChain walks entries oldest-first and reports the first broken link.
func verifyChain(entries []Entry) VerifyReport {
	report := VerifyReport{Intact: true, Entries: len(entries)}
	prevHash := ""
	for i := range entries {
		e := entries[i]
		if e.PrevHash != prevHash {
			id := e.ID
			return VerifyReport{
				Entries:  len(entries),
				BrokenAt: &id,
				Reason:   "previous-hash linkage mismatch",
			}
		}
		if e.ComputeHash() != e.EntryHash {
			id := e.ID
			return VerifyReport{
				Entries:  len(entries),
				BrokenAt: &id,
				Reason:   "entry payload does not match its stored hash",
			}
		}
		prevHash = e.EntryHash
	}
	return report
}
