package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConflictStatus represents the lifecycle state of a conflict record.
type ConflictStatus string

const (
	ConflictStatusPending  ConflictStatus = "PENDING"
	ConflictStatusResolved ConflictStatus = "RESOLVED"
)

// ResolutionPolicy decides which side of a contested edit wins.
type ResolutionPolicy string

const (
	PolicyLastWriteWins ResolutionPolicy = "LAST_WRITE_WINS"
	PolicyLocalWins     ResolutionPolicy = "LOCAL_WINS"
	PolicyRemoteWins    ResolutionPolicy = "REMOTE_WINS"
	PolicyManual        ResolutionPolicy = "MANUAL"
)

// Winner names the side whose value was applied.
type Winner string

const (
	WinnerLocal  Winner = "LOCAL"
	WinnerRemote Winner = "REMOTE"
)

// Conflict records a true concurrent edit: both sides changed the same field
// since the last successful sync and the values differ.
type Conflict struct {
	ID              uuid.UUID
	ObjectID        string
	Field           string
	LocalValue      string
	LocalTimestamp  time.Time
	RemoteValue     string
	RemoteTimestamp time.Time
	LastSyncedAt    time.Time
	DetectedAt      time.Time
	Status          ConflictStatus
	Winner          Winner
	ResolvedBy      string
	ResolvedAt      *time.Time
}

// Resolution is the advisory outcome of applying a policy to a conflict.
// Callers apply the winning value through the normal one-directional sync
// path; resolving never performs the write-back itself.
type Resolution struct {
	Field        string
	Policy       ResolutionPolicy
	Winner       Winner
	WinningValue string
	ResolvedAt   time.Time
	Automatic    bool
}

// PolicyTable maps field names to resolution policies. It is a versioned,
// explicit table rather than an environment lookup so that the effective
// policy for any field is inspectable at a single site.
type PolicyTable struct {
	Version       int
	Fields        map[string]ResolutionPolicy
	DefaultPolicy ResolutionPolicy
}

// DefaultPolicyTable returns the shipped field-policy table. Fields absent
// from the table fall back to LAST_WRITE_WINS.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		Version: 1,
		Fields: map[string]ResolutionPolicy{
			"dealstage":         PolicyLocalWins,
			"aws_review_status": PolicyRemoteWins,
			"amount":            PolicyManual,
			"closedate":         PolicyManual,
		},
		DefaultPolicy: PolicyLastWriteWins,
	}
}

// PolicyFor returns the policy governing a field.
func (t PolicyTable) PolicyFor(field string) ResolutionPolicy {
	if p, ok := t.Fields[field]; ok {
		return p
	}
	if t.DefaultPolicy != "" {
		return t.DefaultPolicy
	}
	return PolicyLastWriteWins
}

// Detect reports whether an edit is contested. A conflict exists only when
// both sides changed since the last successful sync and the values differ;
// when exactly one side changed, the other side simply needs to catch up and
// the normal one-directional sync handles it.
func Detect(objectID, field, localValue string, localTs time.Time, remoteValue string, remoteTs, lastSyncTs time.Time) *Conflict {
	if localValue == remoteValue {
		return nil
	}

	localChanged := localTs.After(lastSyncTs)
	remoteChanged := remoteTs.After(lastSyncTs)
	if !localChanged || !remoteChanged {
		return nil
	}

	return &Conflict{
		ID:              uuid.New(),
		ObjectID:        objectID,
		Field:           field,
		LocalValue:      localValue,
		LocalTimestamp:  localTs,
		RemoteValue:     remoteValue,
		RemoteTimestamp: remoteTs,
		LastSyncedAt:    lastSyncTs,
		DetectedAt:      time.Now().UTC(),
		Status:          ConflictStatusPending,
	}
}

// Resolve applies the field's policy to a conflict. Returns nil when the
// policy is MANUAL; the caller must then queue the conflict for a human.
func Resolve(conflict *Conflict, table PolicyTable) *Resolution {
	policy := table.PolicyFor(conflict.Field)
	if policy == PolicyManual {
		return nil
	}

	var winner Winner
	var value string
	switch policy {
	case PolicyLocalWins:
		winner, value = WinnerLocal, conflict.LocalValue
	case PolicyRemoteWins:
		winner, value = WinnerRemote, conflict.RemoteValue
	default: // LAST_WRITE_WINS
		if conflict.LocalTimestamp.After(conflict.RemoteTimestamp) {
			winner, value = WinnerLocal, conflict.LocalValue
		} else {
			winner, value = WinnerRemote, conflict.RemoteValue
		}
	}

	return &Resolution{
		Field:        conflict.Field,
		Policy:       policy,
		Winner:       winner,
		WinningValue: value,
		ResolvedAt:   time.Now().UTC(),
		Automatic:    true,
	}
}

// MarkResolved transitions the conflict to its terminal state.
func (c *Conflict) MarkResolved(winner Winner, resolvedBy string) {
	now := time.Now().UTC()
	c.Status = ConflictStatusResolved
	c.Winner = winner
	c.ResolvedBy = resolvedBy
	c.ResolvedAt = &now
}

// ConflictRepository persists conflict records for manual triage.
type ConflictRepository interface {
	Save(ctx context.Context, conflicts ...*Conflict) error
	FindPending(ctx context.Context, limit int) ([]*Conflict, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Conflict, error)
	Update(ctx context.Context, conflict *Conflict) error
}
