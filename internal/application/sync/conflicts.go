package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealbridge/backend/internal/domain/mapping"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// monitoredFields are the deal properties subject to conflict detection on
// inbound remote changes. Cross-reference properties are remote-authoritative
// and always applied; everything else rides on the normal overwrite.
var monitoredFields = []string{"dealname", "dealstage", "amount", "closedate", "description"}

// ApplyOutcome summarizes one inbound apply pass.
type ApplyOutcome struct {
	Applied      []string
	AutoResolved []string
	Manual       []string
	Warnings     []string
}

// Summary renders the outcome for result records and logs.
func (o *ApplyOutcome) Summary() string {
	return fmt.Sprintf("applied %d field(s), auto-resolved %d conflict(s), %d queued for manual review",
		len(o.Applied), len(o.AutoResolved), len(o.Manual))
}

// ConflictDetector applies inbound remote state to a local deal with
// field-level conflict detection. A field both sides changed since the last
// sync is resolved by the policy table; MANUAL conflicts are persisted for
// an operator and the field is left untouched.
type ConflictDetector struct {
	local    domainsync.LocalClient
	engine   *mapping.Engine
	repo     domainsync.ConflictRepository
	policies domainsync.PolicyTable
	logger   *zap.Logger
	now      func() time.Time
}

// NewConflictDetector creates a conflict detector with the shipped policy
// table.
func NewConflictDetector(
	local domainsync.LocalClient,
	engine *mapping.Engine,
	repo domainsync.ConflictRepository,
	logger *zap.Logger,
) *ConflictDetector {
	return &ConflictDetector{
		local:    local,
		engine:   engine,
		repo:     repo,
		policies: domainsync.DefaultPolicyTable(),
		logger:   logger,
		now:      time.Now,
	}
}

// Apply merges one remote opportunity's state into its linked deal.
func (d *ConflictDetector) Apply(ctx context.Context, deal *domainsync.Deal, opp *domainsync.Opportunity, remoteTs time.Time) (*ApplyOutcome, error) {
	remoteProps := d.engine.OpportunityToDealProperties(opp, deal.Prop("aws_invitation_id"))
	lastSync := d.lastSyncTime(deal)
	if remoteTs.IsZero() {
		remoteTs = d.now().UTC()
	}

	outcome := &ApplyOutcome{}
	updates := make(map[string]string)

	for _, field := range monitoredFields {
		remoteValue, present := remoteProps[field]
		if !present {
			continue
		}
		localValue := deal.Prop(field)
		if localValue == remoteValue {
			continue
		}

		conflict := domainsync.Detect(deal.ID, field, localValue, deal.UpdatedAt, remoteValue, remoteTs, lastSync)
		if conflict == nil {
			// Only one side changed. A local-only change is pushed by the
			// outbound path; a remote-only change is applied here.
			if deal.UpdatedAt.After(lastSync) {
				continue
			}
			updates[field] = remoteValue
			outcome.Applied = append(outcome.Applied, field)
			continue
		}

		resolution := domainsync.Resolve(conflict, d.policies)
		if resolution == nil {
			if err := d.repo.Save(ctx, conflict); err != nil {
				return nil, fmt.Errorf("save conflict for %s.%s: %w", deal.ID, field, err)
			}
			outcome.Manual = append(outcome.Manual, field)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf(
				"Both sides changed %q since the last sync; queued for manual resolution.", field))
			d.logger.Warn("conflict queued for manual resolution",
				zap.String("deal_id", deal.ID),
				zap.String("field", field),
			)
			continue
		}

		conflict.MarkResolved(resolution.Winner, "policy:"+string(resolution.Policy))
		if err := d.repo.Save(ctx, conflict); err != nil {
			return nil, fmt.Errorf("save resolved conflict for %s.%s: %w", deal.ID, field, err)
		}
		outcome.AutoResolved = append(outcome.AutoResolved, field)
		if resolution.Winner == domainsync.WinnerRemote {
			updates[field] = resolution.WinningValue
			outcome.Applied = append(outcome.Applied, field)
		}
	}

	// Cross-reference and status properties are remote-authoritative.
	for name, value := range remoteProps {
		if isMonitored(name) {
			continue
		}
		if deal.Prop(name) != value {
			updates[name] = value
		}
	}
	updates[domainsync.PropLastSyncedAt] = d.now().UTC().Format(time.RFC3339)

	if err := d.local.UpdateDeal(ctx, deal.ID, updates); err != nil {
		return nil, fmt.Errorf("apply remote changes to deal %s: %w", deal.ID, err)
	}
	return outcome, nil
}

// lastSyncTime parses the deal's last-sync marker, zero when never synced.
func (d *ConflictDetector) lastSyncTime(deal *domainsync.Deal) time.Time {
	raw := deal.Prop(domainsync.PropLastSyncedAt)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		d.logger.Warn("unparseable last-sync marker",
			zap.String("deal_id", deal.ID),
			zap.String("value", raw),
		)
		return time.Time{}
	}
	return t
}

func isMonitored(field string) bool {
	for _, f := range monitoredFields {
		if f == field {
			return true
		}
	}
	return false
}

// ConflictService is the admin-facing conflict triage API.
type ConflictService struct {
	repo         domainsync.ConflictRepository
	local        domainsync.LocalClient
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewConflictService creates the conflict triage service.
func NewConflictService(
	repo domainsync.ConflictRepository,
	local domainsync.LocalClient,
	orchestrator *Orchestrator,
	logger *zap.Logger,
) *ConflictService {
	return &ConflictService{
		repo:         repo,
		local:        local,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// ListPending returns unresolved conflicts, oldest first.
func (s *ConflictService) ListPending(ctx context.Context, limit int) ([]*domainsync.Conflict, error) {
	return s.repo.FindPending(ctx, limit)
}

// Resolve applies an operator's decision to a pending conflict and pushes
// the winning value through the normal one-directional sync path.
func (s *ConflictService) Resolve(ctx context.Context, id uuid.UUID, winner domainsync.Winner, resolvedBy string) (*domainsync.Conflict, error) {
	conflict, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conflict.Status == domainsync.ConflictStatusResolved {
		return nil, fmt.Errorf("conflict %s is already resolved", id)
	}
	if winner != domainsync.WinnerLocal && winner != domainsync.WinnerRemote {
		return nil, fmt.Errorf("invalid winner %q", winner)
	}

	conflict.MarkResolved(winner, resolvedBy)
	if err := s.repo.Update(ctx, conflict); err != nil {
		return nil, err
	}

	switch winner {
	case domainsync.WinnerRemote:
		err = s.local.UpdateDeal(ctx, conflict.ObjectID, map[string]string{
			conflict.Field: conflict.RemoteValue,
		})
	case domainsync.WinnerLocal:
		_, err = s.orchestrator.SyncLocalToRemote(ctx, conflict.ObjectID, nil, true)
	}
	if err != nil {
		return nil, fmt.Errorf("apply resolution for conflict %s: %w", id, err)
	}

	s.logger.Info("conflict resolved",
		zap.String("conflict_id", id.String()),
		zap.String("field", conflict.Field),
		zap.String("winner", string(winner)),
		zap.String("resolved_by", resolvedBy),
	)
	return conflict, nil
}
