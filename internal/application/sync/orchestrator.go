package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dealbridge/backend/internal/domain/mapping"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// OrchestratorConfig holds sync policy knobs.
type OrchestratorConfig struct {
	// TriggerTag gates outbound creation: only deals whose name carries the
	// tag are pushed to the partner ecosystem.
	TriggerTag string
}

// Orchestrator drives one-directional sync passes between the local CRM and
// the remote partner system. It owns the review-status gate and the
// cross-reference bookkeeping; all field translation is delegated to the
// mapping engine.
type Orchestrator struct {
	local  domainsync.LocalClient
	remote domainsync.RemoteClient
	engine *mapping.Engine
	config OrchestratorConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(
	local domainsync.LocalClient,
	remote domainsync.RemoteClient,
	engine *mapping.Engine,
	config OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if config.TriggerTag == "" {
		config.TriggerTag = "#AWS"
	}
	return &Orchestrator{
		local:  local,
		remote: remote,
		engine: engine,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// HasTriggerTag reports whether a deal is opted into partner sync. The tag
// match ignores case so "#aws" and "#AWS" both opt in.
func (o *Orchestrator) HasTriggerTag(deal *domainsync.Deal) bool {
	name := strings.ToLower(deal.Prop("dealname"))
	return strings.Contains(name, strings.ToLower(o.config.TriggerTag))
}

// SyncNewDeal handles the first-sync path for a creation event. A deal that
// already carries a remote cross-reference is skipped without touching the
// remote record, so redelivered creation events are harmless even while the
// opportunity sits in a blocked review status.
func (o *Orchestrator) SyncNewDeal(ctx context.Context, dealID string, force bool) (*domainsync.Result, error) {
	deal, company, contacts, err := o.local.GetDealWithAssociations(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("fetch deal %s: %w", dealID, err)
	}

	if remoteID := deal.RemoteID(); remoteID != "" {
		return &domainsync.Result{
			Action:   domainsync.ActionSkipped,
			Reason:   "deal is already linked to a remote opportunity",
			LocalID:  deal.ID,
			RemoteID: remoteID,
		}, nil
	}
	return o.createRemote(ctx, deal, company, contacts, force)
}

// SyncLocalToRemote pushes one deal to the remote system, creating the
// opportunity on first sync and overwriting it afterwards.
//
// force bypasses the trigger-tag gate and the review-status block; without
// it a blocked update returns ErrUpdateBlocked and sends nothing.
func (o *Orchestrator) SyncLocalToRemote(ctx context.Context, dealID string, changedProperties map[string]struct{}, force bool) (*domainsync.Result, error) {
	deal, company, contacts, err := o.local.GetDealWithAssociations(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("fetch deal %s: %w", dealID, err)
	}

	if deal.RemoteID() == "" {
		return o.createRemote(ctx, deal, company, contacts, force)
	}
	return o.updateRemote(ctx, deal, company, contacts, changedProperties, force)
}

// createRemote performs the first-sync create path.
func (o *Orchestrator) createRemote(ctx context.Context, deal *domainsync.Deal, company *domainsync.Company, contacts []domainsync.Contact, force bool) (*domainsync.Result, error) {
	if !force && !o.HasTriggerTag(deal) {
		return &domainsync.Result{
			Action:  domainsync.ActionSkipped,
			Reason:  fmt.Sprintf("deal name does not carry the %s tag", o.config.TriggerTag),
			LocalID: deal.ID,
		}, nil
	}

	input := o.engine.DealToOpportunity(deal, company, contacts)
	opp, err := o.remote.CreateOpportunity(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create opportunity for deal %s: %w", deal.ID, err)
	}

	// Write the cross-reference back. If this fails the deal will be synced
	// again on redelivery, and the remote create is deduplicated by the
	// deterministic client token.
	props := map[string]string{
		domainsync.PropRemoteOpportunityID:    opp.ID,
		domainsync.PropRemoteOpportunityArn:   opp.Arn,
		domainsync.PropRemoteOpportunityTitle: opp.Project.Title,
		domainsync.PropReviewStatus:           opp.LifeCycle.ReviewStatus,
		domainsync.PropSyncStatus:             domainsync.SyncStatusSynced,
		domainsync.PropLastSyncedAt:           o.now().UTC().Format(time.RFC3339),
	}
	if err := o.local.UpdateDeal(ctx, deal.ID, props); err != nil {
		return nil, fmt.Errorf("write cross-reference for deal %s: %w", deal.ID, err)
	}

	o.logger.Info("opportunity created",
		zap.String("deal_id", deal.ID),
		zap.String("opportunity_id", opp.ID),
	)
	return &domainsync.Result{
		Action:   domainsync.ActionCreated,
		LocalID:  deal.ID,
		RemoteID: opp.ID,
	}, nil
}

// updateRemote performs the steady-state overwrite path.
func (o *Orchestrator) updateRemote(ctx context.Context, deal *domainsync.Deal, company *domainsync.Company, contacts []domainsync.Contact, changedProperties map[string]struct{}, force bool) (*domainsync.Result, error) {
	remoteID := deal.RemoteID()
	current, err := o.remote.GetOpportunity(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("fetch opportunity %s: %w", remoteID, err)
	}

	input, warnings := o.engine.DealToOpportunityUpdate(deal, current, company, contacts, changedProperties)
	if input == nil {
		if !force {
			return &domainsync.Result{
				Action:   domainsync.ActionBlocked,
				Reason:   fmt.Sprintf("opportunity is in %q review status", current.LifeCycle.ReviewStatus),
				LocalID:  deal.ID,
				RemoteID: remoteID,
				Warnings: warnings,
			}, domainsync.ErrUpdateBlocked
		}
		// Forced: rebuild the payload ignoring the review-status gate.
		input = o.forcedUpdateInput(deal, current, company, contacts)
		warnings = nil
	}

	if err := o.remote.UpdateOpportunity(ctx, input); err != nil {
		return nil, fmt.Errorf("update opportunity %s: %w", remoteID, err)
	}

	props := map[string]string{
		domainsync.PropReviewStatus: current.LifeCycle.ReviewStatus,
		domainsync.PropSyncStatus:   domainsync.SyncStatusSynced,
		domainsync.PropLastSyncedAt: o.now().UTC().Format(time.RFC3339),
	}
	if err := o.local.UpdateDeal(ctx, deal.ID, props); err != nil {
		return nil, fmt.Errorf("write sync marker for deal %s: %w", deal.ID, err)
	}

	o.logger.Info("opportunity updated",
		zap.String("deal_id", deal.ID),
		zap.String("opportunity_id", remoteID),
		zap.Int("warnings", len(warnings)),
	)
	return &domainsync.Result{
		Action:   domainsync.ActionUpdated,
		LocalID:  deal.ID,
		RemoteID: remoteID,
		Warnings: warnings,
	}, nil
}

// forcedUpdateInput builds an update payload for a force-synced deal whose
// review status would normally block the write. The blocked state is
// synthesized away by presenting a clear lifecycle to the mapping engine.
func (o *Orchestrator) forcedUpdateInput(deal *domainsync.Deal, current *domainsync.Opportunity, company *domainsync.Company, contacts []domainsync.Contact) *domainsync.UpdateOpportunityInput {
	unblocked := *current
	unblocked.LifeCycle.ReviewStatus = ""
	input, _ := o.engine.DealToOpportunityUpdate(deal, &unblocked, company, contacts, nil)
	return input
}

// SyncRemoteToLocal pulls one remote opportunity's state into its linked
// local deal. Opportunities with no linked deal are skipped; deal creation
// from the remote side goes through the partner invitation flow, not here.
func (o *Orchestrator) SyncRemoteToLocal(ctx context.Context, remoteID string) (*domainsync.Result, error) {
	opp, err := o.remote.GetOpportunity(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("fetch opportunity %s: %w", remoteID, err)
	}

	deal, err := o.findLinkedDeal(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return &domainsync.Result{
			Action:   domainsync.ActionSkipped,
			Reason:   "no local deal is linked to this opportunity",
			RemoteID: remoteID,
		}, nil
	}

	props := o.engine.OpportunityToDealProperties(opp, deal.Prop("aws_invitation_id"))
	props[domainsync.PropLastSyncedAt] = o.now().UTC().Format(time.RFC3339)

	if err := o.local.UpdateDeal(ctx, deal.ID, props); err != nil {
		return nil, fmt.Errorf("apply remote state to deal %s: %w", deal.ID, err)
	}

	o.logger.Info("deal updated from remote",
		zap.String("deal_id", deal.ID),
		zap.String("opportunity_id", remoteID),
	)
	return &domainsync.Result{
		Action:   domainsync.ActionUpdated,
		LocalID:  deal.ID,
		RemoteID: remoteID,
	}, nil
}

// findLinkedDeal resolves the local deal carrying a remote cross-reference.
func (o *Orchestrator) findLinkedDeal(ctx context.Context, remoteID string) (*domainsync.Deal, error) {
	deals, err := o.local.SearchDealsByProperty(ctx, domainsync.PropRemoteOpportunityID, remoteID)
	if err != nil {
		return nil, fmt.Errorf("search deals for opportunity %s: %w", remoteID, err)
	}
	if len(deals) == 0 {
		return nil, nil
	}
	if len(deals) > 1 {
		o.logger.Warn("multiple deals linked to one opportunity, using first",
			zap.String("opportunity_id", remoteID),
			zap.Int("count", len(deals)),
		)
	}
	return deals[0], nil
}

// Engine exposes the mapping engine for callers that translate without
// syncing (the reconciler's field comparison).
func (o *Orchestrator) Engine() *mapping.Engine {
	return o.engine
}

// Local exposes the CRM client for handlers that write notes or revert
// immutable-field edits.
func (o *Orchestrator) Local() domainsync.LocalClient {
	return o.local
}

// Remote exposes the partner client for the reconciler.
func (o *Orchestrator) Remote() domainsync.RemoteClient {
	return o.remote
}
