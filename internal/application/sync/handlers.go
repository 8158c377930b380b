package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// changedSet extracts the changed-property names an event carries. Provider
// webhook items list the changed property by name; bookkeeping entries are
// not properties.
func changedSet(event *domainsync.Event) map[string]struct{} {
	changed := make(map[string]struct{}, len(event.Properties))
	for name := range event.Properties {
		if name == "subscriptionType" {
			continue
		}
		changed[name] = struct{}{}
	}
	return changed
}

// DealCreationHandler pushes newly created deals to the remote system. The
// trigger-tag gate and the already-linked skip both live in the orchestrator,
// so redelivered creation events never reach the remote record.
type DealCreationHandler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewDealCreationHandler creates the deal-creation handler.
func NewDealCreationHandler(orchestrator *Orchestrator, logger *zap.Logger) *DealCreationHandler {
	return &DealCreationHandler{orchestrator: orchestrator, logger: logger}
}

func (h *DealCreationHandler) EventTypes() []domainsync.EventType {
	return []domainsync.EventType{domainsync.EventTypeDealCreation}
}

func (h *DealCreationHandler) Handle(ctx context.Context, event *domainsync.Event) (*domainsync.Result, error) {
	result, err := h.orchestrator.SyncNewDeal(ctx, event.ObjectID, false)
	if err != nil {
		return nil, err
	}
	if result.Action == domainsync.ActionSkipped {
		h.logger.Debug("deal creation skipped",
			zap.String("deal_id", event.ObjectID),
			zap.String("reason", result.Reason),
		)
	}
	return result, nil
}

// DealUpdateHandler pushes deal property changes to the remote system. It
// turns a blocked review status into a user-visible note instead of an
// error, and reverts local edits to the immutable remote title.
type DealUpdateHandler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewDealUpdateHandler creates the deal-update handler.
func NewDealUpdateHandler(orchestrator *Orchestrator, logger *zap.Logger) *DealUpdateHandler {
	return &DealUpdateHandler{orchestrator: orchestrator, logger: logger}
}

func (h *DealUpdateHandler) EventTypes() []domainsync.EventType {
	return []domainsync.EventType{domainsync.EventTypeDealPropertyChange}
}

func (h *DealUpdateHandler) Handle(ctx context.Context, event *domainsync.Event) (*domainsync.Result, error) {
	changed := changedSet(event)

	result, err := h.orchestrator.SyncLocalToRemote(ctx, event.ObjectID, changed, false)
	if errors.Is(err, domainsync.ErrUpdateBlocked) {
		h.annotateDeal(ctx, event.ObjectID, result.Warnings)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if len(result.Warnings) > 0 {
		h.annotateDeal(ctx, event.ObjectID, result.Warnings)
		if _, titleChanged := changed["dealname"]; titleChanged {
			h.revertTitle(ctx, event.ObjectID)
		}
	}
	return result, nil
}

// annotateDeal surfaces warnings to CRM users as a note on the deal. Note
// creation is best-effort: the sync outcome stands even if it fails.
func (h *DealUpdateHandler) annotateDeal(ctx context.Context, dealID string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	note := &domainsync.Note{
		DealID: dealID,
		Body:   strings.Join(warnings, "\n"),
	}
	if err := h.orchestrator.Local().CreateNote(ctx, note); err != nil {
		h.logger.Warn("failed to create warning note",
			zap.String("deal_id", dealID),
			zap.Error(err),
		)
	}
}

// revertTitle restores the deal name to the immutable remote title so the
// CRM display matches what the partner system will keep showing.
func (h *DealUpdateHandler) revertTitle(ctx context.Context, dealID string) {
	deal, err := h.orchestrator.Local().GetDeal(ctx, dealID)
	if err != nil {
		h.logger.Warn("failed to fetch deal for title revert", zap.String("deal_id", dealID), zap.Error(err))
		return
	}
	canonical := deal.Prop(domainsync.PropRemoteOpportunityTitle)
	if canonical == "" || deal.Prop("dealname") == canonical {
		return
	}
	if err := h.orchestrator.Local().UpdateDeal(ctx, dealID, map[string]string{"dealname": canonical}); err != nil {
		h.logger.Warn("failed to revert deal title", zap.String("deal_id", dealID), zap.Error(err))
	}
}

// CompanyUpdateHandler re-syncs every linked deal of a company whose
// profile changed, since account fields are embedded in the remote payload.
type CompanyUpdateHandler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewCompanyUpdateHandler creates the company-update handler.
func NewCompanyUpdateHandler(orchestrator *Orchestrator, logger *zap.Logger) *CompanyUpdateHandler {
	return &CompanyUpdateHandler{orchestrator: orchestrator, logger: logger}
}

func (h *CompanyUpdateHandler) EventTypes() []domainsync.EventType {
	return []domainsync.EventType{domainsync.EventTypeCompanyPropertyChange}
}

func (h *CompanyUpdateHandler) Handle(ctx context.Context, event *domainsync.Event) (*domainsync.Result, error) {
	deals, err := h.orchestrator.Local().SearchDealsByProperty(ctx, "associations.company", event.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("find deals for company %s: %w", event.ObjectID, err)
	}

	updated := 0
	var warnings []string
	for _, deal := range deals {
		if deal.RemoteID() == "" {
			continue
		}
		result, err := h.orchestrator.SyncLocalToRemote(ctx, deal.ID, nil, false)
		if errors.Is(err, domainsync.ErrUpdateBlocked) {
			warnings = append(warnings, result.Reason)
			continue
		}
		if err != nil {
			return nil, err
		}
		updated++
		warnings = append(warnings, result.Warnings...)
	}

	if updated == 0 {
		return &domainsync.Result{
			Action:   domainsync.ActionSkipped,
			Reason:   "company has no synced deals",
			LocalID:  event.ObjectID,
			Warnings: warnings,
		}, nil
	}
	return &domainsync.Result{
		Action:   domainsync.ActionUpdated,
		LocalID:  event.ObjectID,
		Reason:   fmt.Sprintf("re-synced %d linked deal(s)", updated),
		Warnings: warnings,
	}, nil
}

// NoteCreationHandler pushes a new CRM note to the remote opportunity by
// re-syncing the parent deal; the note body rides along as next steps.
type NoteCreationHandler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewNoteCreationHandler creates the note-creation handler.
func NewNoteCreationHandler(orchestrator *Orchestrator, logger *zap.Logger) *NoteCreationHandler {
	return &NoteCreationHandler{orchestrator: orchestrator, logger: logger}
}

func (h *NoteCreationHandler) EventTypes() []domainsync.EventType {
	return []domainsync.EventType{domainsync.EventTypeNoteCreation}
}

func (h *NoteCreationHandler) Handle(ctx context.Context, event *domainsync.Event) (*domainsync.Result, error) {
	dealID := event.Properties["dealId"]
	if dealID == "" {
		dealID = event.Properties["associatedDealId"]
	}
	if dealID == "" {
		return &domainsync.Result{
			Action: domainsync.ActionSkipped,
			Reason: "note is not associated with a deal",
		}, nil
	}

	deal, err := h.orchestrator.Local().GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.RemoteID() == "" {
		return &domainsync.Result{
			Action:  domainsync.ActionSkipped,
			Reason:  "deal is not synced",
			LocalID: dealID,
		}, nil
	}

	result, err := h.orchestrator.SyncLocalToRemote(ctx, dealID, nil, false)
	if errors.Is(err, domainsync.ErrUpdateBlocked) {
		return result, nil
	}
	return result, err
}

// RemoteChangeHandler applies inbound partner-side changes to the linked
// local deal, running conflict detection first so contested edits are
// resolved by policy instead of silently overwritten.
type RemoteChangeHandler struct {
	orchestrator *Orchestrator
	detector     *ConflictDetector
	logger       *zap.Logger
}

// NewRemoteChangeHandler creates the remote-change handler.
func NewRemoteChangeHandler(orchestrator *Orchestrator, detector *ConflictDetector, logger *zap.Logger) *RemoteChangeHandler {
	return &RemoteChangeHandler{orchestrator: orchestrator, detector: detector, logger: logger}
}

func (h *RemoteChangeHandler) EventTypes() []domainsync.EventType {
	return []domainsync.EventType{domainsync.EventTypeDealPropertyChange}
}

func (h *RemoteChangeHandler) Handle(ctx context.Context, event *domainsync.Event) (*domainsync.Result, error) {
	opp, err := h.orchestrator.Remote().GetOpportunity(ctx, event.ObjectID)
	if err != nil {
		return nil, err
	}

	deal, err := h.orchestrator.findLinkedDeal(ctx, event.ObjectID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return &domainsync.Result{
			Action:   domainsync.ActionSkipped,
			Reason:   "no local deal is linked to this opportunity",
			RemoteID: event.ObjectID,
		}, nil
	}

	outcome, err := h.detector.Apply(ctx, deal, opp, event.Timestamp)
	if err != nil {
		return nil, err
	}

	return &domainsync.Result{
		Action:   domainsync.ActionUpdated,
		LocalID:  deal.ID,
		RemoteID: event.ObjectID,
		Reason:   outcome.Summary(),
		Warnings: outcome.Warnings,
	}, nil
}
