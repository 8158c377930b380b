package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dealbridge/backend/internal/domain/mapping"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// fakeLocal is an in-memory CRM double.
type fakeLocal struct {
	deals     map[string]*domainsync.Deal
	companies map[string]*domainsync.Company
	contacts  map[string][]domainsync.Contact
	notes     []*domainsync.Note
	updates   []map[string]string
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{
		deals:     make(map[string]*domainsync.Deal),
		companies: make(map[string]*domainsync.Company),
		contacts:  make(map[string][]domainsync.Contact),
	}
}

func (f *fakeLocal) GetDeal(ctx context.Context, dealID string) (*domainsync.Deal, error) {
	deal, ok := f.deals[dealID]
	if !ok {
		return nil, domainsync.ErrDealNotFound
	}
	return deal, nil
}

func (f *fakeLocal) GetDealWithAssociations(ctx context.Context, dealID string) (*domainsync.Deal, *domainsync.Company, []domainsync.Contact, error) {
	deal, err := f.GetDeal(ctx, dealID)
	if err != nil {
		return nil, nil, nil, err
	}
	return deal, f.companies[dealID], f.contacts[dealID], nil
}

func (f *fakeLocal) UpdateDeal(ctx context.Context, dealID string, properties map[string]string) error {
	deal, ok := f.deals[dealID]
	if !ok {
		return domainsync.ErrDealNotFound
	}
	for k, v := range properties {
		deal.Properties[k] = v
	}
	f.updates = append(f.updates, properties)
	return nil
}

func (f *fakeLocal) CreateNote(ctx context.Context, note *domainsync.Note) error {
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeLocal) SearchDealsByProperty(ctx context.Context, property, value string) ([]*domainsync.Deal, error) {
	var matches []*domainsync.Deal
	for _, deal := range f.deals {
		if deal.Prop(property) == value {
			matches = append(matches, deal)
		}
	}
	return matches, nil
}

// fakeRemote is an in-memory partner system double.
type fakeRemote struct {
	opportunities map[string]*domainsync.Opportunity
	created       []*domainsync.CreateOpportunityInput
	updated       []*domainsync.UpdateOpportunityInput
	nextID        int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{opportunities: make(map[string]*domainsync.Opportunity)}
}

func (f *fakeRemote) CreateOpportunity(ctx context.Context, input *domainsync.CreateOpportunityInput) (*domainsync.Opportunity, error) {
	f.created = append(f.created, input)
	f.nextID++
	opp := &domainsync.Opportunity{
		ID:  fmt.Sprintf("O%07d", f.nextID),
		Arn: fmt.Sprintf("arn:opportunity/O%07d", f.nextID),
		LifeCycle: domainsync.LifeCycle{
			Stage:        input.LifeCycle.Stage,
			ReviewStatus: "Pending Submission",
		},
		Project:  input.Project,
		Customer: input.Customer,
	}
	f.opportunities[opp.ID] = opp
	return opp, nil
}

func (f *fakeRemote) GetOpportunity(ctx context.Context, remoteID string) (*domainsync.Opportunity, error) {
	opp, ok := f.opportunities[remoteID]
	if !ok {
		return nil, domainsync.ErrOpportunityNotFound
	}
	return opp, nil
}

func (f *fakeRemote) UpdateOpportunity(ctx context.Context, input *domainsync.UpdateOpportunityInput) error {
	if _, ok := f.opportunities[input.Identifier]; !ok {
		return domainsync.ErrOpportunityNotFound
	}
	f.updated = append(f.updated, input)
	return nil
}

func (f *fakeRemote) ListRecentlyUpdated(ctx context.Context, since time.Time) ([]*domainsync.Opportunity, error) {
	var result []*domainsync.Opportunity
	for _, opp := range f.opportunities {
		result = append(result, opp)
	}
	return result, nil
}

func testOrchestrator(local *fakeLocal, remote *fakeRemote) *Orchestrator {
	engine := mapping.NewEngine("Sandbox")
	return NewOrchestrator(local, remote, engine, OrchestratorConfig{TriggerTag: "#AWS"}, zap.NewNop())
}

func seedDeal(local *fakeLocal, id, name string, extra map[string]string) *domainsync.Deal {
	props := map[string]string{
		"dealname":  name,
		"dealstage": "qualifiedtobuy",
		"amount":    "50000",
	}
	for k, v := range extra {
		props[k] = v
	}
	deal := &domainsync.Deal{ID: id, Properties: props, UpdatedAt: time.Now().UTC()}
	local.deals[id] = deal
	local.companies[id] = &domainsync.Company{
		ID:         "c-" + id,
		Properties: map[string]string{"name": "Acme Corp", "industry": "COMPUTER_SOFTWARE"},
	}
	return deal
}

func TestOrchestrator_SyncLocalToRemote_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the opportunity and writes the cross-reference", func(t *testing.T) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		seedDeal(local, "12345", "Acme Migration #AWS", nil)

		result, err := o.SyncLocalToRemote(ctx, "12345", nil, false)
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionCreated, result.Action)
		assert.NotEmpty(t, result.RemoteID)

		require.Len(t, remote.created, 1)
		assert.Equal(t, "hs-deal-12345", remote.created[0].ClientToken)

		deal := local.deals["12345"]
		assert.Equal(t, result.RemoteID, deal.RemoteID())
		assert.Equal(t, domainsync.SyncStatusSynced, deal.Prop(domainsync.PropSyncStatus))
		assert.NotEmpty(t, deal.Prop(domainsync.PropLastSyncedAt))
	})

	t.Run("skips deals without the trigger tag", func(t *testing.T) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		seedDeal(local, "12345", "Acme Migration", nil)

		result, err := o.SyncLocalToRemote(ctx, "12345", nil, false)
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionSkipped, result.Action)
		assert.Empty(t, remote.created)
	})

	t.Run("force bypasses the trigger tag", func(t *testing.T) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		seedDeal(local, "12345", "Acme Migration", nil)

		result, err := o.SyncLocalToRemote(ctx, "12345", nil, true)
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionCreated, result.Action)
	})
}

func TestOrchestrator_SyncNewDeal(t *testing.T) {
	ctx := context.Background()

	t.Run("creates on first sync", func(t *testing.T) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		seedDeal(local, "12345", "Acme Migration #AWS", nil)

		result, err := o.SyncNewDeal(ctx, "12345", false)
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionCreated, result.Action)
		require.Len(t, remote.created, 1)
	})

	t.Run("skips a deal already linked to an opportunity", func(t *testing.T) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		seedDeal(local, "12345", "Acme Migration #AWS", map[string]string{
			domainsync.PropRemoteOpportunityID: "O0000001",
		})
		remote.opportunities["O0000001"] = &domainsync.Opportunity{
			ID:        "O0000001",
			LifeCycle: domainsync.LifeCycle{Stage: "Qualified", ReviewStatus: "Submitted"},
			Project:   domainsync.Project{Title: "Acme Migration #AWS"},
		}

		result, err := o.SyncNewDeal(ctx, "12345", false)
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionSkipped, result.Action)
		assert.Equal(t, "O0000001", result.RemoteID)
		assert.Empty(t, remote.created)
		assert.Empty(t, remote.updated)
	})

	t.Run("matches the trigger tag case-insensitively", func(t *testing.T) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		seedDeal(local, "12345", "Acme Migration #aws", nil)

		result, err := o.SyncNewDeal(ctx, "12345", false)
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionCreated, result.Action)
	})
}

func TestOrchestrator_SyncLocalToRemote_Update(t *testing.T) {
	ctx := context.Background()

	setup := func(reviewStatus string) (*fakeLocal, *fakeRemote, *Orchestrator) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		seedDeal(local, "12345", "Acme Migration #AWS", map[string]string{
			domainsync.PropRemoteOpportunityID: "O0000001",
		})
		remote.opportunities["O0000001"] = &domainsync.Opportunity{
			ID: "O0000001",
			LifeCycle: domainsync.LifeCycle{
				Stage:        "Qualified",
				ReviewStatus: reviewStatus,
			},
			Project: domainsync.Project{Title: "Acme Migration #AWS"},
		}
		return local, remote, o
	}

	t.Run("overwrites the remote opportunity", func(t *testing.T) {
		local, remote, o := setup("Approved")

		result, err := o.SyncLocalToRemote(ctx, "12345", nil, false)
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionUpdated, result.Action)

		require.Len(t, remote.updated, 1)
		assert.Equal(t, "O0000001", remote.updated[0].Identifier)
		assert.Equal(t, "Qualified", remote.updated[0].LifeCycle.Stage)

		assert.NotEmpty(t, local.deals["12345"].Prop(domainsync.PropLastSyncedAt))
	})

	t.Run("blocks updates during partner review", func(t *testing.T) {
		_, remote, o := setup("Submitted")

		result, err := o.SyncLocalToRemote(ctx, "12345", nil, false)
		assert.ErrorIs(t, err, domainsync.ErrUpdateBlocked)
		require.NotNil(t, result)
		assert.Equal(t, domainsync.ActionBlocked, result.Action)
		assert.NotEmpty(t, result.Warnings)
		assert.Empty(t, remote.updated)
	})

	t.Run("force pushes through a blocked status", func(t *testing.T) {
		_, remote, o := setup("In Review")

		result, err := o.SyncLocalToRemote(ctx, "12345", nil, true)
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionUpdated, result.Action)
		require.Len(t, remote.updated, 1)
	})

	t.Run("reports the immutable title warning", func(t *testing.T) {
		_, _, o := setup("Approved")

		result, err := o.SyncLocalToRemote(ctx, "12345", map[string]struct{}{"dealname": {}}, false)
		require.NoError(t, err)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "title cannot be changed")
	})
}

func TestOrchestrator_SyncRemoteToLocal(t *testing.T) {
	ctx := context.Background()

	t.Run("applies remote state to the linked deal", func(t *testing.T) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		seedDeal(local, "12345", "Acme Migration #AWS", map[string]string{
			domainsync.PropRemoteOpportunityID: "O0000001",
		})
		remote.opportunities["O0000001"] = &domainsync.Opportunity{
			ID: "O0000001",
			LifeCycle: domainsync.LifeCycle{
				Stage:        "Launched",
				ReviewStatus: "Approved",
			},
			Project: domainsync.Project{Title: "Acme Migration"},
		}

		result, err := o.SyncRemoteToLocal(ctx, "O0000001")
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionUpdated, result.Action)
		assert.Equal(t, "12345", result.LocalID)

		deal := local.deals["12345"]
		assert.Equal(t, "closedwon", deal.Prop("dealstage"))
		assert.Equal(t, "Approved", deal.Prop(domainsync.PropReviewStatus))
	})

	t.Run("skips opportunities with no linked deal", func(t *testing.T) {
		local := newFakeLocal()
		remote := newFakeRemote()
		o := testOrchestrator(local, remote)
		remote.opportunities["O0000009"] = &domainsync.Opportunity{ID: "O0000009"}

		result, err := o.SyncRemoteToLocal(ctx, "O0000009")
		require.NoError(t, err)
		assert.Equal(t, domainsync.ActionSkipped, result.Action)
	})
}
