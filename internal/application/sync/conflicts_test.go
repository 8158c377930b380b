package sync

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dealbridge/backend/internal/domain/mapping"
	domainsync "github.com/dealbridge/backend/internal/domain/sync"
)

// fakeConflictRepo is an in-memory conflict store.
type fakeConflictRepo struct {
	records map[uuid.UUID]*domainsync.Conflict
}

func newFakeConflictRepo() *fakeConflictRepo {
	return &fakeConflictRepo{records: make(map[uuid.UUID]*domainsync.Conflict)}
}

func (r *fakeConflictRepo) Save(ctx context.Context, conflicts ...*domainsync.Conflict) error {
	for _, c := range conflicts {
		r.records[c.ID] = c
	}
	return nil
}

func (r *fakeConflictRepo) FindPending(ctx context.Context, limit int) ([]*domainsync.Conflict, error) {
	var pending []*domainsync.Conflict
	for _, c := range r.records {
		if c.Status == domainsync.ConflictStatusPending {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].DetectedAt.Before(pending[j].DetectedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *fakeConflictRepo) FindByID(ctx context.Context, id uuid.UUID) (*domainsync.Conflict, error) {
	c, ok := r.records[id]
	if !ok {
		return nil, domainsync.ErrConflictNotFound
	}
	return c, nil
}

func (r *fakeConflictRepo) Update(ctx context.Context, conflict *domainsync.Conflict) error {
	if _, ok := r.records[conflict.ID]; !ok {
		return domainsync.ErrConflictNotFound
	}
	r.records[conflict.ID] = conflict
	return nil
}

func (r *fakeConflictRepo) pendingCount() int {
	n := 0
	for _, c := range r.records {
		if c.Status == domainsync.ConflictStatusPending {
			n++
		}
	}
	return n
}

func testDetector(local *fakeLocal, repo *fakeConflictRepo) *ConflictDetector {
	return NewConflictDetector(local, mapping.NewEngine("Sandbox"), repo, zap.NewNop())
}

// syncedDeal seeds a deal that last synced at the given time.
func syncedDeal(local *fakeLocal, lastSync time.Time, updatedAt time.Time, extra map[string]string) *domainsync.Deal {
	props := map[string]string{
		"dealname":    "Acme Migration #AWS",
		"dealstage":   "qualifiedtobuy",
		"amount":      "50000",
		"description": "Lift and shift",
	}
	props[domainsync.PropRemoteOpportunityID] = "O0000001"
	props[domainsync.PropRemoteOpportunityTitle] = "Acme Migration #AWS"
	props[domainsync.PropLastSyncedAt] = lastSync.Format(time.RFC3339)
	for k, v := range extra {
		props[k] = v
	}
	deal := &domainsync.Deal{ID: "12345", Properties: props, UpdatedAt: updatedAt}
	local.deals["12345"] = deal
	return deal
}

// remoteOpp builds a remote opportunity aligned with syncedDeal's baseline.
func remoteOpp(stage, amount, problem string) *domainsync.Opportunity {
	return &domainsync.Opportunity{
		ID:  "O0000001",
		Arn: "arn:opportunity/O0000001",
		LifeCycle: domainsync.LifeCycle{
			Stage:        stage,
			ReviewStatus: "Approved",
		},
		Project: domainsync.Project{
			Title:                   "Acme Migration #AWS",
			CustomerBusinessProblem: problem,
			ExpectedCustomerSpend: []domainsync.ExpectedSpend{
				{Amount: amount, CurrencyCode: "USD", Frequency: "Monthly", TargetCompany: "AWS"},
			},
		},
	}
}

func TestConflictDetector_Apply(t *testing.T) {
	ctx := context.Background()
	lastSync := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	before := lastSync.Add(-time.Hour)
	after := lastSync.Add(time.Hour)

	t.Run("applies a remote-only change", func(t *testing.T) {
		local := newFakeLocal()
		repo := newFakeConflictRepo()
		d := testDetector(local, repo)
		deal := syncedDeal(local, lastSync, before, nil)

		outcome, err := d.Apply(ctx, deal, remoteOpp("Qualified", "50000", "Replatform to containers"), after)
		require.NoError(t, err)
		assert.Contains(t, outcome.Applied, "description")
		assert.Empty(t, outcome.Manual)
		assert.Equal(t, "Replatform to containers", deal.Prop("description"))
		assert.Zero(t, repo.pendingCount())
	})

	t.Run("keeps a local-only change", func(t *testing.T) {
		local := newFakeLocal()
		repo := newFakeConflictRepo()
		d := testDetector(local, repo)
		deal := syncedDeal(local, lastSync, after, map[string]string{"description": "Edited locally"})

		outcome, err := d.Apply(ctx, deal, remoteOpp("Qualified", "50000", "Lift and shift"), before)
		require.NoError(t, err)
		assert.NotContains(t, outcome.Applied, "description")
		assert.Equal(t, "Edited locally", deal.Prop("description"))
	})

	t.Run("queues contested manual-policy fields for an operator", func(t *testing.T) {
		local := newFakeLocal()
		repo := newFakeConflictRepo()
		d := testDetector(local, repo)
		deal := syncedDeal(local, lastSync, after, map[string]string{"amount": "60000"})

		outcome, err := d.Apply(ctx, deal, remoteOpp("Qualified", "75000", "Lift and shift"), after)
		require.NoError(t, err)
		assert.Equal(t, []string{"amount"}, outcome.Manual)
		assert.NotEmpty(t, outcome.Warnings)

		// The contested field is untouched until an operator decides.
		assert.Equal(t, "60000", deal.Prop("amount"))
		require.Equal(t, 1, repo.pendingCount())
		pending, err := repo.FindPending(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, "amount", pending[0].Field)
		assert.Equal(t, "60000", pending[0].LocalValue)
		assert.Equal(t, "75000", pending[0].RemoteValue)
	})

	t.Run("local wins a contested stage", func(t *testing.T) {
		local := newFakeLocal()
		repo := newFakeConflictRepo()
		d := testDetector(local, repo)
		deal := syncedDeal(local, lastSync, after, map[string]string{"dealstage": "contractsent"})

		outcome, err := d.Apply(ctx, deal, remoteOpp("Launched", "50000", "Lift and shift"), after)
		require.NoError(t, err)
		assert.Contains(t, outcome.AutoResolved, "dealstage")
		assert.NotContains(t, outcome.Applied, "dealstage")
		assert.Equal(t, "contractsent", deal.Prop("dealstage"))
		assert.Zero(t, repo.pendingCount())
	})

	t.Run("last write wins a contested description", func(t *testing.T) {
		local := newFakeLocal()
		repo := newFakeConflictRepo()
		d := testDetector(local, repo)
		deal := syncedDeal(local, lastSync, after, map[string]string{"description": "Edited locally"})

		outcome, err := d.Apply(ctx, deal, remoteOpp("Qualified", "50000", "Edited remotely"), after.Add(time.Minute))
		require.NoError(t, err)
		assert.Contains(t, outcome.AutoResolved, "description")
		assert.Contains(t, outcome.Applied, "description")
		assert.Equal(t, "Edited remotely", deal.Prop("description"))
	})

	t.Run("always applies remote-authoritative properties", func(t *testing.T) {
		local := newFakeLocal()
		repo := newFakeConflictRepo()
		d := testDetector(local, repo)
		deal := syncedDeal(local, lastSync, after, map[string]string{
			domainsync.PropReviewStatus: "Submitted",
		})

		_, err := d.Apply(ctx, deal, remoteOpp("Qualified", "50000", "Lift and shift"), after)
		require.NoError(t, err)
		assert.Equal(t, "Approved", deal.Prop(domainsync.PropReviewStatus))
		assert.Equal(t, "arn:opportunity/O0000001", deal.Prop(domainsync.PropRemoteOpportunityArn))
		assert.NotEqual(t, lastSync.Format(time.RFC3339), deal.Prop(domainsync.PropLastSyncedAt))
	})
}

func TestConflictService_Resolve(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fakeLocal, *fakeRemote, *fakeConflictRepo, *ConflictService, *domainsync.Conflict) {
		local := newFakeLocal()
		remote := newFakeRemote()
		repo := newFakeConflictRepo()
		orchestrator := testOrchestrator(local, remote)
		service := NewConflictService(repo, local, orchestrator, zap.NewNop())

		seedDeal(local, "12345", "Acme Migration #AWS", map[string]string{
			domainsync.PropRemoteOpportunityID: "O0000001",
			"amount":                           "60000",
		})
		remote.opportunities["O0000001"] = &domainsync.Opportunity{
			ID:        "O0000001",
			LifeCycle: domainsync.LifeCycle{Stage: "Qualified", ReviewStatus: "Approved"},
			Project:   domainsync.Project{Title: "Acme Migration #AWS"},
		}

		conflict := &domainsync.Conflict{
			ID:          uuid.New(),
			ObjectID:    "12345",
			Field:       "amount",
			LocalValue:  "60000",
			RemoteValue: "75000",
			DetectedAt:  time.Now().UTC(),
			Status:      domainsync.ConflictStatusPending,
		}
		require.NoError(t, repo.Save(ctx, conflict))
		return local, remote, repo, service, conflict
	}

	t.Run("remote winner overwrites the local field", func(t *testing.T) {
		local, _, repo, service, conflict := setup(t)

		resolved, err := service.Resolve(ctx, conflict.ID, domainsync.WinnerRemote, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, domainsync.ConflictStatusResolved, resolved.Status)
		assert.Equal(t, "75000", local.deals["12345"].Prop("amount"))
		assert.Zero(t, repo.pendingCount())
	})

	t.Run("local winner force-pushes the deal", func(t *testing.T) {
		_, remote, _, service, conflict := setup(t)

		_, err := service.Resolve(ctx, conflict.ID, domainsync.WinnerLocal, "ops@example.com")
		require.NoError(t, err)
		require.Len(t, remote.updated, 1)
		assert.Equal(t, "O0000001", remote.updated[0].Identifier)
	})

	t.Run("rejects a second resolution", func(t *testing.T) {
		_, _, _, service, conflict := setup(t)

		_, err := service.Resolve(ctx, conflict.ID, domainsync.WinnerRemote, "ops@example.com")
		require.NoError(t, err)

		_, err = service.Resolve(ctx, conflict.ID, domainsync.WinnerLocal, "ops@example.com")
		assert.ErrorContains(t, err, "already resolved")
	})

	t.Run("rejects an unknown winner", func(t *testing.T) {
		_, _, _, service, conflict := setup(t)

		_, err := service.Resolve(ctx, conflict.ID, domainsync.Winner("SPLIT"), "ops@example.com")
		assert.ErrorContains(t, err, "invalid winner")
	})
}
