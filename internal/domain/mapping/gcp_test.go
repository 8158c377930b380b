package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealbridge/backend/internal/domain/sync"
)

func TestDealToGCPLead(t *testing.T) {
	e := testEngine()

	t.Run("maps deal and company to a lead", func(t *testing.T) {
		lead := e.DealToGCPLead(fullDeal(), fullCompany(), []sync.Contact{
			{Properties: map[string]string{
				"firstname": "Jane", "email": "jane@acme.example",
			}},
		})

		assert.Equal(t, "Acme Corp", lead.CompanyName)
		assert.Equal(t, "https://acme.example", lead.CompanyWebsite)
		assert.Equal(t, "hubspot-deal-12345", lead.ExternalSystemID)
		require.NotNil(t, lead.Contact)
		assert.Equal(t, "jane@acme.example", lead.Contact.Email)
	})

	t.Run("omits an empty contact", func(t *testing.T) {
		lead := e.DealToGCPLead(fullDeal(), fullCompany(), []sync.Contact{{Properties: map[string]string{}}})
		assert.Nil(t, lead.Contact)
	})
}

func TestDealToGCPOpportunity(t *testing.T) {
	e := testEngine()

	t.Run("maps deal to opportunity", func(t *testing.T) {
		opp := e.DealToGCPOpportunity(fullDeal(), "partners/1/leads/9")

		assert.Equal(t, "partners/1/leads/9", opp.Lead)
		assert.Equal(t, "QUALIFIED", opp.SalesStage)
		assert.Equal(t, "QUALIFIED", opp.QualificationState)
		assert.Equal(t, "GOOGLE_CLOUD_PLATFORM", opp.ProductFamily)
		assert.Equal(t, float64(50000), opp.DealSize)
		assert.Equal(t, GCPDate{Year: 2026, Month: 6, Day: 30}, opp.CloseDate)
	})

	t.Run("disqualifies closed lost deals", func(t *testing.T) {
		deal := fullDeal()
		deal.Properties["dealstage"] = "closedlost"
		opp := e.DealToGCPOpportunity(deal, "partners/1/leads/9")
		assert.Equal(t, "CLOSED_LOST", opp.SalesStage)
		assert.Equal(t, "DISQUALIFIED", opp.QualificationState)
	})

	t.Run("maps product family from deal type", func(t *testing.T) {
		deal := fullDeal()
		deal.Properties["dealtype"] = "Workspace Migration"
		opp := e.DealToGCPOpportunity(deal, "partners/1/leads/9")
		assert.Equal(t, "GOOGLE_WORKSPACE", opp.ProductFamily)
	})
}

func TestDealToGCPOpportunityUpdate(t *testing.T) {
	e := testEngine()

	t.Run("builds a patch for changed fields", func(t *testing.T) {
		update, warnings := e.DealToGCPOpportunityUpdate(fullDeal(), map[string]struct{}{
			"dealstage": {}, "amount": {},
		})

		assert.Empty(t, warnings)
		require.NotNil(t, update)
		assert.Equal(t, "QUALIFIED", update.SalesStage)
		require.NotNil(t, update.DealSize)
		assert.Equal(t, float64(50000), *update.DealSize)
		assert.Nil(t, update.CloseDate)
		assert.Empty(t, update.Notes)
	})

	t.Run("returns nil when nothing mapped", func(t *testing.T) {
		deal := &sync.Deal{ID: "1", Properties: map[string]string{}}
		update, _ := e.DealToGCPOpportunityUpdate(deal, map[string]struct{}{"amount": {}})
		assert.Nil(t, update)
	})
}

func TestGCPOpportunityToDealProperties(t *testing.T) {
	e := testEngine()

	opp := &GCPOpportunity{
		Name:          "partners/1/opportunities/777",
		SalesStage:    "NEGOTIATING",
		ProductFamily: "GOOGLE_CLOUD_PLATFORM",
		DealSize:      120000,
		CloseDate:     GCPDate{Year: 2026, Month: 11, Day: 15},
		Notes:         "Multi-year commitment under discussion",
	}
	lead := &GCPLead{CompanyName: "Globex"}

	props := e.GCPOpportunityToDealProperties(opp, lead)

	assert.Equal(t, "Globex #GCP", props["dealname"])
	assert.Equal(t, "contractsent", props["dealstage"])
	assert.Equal(t, "777", props["gcp_opportunity_id"])
	assert.Equal(t, "partners/1/opportunities/777", props["gcp_opportunity_name"])
	assert.Equal(t, "120000", props["amount"])
	assert.Equal(t, "2026-11-15T00:00:00Z", props["closedate"])
	assert.Equal(t, "Globex", props["company"])
	assert.Equal(t, sync.SyncStatusSynced, props["gcp_sync_status"])
}
