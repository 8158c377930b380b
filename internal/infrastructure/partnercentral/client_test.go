package partnercentral

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealbridge/backend/internal/domain/sync"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), &Config{
		Region:          "us-east-1",
		Catalog:         CatalogSandbox,
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		Endpoint:        server.URL,
	})
	require.NoError(t, err)
	return client
}

func TestConfig_Validate(t *testing.T) {
	t.Run("rejects missing region", func(t *testing.T) {
		err := (&Config{}).Validate()
		assert.ErrorIs(t, err, ErrConfigMissingRegion)
	})

	t.Run("rejects unknown catalog", func(t *testing.T) {
		err := (&Config{Region: "us-east-1", Catalog: "Staging"}).Validate()
		assert.ErrorIs(t, err, ErrConfigInvalidCatalog)
	})

	t.Run("derives the regional endpoint", func(t *testing.T) {
		cfg := &Config{Region: "eu-west-1"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "https://partnercentral-selling.eu-west-1.api.aws", cfg.Endpoint)
		assert.Equal(t, CatalogAWS, cfg.Catalog)
	})
}

func TestClient_CreateOpportunity(t *testing.T) {
	var targets []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := r.Header.Get("X-Amz-Target")
		targets = append(targets, target)
		assert.Contains(t, r.Header.Get("Authorization"), "AWS4-HMAC-SHA256")
		assert.Equal(t, "application/x-amz-json-1.0", r.Header.Get("Content-Type"))

		switch target {
		case "AWSPartnerCentralSelling.CreateOpportunity":
			var req sync.CreateOpportunityInput
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hs-deal-12345", req.ClientToken)
			json.NewEncoder(w).Encode(map[string]string{"Id": "O1234567"})
		case "AWSPartnerCentralSelling.GetOpportunity":
			json.NewEncoder(w).Encode(sync.Opportunity{
				ID:  "O1234567",
				Arn: "arn:aws:partnercentral-selling::111:opportunity/O1234567",
				LifeCycle: sync.LifeCycle{
					Stage:        "Qualified",
					ReviewStatus: "Pending Submission",
				},
			})
		default:
			t.Fatalf("unexpected target %s", target)
		}
	}))

	opp, err := client.CreateOpportunity(context.Background(), &sync.CreateOpportunityInput{
		Catalog:     CatalogSandbox,
		ClientToken: "hs-deal-12345",
	})
	require.NoError(t, err)
	assert.Equal(t, "O1234567", opp.ID)
	assert.Equal(t, "Qualified", opp.LifeCycle.Stage)
	assert.Equal(t, []string{
		"AWSPartnerCentralSelling.CreateOpportunity",
		"AWSPartnerCentralSelling.GetOpportunity",
	}, targets)
}

func TestClient_GetOpportunity(t *testing.T) {
	t.Run("maps not-found to the domain sentinel", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"__type":  "com.amazonaws.partnercentralselling#ResourceNotFoundException",
				"Message": "Opportunity not found",
			})
		}))

		_, err := client.GetOpportunity(context.Background(), "O0000000")
		assert.ErrorIs(t, err, sync.ErrOpportunityNotFound)
	})

	t.Run("surfaces other API errors", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{
				"__type":  "ConflictException",
				"Message": "opportunity is locked",
			})
		}))

		_, err := client.GetOpportunity(context.Background(), "O1234567")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opportunity is locked")
	})
}

func TestClient_UpdateOpportunity(t *testing.T) {
	var updatePayload map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Amz-Target") {
		case "AWSPartnerCentralSelling.GetOpportunity":
			json.NewEncoder(w).Encode(map[string]string{
				"Id":               "O1234567",
				"LastModifiedDate": "2026-03-01T00:00:00Z",
			})
		case "AWSPartnerCentralSelling.UpdateOpportunity":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updatePayload))
			json.NewEncoder(w).Encode(map[string]string{"Id": "O1234567"})
		}
	}))

	err := client.UpdateOpportunity(context.Background(), &sync.UpdateOpportunityInput{
		Catalog:    CatalogSandbox,
		Identifier: "O1234567",
		LifeCycle:  sync.LifeCycle{Stage: "Committed"},
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-03-01T00:00:00Z", updatePayload["LastModifiedDate"])
	assert.Equal(t, "O1234567", updatePayload["Identifier"])
	// The update wire type has no title field at all.
	project, ok := updatePayload["Project"].(map[string]any)
	require.True(t, ok)
	_, hasTitle := project["Title"]
	assert.False(t, hasTitle)
}

func TestClient_ListRecentlyUpdated(t *testing.T) {
	var requests []map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		if len(requests) == 1 {
			json.NewEncoder(w).Encode(map[string]any{
				"OpportunitySummaries": []map[string]any{
					{"Id": "O1", "LifeCycle": map[string]string{"Stage": "Qualified"}},
				},
				"NextToken": "page-2",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"OpportunitySummaries": []map[string]any{
				{"Id": "O2", "LifeCycle": map[string]string{"Stage": "Launched"}},
			},
		})
	}))

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	opps, err := client.ListRecentlyUpdated(context.Background(), since)
	require.NoError(t, err)

	require.Len(t, opps, 2)
	assert.Equal(t, "O1", opps[0].ID)
	assert.Equal(t, "Launched", opps[1].LifeCycle.Stage)

	require.Len(t, requests, 2)
	filter, ok := requests[0]["LastModifiedDate"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-03-01T00:00:00Z", filter["AfterLastModifiedDate"])
	assert.Equal(t, "page-2", requests[1]["NextToken"])
}
