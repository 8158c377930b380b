package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealbridge/backend/internal/domain/sync"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		BaseURL:     server.URL,
		AccessToken: "test-token",
	})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("rejects missing access token", func(t *testing.T) {
		_, err := NewClient(&Config{})
		assert.ErrorIs(t, err, ErrConfigMissingAccessToken)
	})

	t.Run("fills in defaults", func(t *testing.T) {
		cfg := &Config{AccessToken: "tok"}
		_, err := NewClient(cfg)
		require.NoError(t, err)
		assert.Equal(t, ProductionBaseURL, cfg.BaseURL)
		assert.Equal(t, 30, cfg.TimeoutSeconds)
	})
}

func TestClient_GetDeal(t *testing.T) {
	t.Run("returns the deal with properties", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "/crm/v3/objects/deals/12345", r.URL.Path)
			assert.Contains(t, r.URL.Query().Get("properties"), "dealname")

			json.NewEncoder(w).Encode(objectResponse{
				ID: "12345",
				Properties: map[string]string{
					"dealname":  "Acme Migration",
					"dealstage": "qualifiedtobuy",
				},
				UpdatedAt: "2026-03-10T12:00:00Z",
			})
		}))

		deal, err := client.GetDeal(context.Background(), "12345")
		require.NoError(t, err)
		assert.Equal(t, "12345", deal.ID)
		assert.Equal(t, "Acme Migration", deal.Prop("dealname"))
		assert.Equal(t, 2026, deal.UpdatedAt.Year())
	})

	t.Run("maps 404 to the domain sentinel", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.GetDeal(context.Background(), "missing")
		assert.ErrorIs(t, err, sync.ErrDealNotFound)
	})

	t.Run("surfaces the API error message", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(errorResponse{
				Message:  "rate limit exceeded",
				Category: "RATE_LIMITS",
			})
		}))

		_, err := client.GetDeal(context.Background(), "12345")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limit exceeded")
	})
}

func TestClient_GetDealWithAssociations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/crm/v3/objects/deals/12345", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(objectResponse{
			ID:         "12345",
			Properties: map[string]string{"dealname": "Acme Migration"},
		})
	})
	mux.HandleFunc("/crm/v4/objects/deals/12345/associations/companies", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(associationsResponse{Results: []associationEdge{{ToObjectID: 777}}})
	})
	mux.HandleFunc("/crm/v4/objects/deals/12345/associations/contacts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(associationsResponse{Results: []associationEdge{{ToObjectID: 801}, {ToObjectID: 802}}})
	})
	mux.HandleFunc("/crm/v3/objects/companies/batch/read", func(w http.ResponseWriter, r *http.Request) {
		var req batchReadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Inputs, 1)
		assert.Equal(t, "777", req.Inputs[0].ID)

		json.NewEncoder(w).Encode(batchReadResponse{Results: []objectResponse{
			{ID: "777", Properties: map[string]string{"name": "Acme Corp"}},
		}})
	})
	mux.HandleFunc("/crm/v3/objects/contacts/batch/read", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(batchReadResponse{Results: []objectResponse{
			{ID: "801", Properties: map[string]string{"email": "a@acme.test"}},
			{ID: "802", Properties: map[string]string{"email": "b@acme.test"}},
		}})
	})

	client := newTestClient(t, mux)

	deal, company, contacts, err := client.GetDealWithAssociations(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", deal.ID)
	require.NotNil(t, company)
	assert.Equal(t, "Acme Corp", company.Prop("name"))
	require.Len(t, contacts, 2)
	assert.Equal(t, "a@acme.test", contacts[0].Prop("email"))
}

func TestClient_UpdateDeal(t *testing.T) {
	var captured updateRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/crm/v3/objects/deals/12345", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(objectResponse{ID: "12345"})
	}))

	err := client.UpdateDeal(context.Background(), "12345", map[string]string{
		"aws_opportunity_id": "O1234567",
		"aws_sync_status":    "synced",
	})
	require.NoError(t, err)
	assert.Equal(t, "O1234567", captured.Properties["aws_opportunity_id"])
}

func TestClient_CreateNote(t *testing.T) {
	var captured createNoteRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/notes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(objectResponse{ID: "note-1"})
	}))

	err := client.CreateNote(context.Background(), &sync.Note{
		DealID: "12345",
		Body:   "Update rejected while opportunity is in review.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Update rejected while opportunity is in review.", captured.Properties["hs_note_body"])
	require.Len(t, captured.Associations, 1)
	assert.Equal(t, "12345", captured.Associations[0].To.ID)
	assert.Equal(t, noteToDealAssociationTypeID, captured.Associations[0].Types[0].AssociationTypeID)
}

func TestClient_SearchDealsByProperty(t *testing.T) {
	var captured searchRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/deals/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(searchResponse{
			Total: 1,
			Results: []objectResponse{
				{ID: "12345", Properties: map[string]string{"aws_opportunity_id": "O1234567"}},
			},
		})
	}))

	deals, err := client.SearchDealsByProperty(context.Background(), "aws_opportunity_id", "O1234567")
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "12345", deals[0].ID)

	require.Len(t, captured.FilterGroups, 1)
	f := captured.FilterGroups[0].Filters[0]
	assert.Equal(t, "aws_opportunity_id", f.PropertyName)
	assert.Equal(t, "EQ", f.Operator)
	assert.Equal(t, "O1234567", f.Value)
}
