package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dealbridge/backend/internal/domain/sync"
)

// maxResponseSize is the maximum allowed response size from the CRM API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// noteToDealAssociationTypeID is HubSpot's built-in note-to-deal association.
const noteToDealAssociationTypeID = 214

// dealProperties is the property set requested on every deal read. It covers
// everything the mapping layer translates plus the cross-reference properties
// written back after a successful sync.
var dealProperties = []string{
	"dealname", "dealstage", "amount", "closedate", "description",
	"hs_deal_description", "hs_next_step", "notes_next_activity_description",
	"pipeline", "dealtype", "deal_currency_code",
	"aws_opportunity_id", "aws_opportunity_arn", "aws_opportunity_title",
	"aws_review_status", "aws_sync_status", "aws_last_sync",
	"aws_industry", "aws_use_case", "aws_delivery_models",
	"aws_primary_needs", "aws_expected_spend", "aws_invitation_id",
	"microsoft_referral_id", "microsoft_status", "microsoft_substatus",
	"microsoft_sync_status",
	"gcp_opportunity_id", "gcp_opportunity_name", "gcp_sync_status",
	"gcp_product_family", "gcp_expected_spend", "gcp_term_months",
	"gcp_is_confidential",
}

// companyProperties is the property set requested on company reads.
var companyProperties = []string{
	"name", "domain", "industry", "website", "phone",
	"address", "city", "state", "zip", "country", "numberofemployees",
}

// contactProperties is the property set requested on contact reads.
var contactProperties = []string{
	"email", "firstname", "lastname", "phone", "mobilephone", "jobtitle",
}

// Client is the HubSpot CRM adapter.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a HubSpot client with the given configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// GetDeal retrieves a deal with the full mapped property set.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*sync.Deal, error) {
	path := fmt.Sprintf("/crm/v3/objects/deals/%s?properties=%s", dealID, joinProperties(dealProperties))

	var resp objectResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return dealFromResponse(&resp), nil
}

// GetDealWithAssociations retrieves a deal together with its primary company
// and associated contacts.
func (c *Client) GetDealWithAssociations(ctx context.Context, dealID string) (*sync.Deal, *sync.Company, []sync.Contact, error) {
	deal, err := c.GetDeal(ctx, dealID)
	if err != nil {
		return nil, nil, nil, err
	}

	companyIDs, err := c.listAssociations(ctx, "deals", dealID, "companies")
	if err != nil {
		return nil, nil, nil, err
	}
	contactIDs, err := c.listAssociations(ctx, "deals", dealID, "contacts")
	if err != nil {
		return nil, nil, nil, err
	}

	var company *sync.Company
	if len(companyIDs) > 0 {
		// The first associated company is treated as primary.
		companies, err := c.batchRead(ctx, "companies", companyIDs[:1], companyProperties)
		if err != nil {
			return nil, nil, nil, err
		}
		if len(companies) > 0 {
			company = &sync.Company{ID: companies[0].ID, Properties: companies[0].Properties}
		}
	}

	var contacts []sync.Contact
	if len(contactIDs) > 0 {
		results, err := c.batchRead(ctx, "contacts", contactIDs, contactProperties)
		if err != nil {
			return nil, nil, nil, err
		}
		contacts = make([]sync.Contact, 0, len(results))
		for _, r := range results {
			contacts = append(contacts, sync.Contact{ID: r.ID, Properties: r.Properties})
		}
	}

	return deal, company, contacts, nil
}

// UpdateDeal patches deal properties.
func (c *Client) UpdateDeal(ctx context.Context, dealID string, properties map[string]string) error {
	path := fmt.Sprintf("/crm/v3/objects/deals/%s", dealID)
	return c.doJSON(ctx, http.MethodPatch, path, &updateRequest{Properties: properties}, nil)
}

// CreateNote attaches a note to a deal.
func (c *Client) CreateNote(ctx context.Context, note *sync.Note) error {
	body := &createNoteRequest{
		Properties: map[string]string{
			"hs_note_body": note.Body,
			"hs_timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
		},
		Associations: []noteAssociation{{
			To: associationTarget{ID: note.DealID},
			Types: []associationType{{
				AssociationCategory: "HUBSPOT_DEFINED",
				AssociationTypeID:   noteToDealAssociationTypeID,
			}},
		}},
	}
	return c.doJSON(ctx, http.MethodPost, "/crm/v3/objects/notes", body, nil)
}

// SearchDealsByProperty finds deals where a property equals a value. Used to
// resolve the local deal for an inbound remote change by cross-reference ID.
func (c *Client) SearchDealsByProperty(ctx context.Context, property, value string) ([]*sync.Deal, error) {
	body := &searchRequest{
		FilterGroups: []filterGroup{{
			Filters: []filter{{PropertyName: property, Operator: "EQ", Value: value}},
		}},
		Properties: dealProperties,
		Limit:      100,
	}

	var resp searchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/crm/v3/objects/deals/search", body, &resp); err != nil {
		return nil, err
	}

	deals := make([]*sync.Deal, 0, len(resp.Results))
	for i := range resp.Results {
		deals = append(deals, dealFromResponse(&resp.Results[i]))
	}
	return deals, nil
}

// listAssociations lists associated object IDs via the v4 association API.
func (c *Client) listAssociations(ctx context.Context, fromType, fromID, toType string) ([]string, error) {
	path := fmt.Sprintf("/crm/v4/objects/%s/%s/associations/%s", fromType, fromID, toType)

	var resp associationsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Results))
	for _, edge := range resp.Results {
		ids = append(ids, strconv.FormatInt(edge.ToObjectID, 10))
	}
	return ids, nil
}

// batchRead reads multiple objects of one type in a single call.
func (c *Client) batchRead(ctx context.Context, objectType string, ids, properties []string) ([]objectResponse, error) {
	body := &batchReadRequest{Properties: properties}
	for _, id := range ids {
		body.Inputs = append(body.Inputs, batchItem{ID: id})
	}

	var resp batchReadResponse
	path := fmt.Sprintf("/crm/v3/objects/%s/batch/read", objectType)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// doJSON performs one API call, encoding the request body and decoding the
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("hubspot: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("hubspot: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("hubspot: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return sync.ErrDealNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("hubspot: HTTP %d: %s (%s)", resp.StatusCode, apiErr.Message, apiErr.Category)
		}
		return fmt.Errorf("hubspot: HTTP %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("hubspot: failed to parse response: %w", err)
		}
	}
	return nil
}

func dealFromResponse(resp *objectResponse) *sync.Deal {
	deal := &sync.Deal{ID: resp.ID, Properties: resp.Properties}
	if resp.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.UpdatedAt); err == nil {
			deal.UpdatedAt = t
		}
	}
	return deal
}

func joinProperties(props []string) string {
	return strings.Join(props, ",")
}

// Ensure Client implements the CRM boundary
var _ sync.LocalClient = (*Client)(nil)
