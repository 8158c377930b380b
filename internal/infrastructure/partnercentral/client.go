package partnercentral

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/dealbridge/backend/internal/domain/sync"
)

// maxResponseSize is the maximum allowed response size from the API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// signingName is the sigv4 service name for Partner Central Selling.
const signingName = "partnercentral-selling"

// targetPrefix is the JSON-RPC target prefix for all operations.
const targetPrefix = "AWSPartnerCentralSelling."

// listPageSize bounds one ListOpportunities page.
const listPageSize = 20

// Client is the AWS Partner Central opportunity adapter. Requests are
// sigv4-signed JSON-RPC calls; payload shapes mirror the domain wire types.
type Client struct {
	config      *Config
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	httpClient  *http.Client
}

// NewClient creates a Partner Central client. Static credentials from the
// configuration win over the default AWS credential chain.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var provider aws.CredentialsProvider
	if cfg.AccessKeyID != "" {
		provider = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("partnercentral: failed to load AWS config: %w", err)
		}
		provider = awsCfg.Credentials
	}

	return &Client{
		config:      cfg,
		credentials: provider,
		signer:      v4.NewSigner(),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// CreateOpportunity creates a remote opportunity. The deterministic client
// token in the input makes retried calls safe.
func (c *Client) CreateOpportunity(ctx context.Context, input *sync.CreateOpportunityInput) (*sync.Opportunity, error) {
	var out struct {
		ID                           string `json:"Id"`
		PartnerOpportunityIdentifier string `json:"PartnerOpportunityIdentifier"`
	}
	if err := c.invoke(ctx, "CreateOpportunity", input, &out); err != nil {
		return nil, err
	}

	// The create response carries only identifiers; fetch the full record.
	return c.GetOpportunity(ctx, out.ID)
}

// GetOpportunity retrieves a remote opportunity by identifier.
func (c *Client) GetOpportunity(ctx context.Context, remoteID string) (*sync.Opportunity, error) {
	req := map[string]string{
		"Catalog":    c.config.Catalog,
		"Identifier": remoteID,
	}

	var opp sync.Opportunity
	if err := c.invoke(ctx, "GetOpportunity", req, &opp); err != nil {
		return nil, err
	}
	if opp.ID == "" {
		opp.ID = remoteID
	}
	return &opp, nil
}

// UpdateOpportunity overwrites a remote opportunity. The update payload type
// cannot carry the immutable title field.
func (c *Client) UpdateOpportunity(ctx context.Context, input *sync.UpdateOpportunityInput) error {
	// The remote API requires the record's last-modified timestamp as an
	// optimistic concurrency token.
	payload := struct {
		*sync.UpdateOpportunityInput
		LastModifiedDate string `json:"LastModifiedDate"`
	}{
		UpdateOpportunityInput: input,
		LastModifiedDate:       time.Now().UTC().Format(time.RFC3339),
	}

	if current, err := c.getLastModified(ctx, input.Identifier); err == nil && current != "" {
		payload.LastModifiedDate = current
	}

	var out struct {
		ID string `json:"Id"`
	}
	return c.invoke(ctx, "UpdateOpportunity", payload, &out)
}

// ListRecentlyUpdated pages through opportunities modified after the given
// time. Summaries carry enough of the lifecycle and project state for the
// reconciliation pass; full records are fetched individually when needed.
func (c *Client) ListRecentlyUpdated(ctx context.Context, since time.Time) ([]*sync.Opportunity, error) {
	type lastModifiedFilter struct {
		AfterLastModifiedDate string `json:"AfterLastModifiedDate"`
	}
	type listRequest struct {
		Catalog          string              `json:"Catalog"`
		LastModifiedDate *lastModifiedFilter `json:"LastModifiedDate,omitempty"`
		MaxResults       int                 `json:"MaxResults"`
		NextToken        string              `json:"NextToken,omitempty"`
	}
	type listResponse struct {
		OpportunitySummaries []json.RawMessage `json:"OpportunitySummaries"`
		NextToken            string            `json:"NextToken"`
	}

	req := listRequest{
		Catalog:    c.config.Catalog,
		MaxResults: listPageSize,
	}
	if !since.IsZero() {
		req.LastModifiedDate = &lastModifiedFilter{
			AfterLastModifiedDate: since.UTC().Format(time.RFC3339),
		}
	}

	var opportunities []*sync.Opportunity
	for {
		var resp listResponse
		if err := c.invoke(ctx, "ListOpportunities", req, &resp); err != nil {
			return nil, err
		}

		for _, raw := range resp.OpportunitySummaries {
			var opp sync.Opportunity
			if err := json.Unmarshal(raw, &opp); err != nil {
				return nil, fmt.Errorf("partnercentral: failed to parse opportunity summary: %w", err)
			}
			opportunities = append(opportunities, &opp)
		}

		if resp.NextToken == "" {
			break
		}
		req.NextToken = resp.NextToken
	}
	return opportunities, nil
}

// getLastModified fetches the record's current last-modified timestamp.
func (c *Client) getLastModified(ctx context.Context, remoteID string) (string, error) {
	req := map[string]string{
		"Catalog":    c.config.Catalog,
		"Identifier": remoteID,
	}

	var out struct {
		LastModifiedDate string `json:"LastModifiedDate"`
	}
	if err := c.invoke(ctx, "GetOpportunity", req, &out); err != nil {
		return "", err
	}
	return out.LastModifiedDate, nil
}

// invoke performs one signed JSON-RPC call.
func (c *Client) invoke(ctx context.Context, operation string, input, output any) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("partnercentral: failed to encode %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("partnercentral: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.0")
	req.Header.Set("X-Amz-Target", targetPrefix+operation)

	creds, err := c.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("partnercentral: failed to resolve credentials: %w", err)
	}

	hash := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(hash[:])
	if err := c.signer.SignHTTP(ctx, creds, req, payloadHash, signingName, c.config.Region, time.Now()); err != nil {
		return fmt.Errorf("partnercentral: failed to sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("partnercentral: %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("partnercentral: failed to read %s response: %w", operation, err)
	}

	if resp.StatusCode >= 400 {
		return c.apiError(operation, resp.StatusCode, respBody)
	}

	if output != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, output); err != nil {
			return fmt.Errorf("partnercentral: failed to parse %s response: %w", operation, err)
		}
	}
	return nil
}

// apiError translates the AWS JSON error envelope into domain errors.
func (c *Client) apiError(operation string, statusCode int, body []byte) error {
	var envelope struct {
		Type    string `json:"__type"`
		Message string `json:"Message"`
	}
	_ = json.Unmarshal(body, &envelope)

	errType := envelope.Type
	if idx := strings.LastIndex(errType, "#"); idx >= 0 {
		errType = errType[idx+1:]
	}

	if errType == "ResourceNotFoundException" || statusCode == http.StatusNotFound {
		return sync.ErrOpportunityNotFound
	}
	if envelope.Message != "" {
		return fmt.Errorf("partnercentral: %s failed: %s: %s", operation, errType, envelope.Message)
	}
	return fmt.Errorf("partnercentral: %s failed: HTTP %d", operation, statusCode)
}

// Ensure Client implements the remote boundary
var _ sync.RemoteClient = (*Client)(nil)
