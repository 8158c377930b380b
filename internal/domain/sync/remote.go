package sync

import (
	"context"
	"time"
)

// Remote-opportunity wire types. Provider payloads are explicit structs with
// optional fields rather than loosely-typed maps; Extra is the only
// passthrough for genuinely provider-opaque fields.

// Address is the customer's postal address on the remote opportunity.
type Address struct {
	CountryCode   string `json:"CountryCode,omitempty"`
	City          string `json:"City,omitempty"`
	StateOrRegion string `json:"StateOrRegion,omitempty"`
	PostalCode    string `json:"PostalCode,omitempty"`
	StreetAddress string `json:"StreetAddress,omitempty"`
}

// Account describes the end customer's company.
type Account struct {
	CompanyName string  `json:"CompanyName"`
	Industry    string  `json:"Industry,omitempty"`
	WebsiteURL  string  `json:"WebsiteUrl,omitempty"`
	Address     Address `json:"Address,omitempty"`
}

// OpportunityContact is a person attached to the remote opportunity.
type OpportunityContact struct {
	Email         string `json:"Email,omitempty"`
	FirstName     string `json:"FirstName,omitempty"`
	LastName      string `json:"LastName,omitempty"`
	Phone         string `json:"Phone,omitempty"`
	BusinessTitle string `json:"BusinessTitle,omitempty"`
}

// Customer groups the account and its contacts.
type Customer struct {
	Account  Account              `json:"Account"`
	Contacts []OpportunityContact `json:"Contacts,omitempty"`
}

// ExpectedSpend is one expected-customer-spend line.
type ExpectedSpend struct {
	Amount        string `json:"Amount"`
	CurrencyCode  string `json:"CurrencyCode"`
	Frequency     string `json:"Frequency"`
	TargetCompany string `json:"TargetCompany"`
}

// LifeCycle carries the opportunity's stage and review state.
type LifeCycle struct {
	Stage           string `json:"Stage,omitempty"`
	TargetCloseDate string `json:"TargetCloseDate,omitempty"`
	NextSteps       string `json:"NextSteps,omitempty"`
	ReviewStatus    string `json:"ReviewStatus,omitempty"`
}

// Project holds the opportunity's project details. Title is immutable after
// creation on the remote side; the update payload type omits it entirely.
type Project struct {
	Title                   string          `json:"Title,omitempty"`
	CustomerBusinessProblem string          `json:"CustomerBusinessProblem,omitempty"`
	DeliveryModels          []string        `json:"DeliveryModels,omitempty"`
	ExpectedCustomerSpend   []ExpectedSpend `json:"ExpectedCustomerSpend,omitempty"`
	SalesActivities         []string        `json:"SalesActivities,omitempty"`
	CustomerUseCase         string          `json:"CustomerUseCase,omitempty"`
}

// UpdateProject is Project without the immutable Title field, so an update
// payload cannot carry a title change even by accident.
type UpdateProject struct {
	CustomerBusinessProblem string          `json:"CustomerBusinessProblem,omitempty"`
	DeliveryModels          []string        `json:"DeliveryModels,omitempty"`
	ExpectedCustomerSpend   []ExpectedSpend `json:"ExpectedCustomerSpend,omitempty"`
	SalesActivities         []string        `json:"SalesActivities,omitempty"`
	CustomerUseCase         string          `json:"CustomerUseCase,omitempty"`
}

// Opportunity is the remote system's view of a synced deal.
type Opportunity struct {
	ID        string         `json:"Id,omitempty"`
	Arn       string         `json:"Arn,omitempty"`
	LifeCycle LifeCycle      `json:"LifeCycle,omitempty"`
	Project   Project        `json:"Project,omitempty"`
	Customer  Customer       `json:"Customer,omitempty"`
	Extra     map[string]any `json:"-"`
}

// CreateOpportunityInput is the remote create request. ClientToken is the
// deterministic idempotency token derived from the local object ID, so
// retried create calls are deduplicated by the remote system itself.
type CreateOpportunityInput struct {
	Catalog                      string    `json:"Catalog"`
	ClientToken                  string    `json:"ClientToken"`
	Origin                       string    `json:"Origin,omitempty"`
	OpportunityType              string    `json:"OpportunityType,omitempty"`
	NationalSecurity             string    `json:"NationalSecurity,omitempty"`
	PartnerOpportunityIdentifier string    `json:"PartnerOpportunityIdentifier,omitempty"`
	PrimaryNeedsFromAws          []string  `json:"PrimaryNeedsFromAws,omitempty"`
	Customer                     Customer  `json:"Customer"`
	LifeCycle                    LifeCycle `json:"LifeCycle"`
	Project                      Project   `json:"Project"`
}

// UpdateOpportunityInput is the remote update request.
type UpdateOpportunityInput struct {
	Catalog             string        `json:"Catalog"`
	Identifier          string        `json:"Identifier"`
	OpportunityType     string        `json:"OpportunityType,omitempty"`
	NationalSecurity    string        `json:"NationalSecurity,omitempty"`
	PrimaryNeedsFromAws []string      `json:"PrimaryNeedsFromAws,omitempty"`
	Customer            Customer      `json:"Customer"`
	LifeCycle           LifeCycle     `json:"LifeCycle"`
	Project             UpdateProject `json:"Project"`
}

// RemoteClient is the per-provider opportunity API boundary. Every call must
// be safe to retry: Create dedupes on the idempotency token, Update is a
// full-state overwrite.
type RemoteClient interface {
	CreateOpportunity(ctx context.Context, input *CreateOpportunityInput) (*Opportunity, error)
	GetOpportunity(ctx context.Context, remoteID string) (*Opportunity, error)
	UpdateOpportunity(ctx context.Context, input *UpdateOpportunityInput) error
	ListRecentlyUpdated(ctx context.Context, since time.Time) ([]*Opportunity, error)
}
