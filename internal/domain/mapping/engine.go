package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/dealbridge/backend/internal/domain/sync"
)

// Engine performs all deal <-> opportunity translation. Every method is a
// pure transform over its inputs: no I/O, no mutation of arguments, and
// byte-identical output for identical input (the clock only influences the
// close-date floor).
type Engine struct {
	catalog string
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source; used by tests to pin the close-date
// horizon.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a mapping engine for the given remote catalog.
func NewEngine(catalog string, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DealToOpportunity maps a local deal (plus its associated company and
// contacts) to a remote create request. Required fields that are missing or
// fail the remote's minimum-length constraints are synthesized from
// policy-defined fallbacks rather than rejected.
func (e *Engine) DealToOpportunity(deal *sync.Deal, company *sync.Company, contacts []sync.Contact) *sync.CreateOpportunityInput {
	dealName := strings.TrimSpace(deal.Prop("dealname"))
	if dealName == "" {
		dealName = "Untitled Deal"
	}

	companyName := firstNonEmpty(company.Prop("name"), deal.Prop("company"), "Unknown Customer")
	website := sanitizeWebsite(firstNonEmpty(company.Prop("website"), company.Prop("domain"), deal.Prop("website")))
	industry := mapIndustry(firstNonEmpty(company.Prop("industry"), deal.Prop("industry"), deal.Prop("aws_industry")))

	nationalSecurity := "No"
	if industry == "Government" {
		nationalSecurity = "Yes"
	}

	stage := mapStage(deal.Prop("dealstage"))
	targetClose := safeCloseDate(deal.Prop("closedate"), e.now())

	return &sync.CreateOpportunityInput{
		Catalog:                      e.catalog,
		ClientToken:                  ClientToken(deal.ID),
		Origin:                       "Partner Referral",
		OpportunityType:              mapOpportunityType(deal.Prop("dealtype")),
		NationalSecurity:             nationalSecurity,
		PartnerOpportunityIdentifier: Truncate(deal.ID, MaxPartnerIdentLen),
		PrimaryNeedsFromAws:          parsePrimaryNeeds(deal.Prop("aws_primary_needs")),
		Customer: sync.Customer{
			Account: sync.Account{
				CompanyName: Truncate(strings.TrimSpace(companyName), MaxCompanyNameLen),
				Industry:    industry,
				WebsiteURL:  website,
				Address: sync.Address{
					CountryCode:   mapCountryCode(firstNonEmpty(company.Prop("country"), deal.Prop("country"))),
					City:          Truncate(firstNonEmpty(company.Prop("city"), deal.Prop("city")), MaxAddressFieldLen),
					StateOrRegion: Truncate(firstNonEmpty(company.Prop("state"), deal.Prop("state")), MaxAddressFieldLen),
					PostalCode:    Truncate(firstNonEmpty(company.Prop("zip"), deal.Prop("zip")), MaxPostalCodeLen),
					StreetAddress: Truncate(firstNonEmpty(company.Prop("address"), deal.Prop("address")), MaxAddressFieldLen),
				},
			},
			Contacts: mapContacts(contacts),
		},
		LifeCycle: sync.LifeCycle{
			Stage:           stage,
			TargetCloseDate: targetClose,
			NextSteps:       Truncate(firstNonEmpty(deal.Prop("hs_next_step"), deal.Prop("notes_next_activity_description")), MaxNextStepsLen),
		},
		Project: sync.Project{
			Title:                   Truncate(dealName, MaxTitleLen),
			CustomerBusinessProblem: synthesizeBusinessProblem(firstNonEmpty(deal.Prop("description"), deal.Prop("hs_deal_description")), dealName),
			DeliveryModels:          parseDeliveryModels(deal.Prop("aws_delivery_models")),
			ExpectedCustomerSpend:   buildSpend(deal),
			SalesActivities:         salesActivitiesFor(stage),
			CustomerUseCase:         parseUseCase(firstNonEmpty(deal.Prop("aws_use_case"), deal.Prop("dealtype"))),
		},
	}
}

// DealToOpportunityUpdate builds a remote update request, respecting the
// remote's immutability and review-status rules.
//
// When the opportunity's review status is in the blocked set, no payload is
// produced and the warning explains the block; no network call should be
// attempted. When the changed-properties set includes an immutable field,
// the payload simply omits it and a warning describes the skip; callers are
// expected to surface the warning to an end user and revert the local
// display value to the remote canonical value.
func (e *Engine) DealToOpportunityUpdate(
	deal *sync.Deal,
	current *sync.Opportunity,
	company *sync.Company,
	contacts []sync.Contact,
	changedProperties map[string]struct{},
) (*sync.UpdateOpportunityInput, []string) {
	var warnings []string

	if status := current.LifeCycle.ReviewStatus; IsUpdateBlocked(status) {
		warnings = append(warnings, fmt.Sprintf(
			"Update blocked: opportunity is in %q status. No changes will be sent until the partner review is complete.",
			status,
		))
		return nil, warnings
	}

	full := e.DealToOpportunity(deal, company, contacts)

	update := &sync.UpdateOpportunityInput{
		Catalog:             e.catalog,
		Identifier:          current.ID,
		OpportunityType:     full.OpportunityType,
		NationalSecurity:    full.NationalSecurity,
		PrimaryNeedsFromAws: full.PrimaryNeedsFromAws,
		Customer:            full.Customer,
		LifeCycle:           full.LifeCycle,
		Project: sync.UpdateProject{
			CustomerBusinessProblem: full.Project.CustomerBusinessProblem,
			DeliveryModels:          full.Project.DeliveryModels,
			ExpectedCustomerSpend:   full.Project.ExpectedCustomerSpend,
			SalesActivities:         full.Project.SalesActivities,
			CustomerUseCase:         full.Project.CustomerUseCase,
		},
	}

	if _, changed := changedProperties["dealname"]; changed {
		warnings = append(warnings, fmt.Sprintf(
			"The opportunity title cannot be changed after submission. The deal name change has not been pushed; the remote title remains %q.",
			current.Project.Title,
		))
	}

	return update, warnings
}

// OpportunityToDealProperties maps a remote opportunity back to local deal
// properties for the CRM create/update API, including the cross-reference
// properties that make later syncs idempotent.
func (e *Engine) OpportunityToDealProperties(opp *sync.Opportunity, invitationID string) map[string]string {
	rawTitle := opp.Project.Title
	if rawTitle == "" {
		rawTitle = "Partner Central Opportunity"
	}
	title := rawTitle
	if !strings.Contains(title, "#AWS") {
		title = title + " #AWS"
	}

	props := map[string]string{
		"dealname":                      Truncate(title, MaxTitleLen),
		sync.PropRemoteOpportunityTitle: rawTitle,
		"dealstage":                     mapStageToLocal(opp.LifeCycle.Stage),
		"pipeline":                      "default",
		"description":                   opp.Project.CustomerBusinessProblem,
		sync.PropRemoteOpportunityID:    opp.ID,
		sync.PropRemoteOpportunityArn:   opp.Arn,
		sync.PropReviewStatus:           opp.LifeCycle.ReviewStatus,
		sync.PropSyncStatus:             sync.SyncStatusSynced,
		"closedate":                     remoteDateToLocalISO(opp.LifeCycle.TargetCloseDate),
	}

	if name := opp.Customer.Account.CompanyName; name != "" {
		props["company"] = name
	}
	if spend := opp.Project.ExpectedCustomerSpend; len(spend) > 0 && spend[0].Amount != "" {
		props["amount"] = spend[0].Amount
	}
	if invitationID != "" {
		props["aws_invitation_id"] = invitationID
	}

	for k, v := range props {
		if v == "" {
			delete(props, k)
		}
	}
	return props
}

// salesActivitiesFor returns the recommended sales activities for a stage.
func salesActivitiesFor(stage string) []string {
	if a, ok := stageSalesActivities[stage]; ok && len(a) > 0 {
		return a
	}
	return []string{"Initialized discussions with customer"}
}

// buildSpend builds the expected-customer-spend list. Frequency and
// TargetCompany each have a single valid value on the remote side.
func buildSpend(deal *sync.Deal) []sync.ExpectedSpend {
	currency := strings.ToUpper(firstNonEmpty(deal.Prop("deal_currency_code"), "USD"))
	return []sync.ExpectedSpend{{
		Amount:        formatAmount(firstNonEmpty(deal.Prop("amount"), deal.Prop("aws_expected_spend"))),
		CurrencyCode:  currency,
		Frequency:     "Monthly",
		TargetCompany: "AWS",
	}}
}

// mapContacts maps local contacts to remote contact objects, skipping
// contacts with neither email nor name and capping at the remote maximum.
func mapContacts(contacts []sync.Contact) []sync.OpportunityContact {
	var result []sync.OpportunityContact
	for i := range contacts {
		if len(result) >= MaxContacts {
			break
		}
		c := &contacts[i]
		email := strings.TrimSpace(c.Prop("email"))
		first := Truncate(strings.TrimSpace(c.Prop("firstname")), MaxContactFieldLen)
		last := Truncate(strings.TrimSpace(c.Prop("lastname")), MaxContactFieldLen)
		if email == "" && first == "" && last == "" {
			continue
		}
		result = append(result, sync.OpportunityContact{
			Email:         Truncate(email, MaxContactFieldLen),
			FirstName:     first,
			LastName:      last,
			Phone:         sanitizePhone(firstNonEmpty(c.Prop("phone"), c.Prop("mobilephone"))),
			BusinessTitle: Truncate(strings.TrimSpace(c.Prop("jobtitle")), MaxContactFieldLen),
		})
	}
	return result
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
