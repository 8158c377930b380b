package mapping

import (
	"strconv"
	"strings"

	"github.com/dealbridge/backend/internal/domain/sync"
)

// Microsoft Partner Center referral payloads. The concrete HTTP client is an
// external collaborator; only the wire shapes and translation live here.

type ReferralAddress struct {
	AddressLine1 string `json:"addressLine1"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	Country      string `json:"country"`
}

type ReferralTeamMember struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
}

type ReferralCustomerProfile struct {
	Name     string               `json:"name"`
	Address  ReferralAddress      `json:"address"`
	Size     string               `json:"size"`
	Team     []ReferralTeamMember `json:"team"`
	Industry string               `json:"industry,omitempty"`
}

type ReferralConsent struct {
	ShareWithMicrosoftSellers bool `json:"consentToShareReferralWithMicrosoftSellers"`
}

type ReferralDetails struct {
	DealValue float64 `json:"dealValue"`
	Currency  string  `json:"currency"`
	Notes     string  `json:"notes,omitempty"`
	CloseDate string  `json:"closeDate,omitempty"`
}

type Referral struct {
	ID                  string                  `json:"id,omitempty"`
	Name                string                  `json:"name"`
	ExternalReferenceID string                  `json:"externalReferenceId"`
	Type                string                  `json:"type"`
	Qualification       string                  `json:"qualification"`
	Status              string                  `json:"status,omitempty"`
	Substatus           string                  `json:"substatus,omitempty"`
	CustomerProfile     ReferralCustomerProfile `json:"customerProfile"`
	Consent             ReferralConsent         `json:"consent"`
	Details             ReferralDetails         `json:"details"`
	ETag                string                  `json:"eTag,omitempty"`
}

// ReferralUpdate carries only the fields the update API accepts; zero values
// are omitted from the wire payload.
type ReferralUpdate struct {
	Name      string           `json:"name,omitempty"`
	Status    string           `json:"status,omitempty"`
	Substatus string           `json:"substatus,omitempty"`
	Details   *ReferralDetails `json:"details,omitempty"`
}

type msStatus struct {
	Status    string
	Substatus string
}

var (
	stageToReferralStatus = map[string]msStatus{
		"appointmentscheduled":  {"New", "Pending"},
		"qualifiedtobuy":        {"Active", "Accepted"},
		"presentationscheduled": {"Active", "Engaged"},
		"decisionmakerboughtin": {"Active", "Engaged"},
		"contractsent":          {"Active", "Engaged"},
		"closedwon":             {"Closed", "Won"},
		"closedlost":            {"Closed", "Lost"},
	}

	referralStatusToStage = map[msStatus]string{
		{"New", "Pending"}:      "appointmentscheduled",
		{"New", "Received"}:     "appointmentscheduled",
		{"Active", "Accepted"}:  "qualifiedtobuy",
		{"Active", "Engaged"}:   "presentationscheduled",
		{"Closed", "Won"}:       "closedwon",
		{"Closed", "Lost"}:      "closedlost",
		{"Closed", "Declined"}:  "closedlost",
		{"Closed", "Expired"}:   "closedlost",
	}

	stageToQualification = map[string]string{
		"appointmentscheduled": "MarketingQualified",
	}

	localIndustryToReferral = map[string]string{
		"RETAIL":             "Retail",
		"FINANCIAL_SERVICES": "Financial Services",
		"HEALTHCARE":         "Healthcare",
		"MANUFACTURING":      "Manufacturing",
		"EDUCATION":          "Education",
		"TECHNOLOGY":         "Technology",
		"TELECOMMUNICATIONS": "Telecommunications",
		"GOVERNMENT":         "Government",
		"NONPROFIT":          "Non-Profit",
		"HOSPITALITY":        "Hospitality",
		"REAL_ESTATE":        "Real Estate",
		"CONSTRUCTION":       "Construction",
		"AUTOMOTIVE":         "Automotive",
		"AGRICULTURE":        "Agriculture",
		"ENERGY":             "Energy",
		"MEDIA":              "Media & Entertainment",
		"TRANSPORTATION":     "Transportation",
		"OTHER":              "Other",
	}
)

const maxReferralNotesLen = 500

// DealToReferral maps a local deal to a Partner Center referral create
// payload.
func (e *Engine) DealToReferral(deal *sync.Deal, company *sync.Company, contacts []sync.Contact) *Referral {
	dealName := strings.TrimSpace(deal.Prop("dealname"))
	if dealName == "" {
		dealName = "Untitled Deal"
	}
	stage := strings.ToLower(strings.TrimSpace(deal.Prop("dealstage")))

	qualification := "SalesQualified"
	if q, ok := stageToQualification[stage]; ok {
		qualification = q
	}

	notes := strings.TrimSpace(firstNonEmpty(deal.Prop("description"), deal.Prop("hs_deal_description")))
	if notes == "" {
		notes = "Deal synced from CRM"
	}

	return &Referral{
		Name:                dealName,
		ExternalReferenceID: deal.ID,
		Type:                "Independent",
		Qualification:       qualification,
		CustomerProfile:     e.buildReferralProfile(deal, company, contacts),
		Consent:             ReferralConsent{ShareWithMicrosoftSellers: false},
		Details: ReferralDetails{
			DealValue: parseFloat(deal.Prop("amount")),
			Currency:  strings.ToUpper(firstNonEmpty(deal.Prop("deal_currency_code"), "USD")),
			Notes:     Truncate(notes, maxReferralNotesLen),
			CloseDate: safeCloseDate(deal.Prop("closedate"), e.now()),
		},
	}
}

// DealToReferralUpdate builds an update payload against the current remote
// referral. Closed referrals cannot be updated; a nil payload with a warning
// is returned instead.
func (e *Engine) DealToReferralUpdate(
	deal *sync.Deal,
	current *Referral,
	changedProperties map[string]struct{},
) (*ReferralUpdate, []string) {
	var warnings []string

	if current.Status == "Closed" {
		warnings = append(warnings,
			"Cannot update the referral: it is already closed. Reopen it in Partner Center first.")
		return nil, warnings
	}

	changed := func(prop string) bool {
		if len(changedProperties) == 0 {
			return true
		}
		_, ok := changedProperties[prop]
		return ok
	}

	update := &ReferralUpdate{}
	hasUpdate := false

	if changed("dealname") {
		if name := strings.TrimSpace(deal.Prop("dealname")); name != "" && name != current.Name {
			update.Name = name
			hasUpdate = true
		}
	}

	if changed("dealstage") {
		if st, ok := stageToReferralStatus[strings.ToLower(strings.TrimSpace(deal.Prop("dealstage")))]; ok {
			if st.Status != current.Status {
				update.Status = st.Status
				hasUpdate = true
			}
			if st.Substatus != current.Substatus {
				update.Substatus = st.Substatus
				hasUpdate = true
			}
		}
	}

	details := current.Details
	detailsChanged := false
	if changed("amount") {
		if v := parseFloat(deal.Prop("amount")); v > 0 && v != details.DealValue {
			details.DealValue = v
			detailsChanged = true
		}
	}
	if changed("closedate") {
		if raw := deal.Prop("closedate"); raw != "" {
			details.CloseDate = safeCloseDate(raw, e.now())
			detailsChanged = true
		}
	}
	if changed("description") {
		if desc := strings.TrimSpace(deal.Prop("description")); desc != "" {
			details.Notes = Truncate(desc, maxReferralNotesLen)
			detailsChanged = true
		}
	}
	if detailsChanged {
		update.Details = &details
		hasUpdate = true
	}

	if !hasUpdate {
		return nil, warnings
	}
	return update, warnings
}

// ReferralToDealProperties maps a Partner Center referral back to local deal
// properties, tagging the deal name so round-trip webhooks can be filtered.
func (e *Engine) ReferralToDealProperties(referral *Referral) map[string]string {
	name := referral.Name
	if name == "" {
		name = "Untitled Referral"
	}
	if !strings.Contains(name, "#Microsoft") {
		name = name + " #Microsoft"
	}

	stage, ok := referralStatusToStage[msStatus{referral.Status, referral.Substatus}]
	if !ok {
		stage = "appointmentscheduled"
	}

	props := map[string]string{
		"dealname":                  Truncate(name, MaxTitleLen),
		"amount":                    strconv.FormatFloat(referral.Details.DealValue, 'f', -1, 64),
		"dealstage":                 stage,
		"description":               referral.Details.Notes,
		"pipeline":                  "default",
		"microsoft_referral_id":     referral.ID,
		"microsoft_sync_status":     sync.SyncStatusSynced,
		"microsoft_status":          referral.Status,
		"microsoft_substatus":       referral.Substatus,
	}
	if referral.Details.CloseDate != "" {
		props["closedate"] = remoteDateToLocalISO(referral.Details.CloseDate)
	}
	if n := referral.CustomerProfile.Name; n != "" {
		props["customer_name"] = n
	}
	for k, v := range props {
		if v == "" {
			delete(props, k)
		}
	}
	return props
}

func (e *Engine) buildReferralProfile(deal *sync.Deal, company *sync.Company, contacts []sync.Contact) ReferralCustomerProfile {
	profile := ReferralCustomerProfile{
		Name: firstNonEmpty(company.Prop("name"), deal.Prop("customer_name"), "Unknown Customer"),
		Address: ReferralAddress{
			AddressLine1: firstNonEmpty(company.Prop("address"), "N/A"),
			City:         firstNonEmpty(company.Prop("city"), "Unknown"),
			State:        company.Prop("state"),
			PostalCode:   company.Prop("zip"),
			Country:      mapCountryCode(company.Prop("country")),
		},
		Size: companySizeBucket(company.Prop("numberofemployees")),
	}

	for i := range contacts {
		if len(profile.Team) >= 5 {
			break
		}
		c := &contacts[i]
		email := strings.TrimSpace(c.Prop("email"))
		if email == "" {
			continue
		}
		profile.Team = append(profile.Team, ReferralTeamMember{
			FirstName:    strings.TrimSpace(c.Prop("firstname")),
			LastName:     strings.TrimSpace(c.Prop("lastname")),
			EmailAddress: email,
			PhoneNumber:  sanitizePhone(c.Prop("phone")),
		})
	}
	if len(profile.Team) == 0 {
		profile.Team = append(profile.Team, ReferralTeamMember{
			FirstName:    "Contact",
			LastName:     "Unknown",
			EmailAddress: "contact@example.com",
		})
	}

	if industry := company.Prop("industry"); industry != "" {
		mapped, ok := localIndustryToReferral[strings.ToUpper(industry)]
		if !ok {
			mapped = "Other"
		}
		profile.Industry = mapped
	}
	return profile
}

// companySizeBucket maps an employee count to the Partner Center size enum.
func companySizeBucket(raw string) string {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "Unknown"
	}
	switch {
	case n < 10:
		return "1to9employees"
	case n < 50:
		return "10to50employees"
	case n < 250:
		return "51to250employees"
	case n < 1000:
		return "251to1000employees"
	case n < 5000:
		return "1001to5000employees"
	case n < 10000:
		return "5001to10000employees"
	default:
		return "10001+employees"
	}
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
