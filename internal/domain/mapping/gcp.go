package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dealbridge/backend/internal/domain/sync"
)

// Google Cloud Partners API payloads. Leads are created first; opportunities
// reference them by resource name.

type GCPDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type GCPContact struct {
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type GCPLead struct {
	Name             string      `json:"name,omitempty"`
	CompanyName      string      `json:"companyName"`
	CompanyWebsite   string      `json:"companyWebsite,omitempty"`
	Contact          *GCPContact `json:"contact,omitempty"`
	Notes            string      `json:"notes,omitempty"`
	ExternalSystemID string      `json:"externalSystemId"`
}

type GCPOpportunity struct {
	Name               string  `json:"name,omitempty"`
	Lead               string  `json:"lead"`
	SalesStage         string  `json:"salesStage"`
	QualificationState string  `json:"qualificationState"`
	ProductFamily      string  `json:"productFamily"`
	DealSize           float64 `json:"dealSize,omitempty"`
	CloseDate          GCPDate `json:"closeDate"`
	TermMonths         string  `json:"termMonths,omitempty"`
	Notes              string  `json:"notes,omitempty"`
	NextSteps          string  `json:"nextSteps,omitempty"`
	IsConfidential     bool    `json:"isConfidential,omitempty"`
	ExternalSystemID   string  `json:"externalSystemId,omitempty"`
}

// GCPOpportunityUpdate holds the PATCH fields; nil pointers are omitted.
type GCPOpportunityUpdate struct {
	SalesStage         string   `json:"salesStage,omitempty"`
	QualificationState string   `json:"qualificationState,omitempty"`
	DealSize           *float64 `json:"dealSize,omitempty"`
	CloseDate          *GCPDate `json:"closeDate,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	NextSteps          string   `json:"nextSteps,omitempty"`
}

var (
	stageToGCP = map[string]string{
		"appointmentscheduled":  "QUALIFYING",
		"qualifiedtobuy":        "QUALIFIED",
		"presentationscheduled": "QUALIFIED",
		"decisionmakerboughtin": "PROPOSAL",
		"contractsent":          "NEGOTIATING",
		"closedwon":             "CLOSED_WON",
		"closedlost":            "CLOSED_LOST",
	}

	gcpStageToLocal = map[string]string{
		"QUALIFYING":  "appointmentscheduled",
		"QUALIFIED":   "qualifiedtobuy",
		"PROPOSAL":    "decisionmakerboughtin",
		"NEGOTIATING": "contractsent",
		"CLOSED_WON":  "closedwon",
		"CLOSED_LOST": "closedlost",
	}
)

const (
	defaultProductFamily = "GOOGLE_CLOUD_PLATFORM"
	maxGCPNotesLen       = 2000
	maxGCPNextStepsLen   = 500
)

// DealToGCPLead maps a local deal to a Partners API lead payload.
func (e *Engine) DealToGCPLead(deal *sync.Deal, company *sync.Company, contacts []sync.Contact) *GCPLead {
	companyName := strings.TrimSpace(firstNonEmpty(company.Prop("name"), deal.Prop("company"), "Unknown Customer"))

	lead := &GCPLead{
		CompanyName:      Truncate(companyName, MaxTitleLen),
		CompanyWebsite:   websiteOrEmpty(firstNonEmpty(company.Prop("website"), company.Prop("domain"), deal.Prop("website"))),
		ExternalSystemID: "hubspot-deal-" + deal.ID,
	}

	if len(contacts) > 0 {
		c := &contacts[0]
		contact := &GCPContact{
			GivenName:  strings.TrimSpace(c.Prop("firstname")),
			FamilyName: strings.TrimSpace(c.Prop("lastname")),
			Email:      strings.TrimSpace(c.Prop("email")),
			Phone:      sanitizePhone(firstNonEmpty(c.Prop("phone"), c.Prop("mobilephone"))),
		}
		if *contact != (GCPContact{}) {
			lead.Contact = contact
		}
	}

	notes := strings.TrimSpace(firstNonEmpty(deal.Prop("description"), deal.Prop("hs_deal_description")))
	if notes == "" {
		notes = fmt.Sprintf("CRM deal: %s", firstNonEmpty(deal.Prop("dealname"), "Untitled Deal"))
	}
	lead.Notes = Truncate(notes, maxGCPNotesLen)

	return lead
}

// DealToGCPOpportunity maps a local deal to a Partners API opportunity
// payload referencing an existing lead.
func (e *Engine) DealToGCPOpportunity(deal *sync.Deal, leadName string) *GCPOpportunity {
	stage := mapGCPStage(deal.Prop("dealstage"))

	opp := &GCPOpportunity{
		Lead:               leadName,
		SalesStage:         stage,
		QualificationState: gcpQualificationFor(stage),
		ProductFamily:      mapProductFamily(firstNonEmpty(deal.Prop("gcp_product_family"), deal.Prop("dealtype"))),
		CloseDate:          gcpCloseDate(deal.Prop("closedate"), e.now()),
		ExternalSystemID:   "hubspot-deal-" + deal.ID,
	}

	if v := parseFloat(firstNonEmpty(deal.Prop("amount"), deal.Prop("gcp_expected_spend"))); v > 0 {
		opp.DealSize = v
	}
	if months, err := strconv.Atoi(strings.TrimSpace(deal.Prop("gcp_term_months"))); err == nil && months > 0 {
		opp.TermMonths = strconv.Itoa(months)
	}
	if notes := strings.TrimSpace(firstNonEmpty(deal.Prop("description"), deal.Prop("hs_deal_description"))); notes != "" {
		opp.Notes = Truncate(notes, maxGCPNotesLen)
	}
	if next := strings.TrimSpace(firstNonEmpty(deal.Prop("hs_next_step"), deal.Prop("notes_next_activity_description"))); next != "" {
		opp.NextSteps = Truncate(next, maxGCPNextStepsLen)
	}
	if deal.Prop("gcp_is_confidential") == "true" {
		opp.IsConfidential = true
	}
	return opp
}

// DealToGCPOpportunityUpdate builds a PATCH payload from a deal change.
// Returns nil when nothing relevant changed.
func (e *Engine) DealToGCPOpportunityUpdate(
	deal *sync.Deal,
	changedProperties map[string]struct{},
) (*GCPOpportunityUpdate, []string) {
	var warnings []string

	changed := func(prop string) bool {
		if len(changedProperties) == 0 {
			return true
		}
		_, ok := changedProperties[prop]
		return ok
	}

	update := &GCPOpportunityUpdate{}
	hasUpdate := false

	if changed("dealstage") {
		stage := mapGCPStage(deal.Prop("dealstage"))
		update.SalesStage = stage
		update.QualificationState = gcpQualificationFor(stage)
		hasUpdate = true
	}
	if changed("amount") {
		if v := parseFloat(deal.Prop("amount")); v > 0 {
			update.DealSize = &v
			hasUpdate = true
		}
	}
	if changed("closedate") {
		d := gcpCloseDate(deal.Prop("closedate"), e.now())
		update.CloseDate = &d
		hasUpdate = true
	}
	if changed("description") {
		if notes := strings.TrimSpace(firstNonEmpty(deal.Prop("description"), deal.Prop("hs_deal_description"))); notes != "" {
			update.Notes = Truncate(notes, maxGCPNotesLen)
			hasUpdate = true
		}
	}
	if changed("hs_next_step") {
		if next := strings.TrimSpace(deal.Prop("hs_next_step")); next != "" {
			update.NextSteps = Truncate(next, maxGCPNextStepsLen)
			hasUpdate = true
		}
	}

	if !hasUpdate {
		return nil, warnings
	}
	return update, warnings
}

// GCPOpportunityToDealProperties maps a Partners API opportunity (and its
// lead, when available) back to local deal properties.
func (e *Engine) GCPOpportunityToDealProperties(opp *GCPOpportunity, lead *GCPLead) map[string]string {
	oppID := opp.Name
	if i := strings.LastIndex(oppID, "/"); i >= 0 {
		oppID = oppID[i+1:]
	}

	baseName := "GCP Partner Opportunity"
	if lead != nil && lead.CompanyName != "" {
		baseName = lead.CompanyName
	}
	dealName := baseName
	if !strings.Contains(dealName, "#GCP") {
		dealName = dealName + " #GCP"
	}

	stage, ok := gcpStageToLocal[opp.SalesStage]
	if !ok {
		stage = "appointmentscheduled"
	}

	props := map[string]string{
		"dealname":             Truncate(dealName, MaxTitleLen),
		"dealstage":            stage,
		"pipeline":             "default",
		"gcp_opportunity_id":   oppID,
		"gcp_opportunity_name": opp.Name,
		"gcp_sync_status":      sync.SyncStatusSynced,
		"description":          opp.Notes,
		"gcp_product_family":   opp.ProductFamily,
	}
	if opp.DealSize > 0 {
		props["amount"] = strconv.FormatFloat(opp.DealSize, 'f', -1, 64)
	}
	if opp.CloseDate != (GCPDate{}) {
		props["closedate"] = time.Date(
			opp.CloseDate.Year, time.Month(opp.CloseDate.Month), opp.CloseDate.Day,
			0, 0, 0, 0, time.UTC,
		).Format("2006-01-02T15:04:05") + "Z"
	}
	if lead != nil && lead.CompanyName != "" {
		props["company"] = lead.CompanyName
	}
	for k, v := range props {
		if v == "" {
			delete(props, k)
		}
	}
	return props
}

func mapGCPStage(localStage string) string {
	if s, ok := stageToGCP[strings.ToLower(strings.TrimSpace(localStage))]; ok {
		return s
	}
	return "QUALIFYING"
}

func gcpQualificationFor(salesStage string) string {
	switch salesStage {
	case "CLOSED_LOST":
		return "DISQUALIFIED"
	case "QUALIFIED", "PROPOSAL", "NEGOTIATING", "CLOSED_WON":
		return "QUALIFIED"
	default:
		return "UNQUALIFIED"
	}
}

// gcpCloseDate parses a close date into the Partners API date object with the
// same never-in-the-past guarantee as safeCloseDate.
func gcpCloseDate(raw string, now time.Time) GCPDate {
	iso := safeCloseDate(raw, now)
	t, _ := time.Parse("2006-01-02", iso)
	return GCPDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// mapProductFamily maps a deal type or custom property to the ProductFamily
// enum, defaulting to the cloud platform.
func mapProductFamily(raw string) string {
	if raw == "" {
		return defaultProductFamily
	}
	upper := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToUpper(raw))
	switch {
	case strings.Contains(upper, "WORKSPACE"), strings.Contains(upper, "GSUITE"):
		return "GOOGLE_WORKSPACE"
	case strings.Contains(upper, "CHROME"):
		return "CHROME_ENTERPRISE"
	case strings.Contains(upper, "MAPS"), strings.Contains(upper, "LOCATION"):
		return "GOOGLE_MAPS_PLATFORM"
	case strings.Contains(upper, "APIGEE"), strings.Contains(upper, "API"):
		return "APIGEE"
	default:
		return defaultProductFamily
	}
}

// websiteOrEmpty normalizes a URL like sanitizeWebsite but returns "" instead
// of a placeholder; the lead's website field is optional.
func websiteOrEmpty(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return Truncate(url, MaxWebsiteLen)
}
