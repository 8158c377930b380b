package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Truncate hard-clips s to max bytes' worth of runes. Oversized input is
// silently clipped, never rejected: blocking a sync for cosmetic
// data-quality reasons is worse than losing a tail of text.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// ClientToken derives the deterministic idempotency token for a local deal.
// Identical across repeated calls for the same deal, so retried create
// calls are deduplicated by the remote system itself.
func ClientToken(dealID string) string {
	return "hs-deal-" + dealID
}

// mapStage translates a local pipeline stage to the remote stage enum,
// defaulting to Prospect.
func mapStage(localStage string) string {
	if s, ok := stageToRemote[strings.ToLower(strings.TrimSpace(localStage))]; ok {
		return s
	}
	return "Prospect"
}

// mapStageToLocal translates a remote stage back to the local pipeline.
func mapStageToLocal(remoteStage string) string {
	if s, ok := stageToLocal[remoteStage]; ok {
		return s
	}
	return "appointmentscheduled"
}

// mapIndustry coerces a free-text or CRM-enum industry value into the remote
// closed enum: direct lookup, then CRM enum key, then case-insensitive
// partial match, then "Other". Never fails for unmapped input.
func mapIndustry(raw string) string {
	if raw == "" {
		return "Other"
	}
	for _, v := range validIndustries {
		if raw == v {
			return v
		}
	}
	key := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToUpper(raw))
	if v, ok := localIndustryToRemote[key]; ok {
		return v
	}
	lower := strings.ToLower(raw)
	for _, v := range validIndustries {
		vl := strings.ToLower(v)
		if strings.Contains(vl, lower) || strings.Contains(lower, vl) {
			return v
		}
	}
	return "Other"
}

// synthesizeBusinessProblem guarantees the remote minimum-length constraint.
// A missing or too-short description is padded with a templated sentence
// referencing the deal name instead of failing the mapping.
func synthesizeBusinessProblem(raw, dealName string) string {
	text := strings.TrimSpace(raw)
	if len(text) < MinBusinessProblemLen {
		fallback := fmt.Sprintf(
			"CRM deal '%s' is being co-sold with the partner. "+
				"The customer is evaluating partner services to solve their business needs.",
			dealName,
		)
		if text == "" {
			text = fallback
		} else {
			text = text + " " + fallback
		}
	}
	return Truncate(text, MaxBusinessProblemLen)
}

// sanitizeWebsite normalizes a website URL to the remote's 4-255 char,
// scheme-prefixed constraint, falling back to a placeholder.
func sanitizeWebsite(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return "https://www.example.com"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	if len(url) < 4 {
		return "https://www.example.com"
	}
	return Truncate(url, MaxWebsiteLen)
}

// countryNameToCode covers the full country names that commonly appear in
// CRM data; everything else falls back to US.
var countryNameToCode = map[string]string{
	"UNITED STATES": "US", "USA": "US",
	"UNITED KINGDOM": "GB", "UK": "GB",
	"CANADA": "CA", "AUSTRALIA": "AU",
	"GERMANY": "DE", "FRANCE": "FR",
	"INDIA": "IN", "JAPAN": "JP",
	"BRAZIL": "BR", "MEXICO": "MX",
}

// mapCountryCode best-effort maps to a 2-letter ISO code.
func mapCountryCode(raw string) string {
	clean := strings.ToUpper(strings.TrimSpace(raw))
	if clean == "" {
		return "US"
	}
	if len(clean) == 2 {
		return clean
	}
	if code, ok := countryNameToCode[clean]; ok {
		return code
	}
	return "US"
}

// sanitizePhone normalizes to the remote format +[country][number]. Returns
// "" when the number cannot be normalized.
func sanitizePhone(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' || c == '+' {
			b.WriteRune(c)
		}
	}
	digits := b.String()
	if !strings.HasPrefix(digits, "+") {
		digits = "+1" + digits
	}
	if len(digits) < 8 || len(digits) > 16 {
		return ""
	}
	return digits
}

// safeCloseDate parses a local close date and guarantees it is not in the
// past: the remote system rejects past dates outright, and silently dropping
// the sync would leave data stale. Past or unparseable dates are pushed
// forward to the default horizon.
func safeCloseDate(raw string, now time.Time) string {
	today := now.UTC().Truncate(24 * time.Hour)
	if raw != "" {
		if parsed, err := parseFlexibleTime(raw); err == nil {
			day := parsed.UTC().Truncate(24 * time.Hour)
			if day.After(today) {
				return day.Format("2006-01-02")
			}
		}
	}
	return today.AddDate(0, 0, CloseDateHorizonDays).Format("2006-01-02")
}

// parseFlexibleTime accepts the timestamp formats seen in CRM payloads.
func parseFlexibleTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", raw)
}

// remoteDateToLocalISO converts a YYYY-MM-DD remote date to the CRM's ISO
// timestamp format. Returns "" for unparseable input.
func remoteDateToLocalISO(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02T15:04:05") + "Z"
}

// formatAmount normalizes a monetary amount to a two-decimal string.
// Invalid or negative amounts become "0.00".
func formatAmount(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "0.00"
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return "0.00"
	}
	return d.StringFixed(2)
}

// parseDeliveryModels parses a comma-separated delivery models property,
// keeping only valid enum values and defaulting to SaaS or PaaS.
func parseDeliveryModels(raw string) []string {
	if raw == "" {
		return []string{"SaaS or PaaS"}
	}
	var valid []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		for _, v := range validDeliveryModels {
			if p == v {
				valid = append(valid, v)
				break
			}
		}
	}
	if len(valid) == 0 {
		return []string{"SaaS or PaaS"}
	}
	return valid
}

// parsePrimaryNeeds parses a comma-separated primary-needs property against
// the closed enum, defaulting to deal support.
func parsePrimaryNeeds(raw string) []string {
	if raw == "" {
		return []string{"Co-Sell - Deal Support"}
	}
	var matched []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if _, ok := validPrimaryNeeds[p]; ok {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return []string{"Co-Sell - Deal Support"}
	}
	return matched
}

// parseUseCase maps a use-case or deal-type property to the remote enum via
// exact then substring match. Returns "" when nothing matches; the field is
// optional on the remote side.
func parseUseCase(raw string) string {
	if raw == "" {
		return ""
	}
	for _, uc := range validUseCases {
		if raw == uc {
			return uc
		}
	}
	lower := strings.ToLower(raw)
	for _, uc := range validUseCases {
		if strings.Contains(strings.ToLower(uc), lower) {
			return uc
		}
	}
	return ""
}

// mapOpportunityType maps the CRM deal type to the remote opportunity type.
func mapOpportunityType(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "renew"):
		return "Flat Renewal"
	case strings.Contains(lower, "expan"), strings.Contains(lower, "upsell"):
		return "Expansion"
	default:
		return "Net New Business"
	}
}
