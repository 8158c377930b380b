// Package mapping is the pure, side-effect-free translation layer between
// the local CRM deal model and each partner ecosystem's opportunity model.
// It is the single source of truth for field-level translation: stage and
// enum tables, length limits, immutable-field sets and blocked-status sets
// all live here and are never mutated at runtime.
package mapping

// TablesVersion identifies the shipped revision of the static rule tables.
const TablesVersion = 1

// Stage mappings: local CRM pipeline stage <-> partner opportunity stage.
var (
	stageToRemote = map[string]string{
		"appointmentscheduled":  "Prospect",
		"qualifiedtobuy":        "Qualified",
		"presentationscheduled": "Technical Validation",
		"decisionmakerboughtin": "Business Validation",
		"contractsent":          "Committed",
		"closedwon":             "Launched",
		"closedlost":            "Closed Lost",
	}

	stageToLocal = map[string]string{
		"Prospect":             "appointmentscheduled",
		"Qualified":            "qualifiedtobuy",
		"Technical Validation": "presentationscheduled",
		"Business Validation":  "decisionmakerboughtin",
		"Committed":            "contractsent",
		"Launched":             "closedwon",
		"Closed Lost":          "closedlost",
	}

	// stageSalesActivities maps a remote stage to its recommended
	// sales-activity entries.
	stageSalesActivities = map[string][]string{
		"Prospect":             {"Initialized discussions with customer"},
		"Qualified":            {"Customer has shown interest in solution"},
		"Technical Validation": {"Conducted POC / Demo"},
		"Business Validation":  {"In evaluation / planning stage"},
		"Committed":            {"Agreed on solution to Business Problem"},
		"Launched":             {"Finalized Deployment Need"},
		"Closed Lost":          {},
	}
)

// validIndustries is the remote system's closed industry enum.
var validIndustries = []string{
	"Aerospace", "Agriculture", "Automotive", "Computers and Electronics",
	"Consumer Goods", "Education", "Energy - Oil and Gas", "Energy - Power and Utilities",
	"Financial Services", "Gaming", "Government", "Healthcare", "Hospitality",
	"Life Sciences", "Manufacturing", "Marketing and Advertising", "Media and Entertainment",
	"Mining", "Non-Profit Organization", "Professional Services",
	"Real Estate and Construction", "Retail", "Software and Internet",
	"Telecommunications", "Transportation and Logistics", "Travel",
	"Wholesale and Distribution", "Other",
}

// localIndustryToRemote maps the CRM's internal industry enum keys to the
// remote enum.
var localIndustryToRemote = map[string]string{
	"AEROSPACE_AND_DEFENSE": "Aerospace",
	"AGRICULTURE":           "Agriculture",
	"APPAREL":               "Consumer Goods",
	"AUTOMOTIVE":            "Automotive",
	"BANKING":               "Financial Services",
	"BIOTECHNOLOGY":         "Life Sciences",
	"CHEMICALS":             "Manufacturing",
	"COMMUNICATIONS":        "Telecommunications",
	"COMPUTER_HARDWARE":     "Computers and Electronics",
	"COMPUTER_SOFTWARE":     "Software and Internet",
	"CONSTRUCTION":          "Real Estate and Construction",
	"CONSULTING":            "Professional Services",
	"CONSUMER_GOODS":        "Consumer Goods",
	"EDUCATION":             "Education",
	"ELECTRONICS":           "Computers and Electronics",
	"ENERGY":                "Energy - Power and Utilities",
	"ENGINEERING":           "Manufacturing",
	"ENTERTAINMENT":         "Media and Entertainment",
	"ENVIRONMENTAL":         "Other",
	"FINANCE":               "Financial Services",
	"FINANCIAL_SERVICES":    "Financial Services",
	"FOOD_AND_BEVERAGE":     "Consumer Goods",
	"GAMING":                "Gaming",
	"GOVERNMENT":            "Government",
	"HEALTHCARE":            "Healthcare",
	"HOSPITALITY":           "Hospitality",
	"INSURANCE":             "Financial Services",
	"LEGAL":                 "Professional Services",
	"LIFE_SCIENCES":         "Life Sciences",
	"LOGISTICS":             "Transportation and Logistics",
	"MANUFACTURING":         "Manufacturing",
	"MEDIA":                 "Media and Entertainment",
	"MINING":                "Mining",
	"NONPROFIT":             "Non-Profit Organization",
	"PHARMACEUTICALS":       "Life Sciences",
	"PROFESSIONAL_SERVICES": "Professional Services",
	"REAL_ESTATE":           "Real Estate and Construction",
	"RETAIL":                "Retail",
	"SECURITY":              "Software and Internet",
	"TECHNOLOGY":            "Software and Internet",
	"TELECOMMUNICATIONS":    "Telecommunications",
	"TRANSPORTATION":        "Transportation and Logistics",
	"TRAVEL_AND_TOURISM":    "Travel",
	"UTILITIES":             "Energy - Power and Utilities",
	"WHOLESALE":             "Wholesale and Distribution",
}

// validDeliveryModels is the remote DeliveryModel enum.
var validDeliveryModels = []string{
	"SaaS or PaaS", "BYOL or AMI", "Managed Services",
	"Professional Services", "Resell", "Other",
}

// validPrimaryNeeds is the remote PrimaryNeedsFromAws enum.
var validPrimaryNeeds = map[string]struct{}{
	"Co-Sell - Architectural Validation":            {},
	"Co-Sell - Business Presentation":               {},
	"Co-Sell - Competitive Information":             {},
	"Co-Sell - Pricing Assistance":                  {},
	"Co-Sell - Technical Consultation":              {},
	"Co-Sell - Total Cost of Ownership Evaluation":  {},
	"Co-Sell - Deal Support":                        {},
	"Co-Sell - Support for Public Tender / RFx":     {},
}

// validUseCases is the remote CustomerUseCase enum.
var validUseCases = []string{
	"AI Machine Learning and Analytics",
	"Archiving",
	"Big Data: Data Warehouse/Data Integration/ETL/Data Lake/BI",
	"Blockchain",
	"Business Applications: Mainframe Modernization",
	"Business Applications & Contact Center",
	"Business Applications & SAP Production",
	"Centralized Operations Management",
	"Cloud Management Tools",
	"Configuration, Compliance & Auditing",
	"Containers & Serverless",
	"Content Delivery & Edge Services",
	"Database",
	"Edge Computing/End User Computing",
	"Enterprise Governance & Controls",
	"Enterprise Resource Planning",
	"Financial Services",
	"Healthcare and Life Sciences",
	"High Performance Computing",
	"Hybrid Application Platform",
	"Industrial Software",
	"IOT",
	"Manufacturing, Supply Chain and Operations",
	"Migration/Database Migration",
	"Monitoring & Observability",
	"Networking",
	"Security & Compliance",
	"Storage & Backup",
	"Training",
	"Web development & DevOps",
}

// ImmutableFields lists field paths the remote system permits to be set only
// at creation time. The update-path mapping never includes them.
var ImmutableFields = map[string]struct{}{
	"Project.Title": {},
}

// BlockedReviewStatuses lists remote review states during which no updates
// may be sent at all.
var BlockedReviewStatuses = map[string]struct{}{
	"Submitted": {},
	"In Review": {},
}

// IsUpdateBlocked reports whether a remote review status forbids updates.
func IsUpdateBlocked(reviewStatus string) bool {
	_, blocked := BlockedReviewStatuses[reviewStatus]
	return blocked
}

// Field length limits documented by the remote API. Every mapped string is
// hard-truncated to its limit before transmission.
const (
	MaxTitleLen           = 255
	MaxCompanyNameLen     = 120
	MaxBusinessProblemLen = 2000
	MinBusinessProblemLen = 20
	MaxWebsiteLen         = 255
	MaxAddressFieldLen    = 255
	MaxPostalCodeLen      = 20
	MaxNextStepsLen       = 255
	MaxContactFieldLen    = 80
	MaxPartnerIdentLen    = 64
	MaxContacts           = 10
)

// CloseDateHorizonDays is the default horizon a past or missing close date
// is pushed to; the remote system rejects past dates outright.
const CloseDateHorizonDays = 90
