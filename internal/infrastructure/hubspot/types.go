package hubspot

// Wire types for the HubSpot CRM v3/v4 object APIs.

// objectResponse is a single CRM object (deal, company, contact, note).
type objectResponse struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	UpdatedAt  string            `json:"updatedAt"`
	Archived   bool              `json:"archived"`
}

// associationEdge is one entry in a v4 association listing.
type associationEdge struct {
	ToObjectID int64 `json:"toObjectId"`
}

// associationsResponse is the v4 association listing for one object.
type associationsResponse struct {
	Results []associationEdge `json:"results"`
}

// batchReadRequest is the body for POST /crm/v3/objects/{type}/batch/read.
type batchReadRequest struct {
	Properties []string    `json:"properties"`
	Inputs     []batchItem `json:"inputs"`
}

type batchItem struct {
	ID string `json:"id"`
}

// batchReadResponse is the batch-read result envelope.
type batchReadResponse struct {
	Results []objectResponse `json:"results"`
}

// updateRequest is the body for PATCH /crm/v3/objects/{type}/{id}.
type updateRequest struct {
	Properties map[string]string `json:"properties"`
}

// searchRequest is the body for POST /crm/v3/objects/{type}/search.
type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

// searchResponse is the search result envelope.
type searchResponse struct {
	Total   int              `json:"total"`
	Results []objectResponse `json:"results"`
}

// createNoteRequest is the body for POST /crm/v3/objects/notes, carrying the
// note body and an inline association to the parent deal.
type createNoteRequest struct {
	Properties   map[string]string `json:"properties"`
	Associations []noteAssociation `json:"associations"`
}

type noteAssociation struct {
	To    associationTarget `json:"to"`
	Types []associationType `json:"types"`
}

type associationTarget struct {
	ID string `json:"id"`
}

type associationType struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

// errorResponse is HubSpot's standard error envelope.
type errorResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
	Category      string `json:"category"`
}
