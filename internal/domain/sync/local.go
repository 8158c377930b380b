package sync

import (
	"context"
	"time"
)

// Cross-reference properties stored on the local (CRM) record. They double
// as the foreign key to the remote object and the idempotency witness: a
// deal that already carries PropRemoteOpportunityID is never created twice.
const (
	PropRemoteOpportunityID    = "aws_opportunity_id"
	PropRemoteOpportunityArn   = "aws_opportunity_arn"
	PropRemoteOpportunityTitle = "aws_opportunity_title"
	PropReviewStatus           = "aws_review_status"
	PropSyncStatus             = "aws_sync_status"
	PropLastSyncedAt           = "aws_last_sync"

	SyncStatusSynced = "synced"
)

// Deal is the local CRM deal record. Properties keeps the CRM's flexible
// property bag; well-known property names live in the constants above.
type Deal struct {
	ID         string
	Properties map[string]string
	UpdatedAt  time.Time
}

// Prop returns a property value, or "" when absent.
func (d *Deal) Prop(name string) string {
	if d == nil || d.Properties == nil {
		return ""
	}
	return d.Properties[name]
}

// RemoteID returns the linked remote opportunity ID, or "" when the deal has
// never been synced.
func (d *Deal) RemoteID() string {
	return d.Prop(PropRemoteOpportunityID)
}

// Company is the local CRM company record associated with a deal.
type Company struct {
	ID         string
	Properties map[string]string
}

// Prop returns a property value, or "" when absent.
func (c *Company) Prop(name string) string {
	if c == nil || c.Properties == nil {
		return ""
	}
	return c.Properties[name]
}

// Contact is a local CRM contact record associated with a deal.
type Contact struct {
	ID         string
	Properties map[string]string
}

// Prop returns a property value, or "" when absent.
func (c *Contact) Prop(name string) string {
	if c == nil || c.Properties == nil {
		return ""
	}
	return c.Properties[name]
}

// Note is an annotation attached to a local deal, used to surface
// blocked-update and immutable-field warnings to end users.
type Note struct {
	DealID string
	Body   string
}

// LocalClient is the CRM API boundary. UpdateDeal must include, on the first
// successful sync, the remote id/ARN and a sync-status marker.
type LocalClient interface {
	GetDeal(ctx context.Context, dealID string) (*Deal, error)
	GetDealWithAssociations(ctx context.Context, dealID string) (*Deal, *Company, []Contact, error)
	UpdateDeal(ctx context.Context, dealID string, properties map[string]string) error
	CreateNote(ctx context.Context, note *Note) error
	SearchDealsByProperty(ctx context.Context, property, value string) ([]*Deal, error)
}
