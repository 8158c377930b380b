package partnercentral

import (
	"errors"
	"fmt"
)

// Config holds configuration for the AWS Partner Central Selling API.
type Config struct {
	// Region is the AWS region hosting the Partner Central API
	Region string
	// Catalog selects the live or sandbox opportunity catalog
	Catalog string
	// AccessKeyID and SecretAccessKey are static credentials. When empty the
	// default AWS credential chain is used instead.
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the API endpoint (used by tests)
	Endpoint string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Catalog values accepted by the remote API.
const (
	CatalogAWS     = "AWS"
	CatalogSandbox = "Sandbox"
)

var (
	ErrConfigMissingRegion  = errors.New("partnercentral: region is required")
	ErrConfigInvalidCatalog = errors.New("partnercentral: catalog must be AWS or Sandbox")
)

// Validate validates the configuration, filling in defaults.
func (c *Config) Validate() error {
	if c.Region == "" {
		return ErrConfigMissingRegion
	}
	if c.Catalog == "" {
		c.Catalog = CatalogAWS
	}
	if c.Catalog != CatalogAWS && c.Catalog != CatalogSandbox {
		return fmt.Errorf("%w: %q", ErrConfigInvalidCatalog, c.Catalog)
	}
	if c.Endpoint == "" {
		c.Endpoint = fmt.Sprintf("https://partnercentral-selling.%s.api.aws", c.Region)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
