package hubspot

import "errors"

// Config holds configuration for the HubSpot CRM API.
type Config struct {
	// BaseURL is the API root (production or a mock server in tests)
	BaseURL string
	// AccessToken is the private-app bearer token
	AccessToken string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// ProductionBaseURL is the production API endpoint
const ProductionBaseURL = "https://api.hubapi.com"

var (
	ErrConfigMissingAccessToken = errors.New("hubspot: access token is required")
)

// NewConfig creates a configuration with defaults
func NewConfig(accessToken string) *Config {
	return &Config{
		BaseURL:        ProductionBaseURL,
		AccessToken:    accessToken,
		TimeoutSeconds: 30,
	}
}

// Validate validates the configuration, filling in defaults
func (c *Config) Validate() error {
	if c.AccessToken == "" {
		return ErrConfigMissingAccessToken
	}
	if c.BaseURL == "" {
		c.BaseURL = ProductionBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
