package types

import "fmt"

// AnalyticsType selects which tracking snippet is embedded in the published page.
type AnalyticsType string

// Analytics variants.
const (
	AnalyticsNone   AnalyticsType = "none"
	AnalyticsVercel AnalyticsType = "vercel"
	AnalyticsGoogle AnalyticsType = "google"
	AnalyticsUmami  AnalyticsType = "umami"
)

// Environment variable names passed to the deployed site.
const (
	EnvGoogleAnalyticsID = "GOOGLE_ANALYTICS_ID"
	EnvUmamiWebsiteID    = "UMAMI_WEBSITE_ID"
)

// Analytics is a tagged union over the supported analytics providers.
// Only the identifier belonging to Type is meaningful.
type Analytics struct {
	Type             AnalyticsType `json:"type" yaml:"type"`
	GoogleTrackingID string        `json:"googleTrackingId,omitempty" yaml:"googleTrackingId,omitempty"`
	UmamiWebsiteID   string        `json:"umamiWebsiteId,omitempty" yaml:"umamiWebsiteId,omitempty"`
}

// Kind returns the variant, treating an empty type as none.
func (a Analytics) Kind() AnalyticsType {
	if a.Type == "" {
		return AnalyticsNone
	}
	return a.Type
}

// Check verifies that the variant is known and carries its identifier.
func (a Analytics) Check() error {
	switch a.Kind() {
	case AnalyticsNone, AnalyticsVercel:
		return nil
	case AnalyticsGoogle:
		if a.GoogleTrackingID == "" {
			return fmt.Errorf("analytics: google tracking id is required")
		}
		return nil
	case AnalyticsUmami:
		if a.UmamiWebsiteID == "" {
			return fmt.Errorf("analytics: umami website id is required")
		}
		return nil
	default:
		return fmt.Errorf("analytics: unknown type %q", a.Type)
	}
}

// EnvVars returns the environment variables the deployed site needs for this
// variant. The map is empty (never nil) when no variable applies.
func (a Analytics) EnvVars() map[string]string {
	env := map[string]string{}
	switch a.Kind() {
	case AnalyticsGoogle:
		env[EnvGoogleAnalyticsID] = a.GoogleTrackingID
	case AnalyticsUmami:
		env[EnvUmamiWebsiteID] = a.UmamiWebsiteID
	}
	return env
}
