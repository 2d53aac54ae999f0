package conf

import (
	"fmt"
	"net/url"
	"time"
)

// ValidateSettings checks the loaded settings for values that would break the
// pipeline at runtime. It returns the first problem found.
func ValidateSettings(settings *Settings) error {
	if settings.Fetch.MinDomainDelay < 0 {
		return fmt.Errorf("fetch.mindomaindelay must not be negative, got %v", settings.Fetch.MinDomainDelay)
	}
	if settings.Fetch.AssetDelay < 0 {
		return fmt.Errorf("fetch.assetdelay must not be negative, got %v", settings.Fetch.AssetDelay)
	}
	if settings.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %v", settings.Fetch.Timeout)
	}
	if settings.Fetch.GlobalRate <= 0 {
		return fmt.Errorf("fetch.globalrate must be positive, got %v", settings.Fetch.GlobalRate)
	}
	// Over an hour between requests to one domain means a misconfigured unit
	// (seconds given where a duration string was expected).
	if settings.Fetch.MinDomainDelay > time.Hour {
		return fmt.Errorf("fetch.mindomaindelay %v is unreasonably large, check units", settings.Fetch.MinDomainDelay)
	}

	if settings.Fetch.UserAgentContact != "" {
		if _, err := url.ParseRequestURI(settings.Fetch.UserAgentContact); err != nil {
			return fmt.Errorf("fetch.useragentcontact is not a valid URL: %w", err)
		}
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no output database enabled, enable output.sqlite or output.mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must be set when SQLite output is enabled")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Database == "" || settings.Output.MySQL.Host == "" {
			return fmt.Errorf("output.mysql requires database and host")
		}
	}

	return nil
}
