package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Fetch.MinDomainDelay = 2 * time.Second
	s.Fetch.AssetDelay = time.Second
	s.Fetch.Timeout = 30 * time.Second
	s.Fetch.GlobalRate = 1.0
	s.Fetch.UserAgentContact = "https://example.org/crawler"
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "orchidnet.db"
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"negative_domain_delay", func(s *Settings) { s.Fetch.MinDomainDelay = -time.Second }},
		{"negative_asset_delay", func(s *Settings) { s.Fetch.AssetDelay = -time.Second }},
		{"zero_timeout", func(s *Settings) { s.Fetch.Timeout = 0 }},
		{"zero_global_rate", func(s *Settings) { s.Fetch.GlobalRate = 0 }},
		{"huge_domain_delay", func(s *Settings) { s.Fetch.MinDomainDelay = 2 * time.Hour }},
		{"bad_contact_url", func(s *Settings) { s.Fetch.UserAgentContact = "not a url" }},
		{"no_output", func(s *Settings) { s.Output.SQLite.Enabled = false }},
		{"sqlite_without_path", func(s *Settings) { s.Output.SQLite.Path = "" }},
		{"mysql_without_host", func(s *Settings) {
			s.Output.SQLite.Enabled = false
			s.Output.MySQL.Enabled = true
			s.Output.MySQL.Database = "orchidnet"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			assert.Error(t, ValidateSettings(s))
		})
	}
}
