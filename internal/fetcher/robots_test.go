package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRobotsDisallowsAll(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		blocked bool
	}{
		{
			name:    "blanket_disallow",
			body:    "User-agent: *\nDisallow: /",
			blocked: true,
		},
		{
			name:    "empty_file",
			body:    "",
			blocked: false,
		},
		{
			name:    "allow_everything",
			body:    "User-agent: *\nDisallow:",
			blocked: false,
		},
		{
			name:    "path_specific_disallow",
			body:    "User-agent: *\nDisallow: /admin/\nDisallow: /private/",
			blocked: false,
		},
		{
			name:    "blanket_disallow_for_other_agent_only",
			body:    "User-agent: BadBot\nDisallow: /\n\nUser-agent: *\nDisallow: /tmp/",
			blocked: false,
		},
		{
			name:    "wildcard_group_after_specific_group",
			body:    "User-agent: BadBot\nDisallow: /tmp/\n\nUser-agent: *\nDisallow: /",
			blocked: true,
		},
		{
			name:    "shared_agent_list_includes_wildcard",
			body:    "User-agent: BadBot\nUser-agent: *\nDisallow: /",
			blocked: true,
		},
		{
			name:    "comments_and_whitespace",
			body:    "# robots policy\nUser-agent: *  # everyone\nDisallow: / # no crawling",
			blocked: true,
		},
		{
			name:    "case_insensitive_fields",
			body:    "USER-AGENT: *\nDISALLOW: /",
			blocked: true,
		},
		{
			name:    "crawl_delay_between_groups",
			body:    "User-agent: *\nCrawl-delay: 10\nDisallow: /search",
			blocked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, robotsDisallowsAll(tt.body))
		})
	}
}
