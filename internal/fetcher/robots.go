package fetcher

import (
	"bufio"
	"strings"
)

// robotsDisallowsAll reports whether a robots.txt body blocks all crawling
// for User-agent: *.
//
// This is deliberately not a full RFC 9309 parser: only a blanket
// "Disallow: /" inside the wildcard agent group blocks a domain.
// Path-specific rules and Crawl-delay are not honored; the fetcher's own
// per-domain delay is stricter than typical crawl-delays anyway. The parser
// is group-aware so that a "Disallow: /" aimed at a specific crawler does
// not block us.
func robotsDisallowsAll(body string) bool {
	inWildcardGroup := false
	groupHasAgents := false

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()

		// Strip comments and whitespace
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			// Consecutive User-agent lines form one group; any other
			// directive ends the agent list.
			if !groupHasAgents {
				inWildcardGroup = false
			}
			groupHasAgents = true
			if value == "*" {
				inWildcardGroup = true
			}
		case "disallow":
			groupHasAgents = false
			if inWildcardGroup && value == "/" {
				return true
			}
		default:
			groupHasAgents = false
		}
	}

	return false
}
