package query

import (
	"regexp"
	"sort"

	"github.com/roomcraft-ai/renderlog/internal/model"
)

var (
	uuidPattern  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	digitPattern = regexp.MustCompile(`[0-9]+`)
)

// NormalizeErrorMessage collapses the variable parts of an error message
// so near-duplicates group together: UUIDs become <uuid>, digit runs
// become #. UUIDs are replaced first or their hex digits would be mangled.
func NormalizeErrorMessage(msg string) string {
	msg = uuidPattern.ReplaceAllString(msg, "<uuid>")
	return digitPattern.ReplaceAllString(msg, "#")
}

// GroupErrors normalizes and counts messages, returning the top n groups
// by count. Ties break alphabetically so output is stable.
func GroupErrors(messages []string, n int) []model.ErrorGroup {
	counts := make(map[string]int)
	for _, m := range messages {
		if m == "" {
			continue
		}
		counts[NormalizeErrorMessage(m)]++
	}

	groups := make([]model.ErrorGroup, 0, len(counts))
	for msg, count := range counts {
		groups = append(groups, model.ErrorGroup{Message: msg, Count: count})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Message < groups[j].Message
	})

	if n > 0 && len(groups) > n {
		groups = groups[:n]
	}
	return groups
}
