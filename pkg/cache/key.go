package cache

import (
	"fmt"
	"strings"
)

// keyPrefix namespaces cache keys away from other users of the same Redis
// database (the job queue shares it).
const keyPrefix = "cache"

// BuildKey generates the deterministic composite key for a cache type and
// identifier. Singleton types (catalog, analytics-summary) use an empty
// identifier.
//
// Examples:
//
//	cache:catalog
//	cache:order-revenue:2142
//	cache:analytics-summary
func BuildKey(t EntryType, identifier string) string {
	parts := []string{keyPrefix, string(t)}
	if identifier = strings.TrimSpace(identifier); identifier != "" {
		parts = append(parts, identifier)
	}
	return strings.Join(parts, ":")
}

// Pattern returns the invalidation pattern covering every key of type t.
func Pattern(t EntryType) string {
	return BuildKey(t, "") + "*"
}

// AllPatterns returns invalidation patterns covering every cache type.
func AllPatterns() []string {
	types := EntryTypes()
	patterns := make([]string, 0, len(types))
	for _, t := range types {
		patterns = append(patterns, Pattern(t))
	}
	return patterns
}

// ParseKey splits a composite key back into its type and identifier.
func ParseKey(key string) (EntryType, string, error) {
	rest, ok := strings.CutPrefix(key, keyPrefix+":")
	if !ok {
		return "", "", fmt.Errorf("%w: key %q lacks the %q prefix", ErrInvalidRequest, key, keyPrefix)
	}
	typePart, identifier, _ := strings.Cut(rest, ":")
	t := EntryType(typePart)
	if !t.Valid() {
		return "", "", fmt.Errorf("%w: unknown cache type in key %q", ErrInvalidRequest, key)
	}
	return t, identifier, nil
}

// MatchKey reports whether key matches pattern. Patterns are the subset of
// Redis glob syntax the coordinator uses: a literal key, or a literal prefix
// followed by a single trailing '*'.
func MatchKey(pattern, key string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}
