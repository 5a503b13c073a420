package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Normalizer rewrites a search parameter value before it is bound.
type Normalizer func(any) any

var normalizers = map[string]Normalizer{
	"upper":    stringNormalizer(strings.ToUpper),
	"lower":    stringNormalizer(strings.ToLower),
	"trim":     stringNormalizer(strings.TrimSpace),
	"prefix":   stringNormalizer(func(s string) string { return s + "%" }),
	"suffix":   stringNormalizer(func(s string) string { return "%" + s }),
	"contains": stringNormalizer(func(s string) string { return "%" + s + "%" }),
	"int":      convertNormalizer(func(v any) (any, error) { return cast.ToInt64E(v) }),
	"bool":     convertNormalizer(func(v any) (any, error) { return cast.ToBoolE(v) }),
	"split":    splitNormalizer,
}

// NormalizerNames returns the built-in normalizer names, sorted.
func NormalizerNames() []string {
	names := make([]string, 0, len(normalizers))
	for name := range normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain composes the named normalizers left to right. An empty chain yields
// a nil Normalizer.
func Chain(names ...string) (func(any) any, error) {
	if len(names) == 0 {
		return nil, nil
	}
	chain := make([]Normalizer, 0, len(names))
	for _, name := range names {
		n, ok := normalizers[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown normalizer %q (known: %s)", name, strings.Join(NormalizerNames(), ", "))
		}
		chain = append(chain, n)
	}
	return func(v any) any {
		for _, n := range chain {
			v = n(v)
		}
		return v
	}, nil
}

func stringNormalizer(fn func(string) string) Normalizer {
	return func(v any) any {
		s, err := cast.ToStringE(v)
		if err != nil {
			return v
		}
		return fn(s)
	}
}

// convertNormalizer keeps the original value when conversion fails.
func convertNormalizer(fn func(any) (any, error)) Normalizer {
	return func(v any) any {
		out, err := fn(v)
		if err != nil {
			return v
		}
		return out
	}
}

// splitNormalizer turns a comma separated string into a list, for use in
// IN (...) predicates.
func splitNormalizer(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
