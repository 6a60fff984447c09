package launcher

import (
	"sort"
	"strings"
)

// Environment describes the overlay applied on top of the ambient environment.
// The ambient slice itself is never modified.
type Environment struct {
	// Defaults apply only when the ambient value is missing or empty (TERM, LANG).
	Defaults map[string]string
	// Overlay values always win over the ambient environment.
	Overlay map[string]string
	// SecretKey is injected with SecretValue only when the value is non-empty.
	SecretKey   string
	SecretValue string
}

// Build returns the child environment in KEY=VALUE form.
func (e Environment) Build(ambient []string) []string {
	order := make([]string, 0, len(ambient)+len(e.Defaults)+len(e.Overlay)+1)
	values := make(map[string]string, cap(order))

	set := func(k, v string) {
		if _, ok := values[k]; !ok {
			order = append(order, k)
		}
		values[k] = v
	}

	for _, kv := range ambient {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		set(k, v)
	}

	for _, k := range sortedKeys(e.Defaults) {
		if values[k] == "" {
			set(k, e.Defaults[k])
		}
	}
	for _, k := range sortedKeys(e.Overlay) {
		set(k, e.Overlay[k])
	}
	if e.SecretKey != "" && e.SecretValue != "" {
		set(e.SecretKey, e.SecretValue)
	}

	env := make([]string, 0, len(order))
	for _, k := range order {
		env = append(env, k+"="+values[k])
	}
	return env
}

// Keys lists the variable names the overlay may set. Values are never
// included, so the result is safe to log.
func (e Environment) Keys() []string {
	keys := append(sortedKeys(e.Defaults), sortedKeys(e.Overlay)...)
	if e.SecretKey != "" && e.SecretValue != "" {
		keys = append(keys, e.SecretKey)
	}
	return keys
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
