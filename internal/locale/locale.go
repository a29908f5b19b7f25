// Package locale translates between host locale identifiers and identity
// provider locale strings.
package locale

// Mapping describes one host locale and the provider locale it maps to.
type Mapping struct {
	// HostID is the host application's locale identifier.
	HostID string
	// ProviderLocale is the locale string understood by the identity provider.
	ProviderLocale string
	// Label is a human-readable description of the locale.
	Label string
}

// Override pairs a host locale identifier with a configured provider locale.
type Override struct {
	HostID         string
	ProviderLocale string
	Label          string
}

// Forward builds a mapping keyed by host locale identifier for every enabled
// host locale. Locales without an override map to their identifier verbatim.
// Returns an empty map when no locales are enabled.
func Forward(enabled []string, overrides []Override) map[string]Mapping {
	return build(enabled, overrides, false)
}

// Reverse builds a mapping keyed by provider locale. When two host locales
// map to the same provider locale the later one in enumeration order wins.
func Reverse(enabled []string, overrides []Override) map[string]Mapping {
	return build(enabled, overrides, true)
}

func build(enabled []string, overrides []Override, reverse bool) map[string]Mapping {
	mappings := make(map[string]Mapping, len(enabled))

	if len(enabled) == 0 {
		return mappings
	}

	byHost := make(map[string]Override, len(overrides))
	for _, o := range overrides {
		byHost[o.HostID] = o
	}

	for _, hostID := range enabled {
		m := Mapping{
			HostID:         hostID,
			ProviderLocale: hostID,
		}

		if o, ok := byHost[hostID]; ok {
			m.ProviderLocale = o.ProviderLocale
			m.Label = o.Label
		}

		if reverse {
			mappings[m.ProviderLocale] = m
		} else {
			mappings[m.HostID] = m
		}
	}

	return mappings
}

// ResolveProvider returns the provider locale for the given host locale, or
// the host locale identifier itself when it has no mapping entry.
func ResolveProvider(enabled []string, overrides []Override, hostID string) string {
	if m, ok := Forward(enabled, overrides)[hostID]; ok {
		return m.ProviderLocale
	}

	return hostID
}
