// Package registry contains the static publisher domain registry consulted
// by the dispatch engine and the ranking refresher.
package registry

// Domain is a single publisher hostname known to the dispatcher.
type Domain struct {
	// Host is the publisher hostname, for example "example.com".
	Host string

	// InvertedLanguage marks domains whose native language is not
	// Portuguese, meaning the absence of a language query parameter implies
	// an English path prefix rather than no prefix at all.
	InvertedLanguage bool
}

// Registry is the ordered, immutable list of publisher domains.
type Registry struct {
	domains  []Domain
	inverted map[string]bool
}

// New returns a new *Registry from domains.  The order of domains is
// preserved and used for the registry-order fallback and the round-robin
// spill path.
func New(domains []Domain) (r *Registry) {
	inverted := make(map[string]bool, len(domains))
	for _, d := range domains {
		if d.InvertedLanguage {
			inverted[d.Host] = true
		}
	}

	cloned := make([]Domain, len(domains))
	copy(cloned, domains)

	return &Registry{
		domains:  cloned,
		inverted: inverted,
	}
}

// Len returns the number of domains in the registry.
func (r *Registry) Len() (n int) {
	return len(r.domains)
}

// At returns the domain at the given zero-based index.  index must be in
// range [0, Len()).
func (r *Registry) At(index int) (d Domain) {
	return r.domains[index]
}

// Hosts returns the hostnames of all domains, in registry order.
func (r *Registry) Hosts() (hosts []string) {
	hosts = make([]string, len(r.domains))
	for i, d := range r.domains {
		hosts[i] = d.Host
	}

	return hosts
}

// IsInverted reports whether host belongs to the inverted-language set.
func (r *Registry) IsInverted(host string) (ok bool) {
	return r.inverted[host]
}

// Default returns the built-in registry; it is the only registry the process
// uses, and no configuration overrides it.  The inverted-language entry mirrors the worked example in
// the dispatch specification.
func Default() (r *Registry) {
	return New([]Domain{
		{Host: "appnews4u.com"},
		{Host: "appgames4u.com"},
		{Host: "apptrends4u.com"},
		{Host: "appmobile4u.com", InvertedLanguage: true},
	})
}
