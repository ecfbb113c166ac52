package domain

import (
	"net"
	"regexp"
	"strings"
)

// maxPasses bounds the rewrite pipeline. The built-in rules strictly shrink
// the hostname (or prepend www. at most once), so they stabilize in two or
// three passes; the cap guards against operator rules that never converge.
const maxPasses = 8

var localSuffix = regexp.MustCompile(`^(.+)\.local$`)

// Normalizer maps raw hostnames to canonical site identifiers. It holds the
// compiled rewrite pipeline and is safe for concurrent use: Normalize is a
// pure function of its input, with no I/O and no mutable state.
type Normalizer struct {
	rules        []Rule
	canonicalWWW bool
}

// NewNormalizer builds the pipeline: the built-in suffix rules, then any
// operator-supplied rules, then the optional www canonicalization policy.
func NewNormalizer(canonicalWWW bool, extra []Rule) *Normalizer {
	rules := make([]Rule, 0, len(builtinRules)+len(extra))
	rules = append(rules, builtinRules...)
	rules = append(rules, extra...)
	return &Normalizer{
		rules:        rules,
		canonicalWWW: canonicalWWW,
	}
}

// Normalize returns the canonical site identifier for host. The pipeline is
// rerun until the output stabilizes so normalization is idempotent: feeding
// a canonical identifier back in always returns it unchanged.
func (n *Normalizer) Normalize(host string) string {
	h := canonicalHost(host)
	for i := 0; i < maxPasses; i++ {
		out := n.pass(h)
		if out == h {
			return h
		}
		h = out
	}
	return h
}

func (n *Normalizer) pass(h string) string {
	for _, r := range n.rules {
		h = r.apply(h)
	}
	if n.canonicalWWW {
		h = prependWWW(h)
	}
	return h
}

// prependWWW rewrites a bare two-label domain to its www. form. Hosts that
// already carry the prefix, single labels, and deeper subdomains pass
// through unchanged.
func prependWWW(h string) string {
	if strings.HasPrefix(h, "www.") {
		return h
	}
	if strings.Count(h, ".") != 1 {
		return h
	}
	return "www." + h
}

// canonicalHost lowercases host and strips a port suffix and one trailing
// dot. DNS names are case-insensitive and Host headers may carry ports, so
// this keeps the rest of the pipeline working on one spelling per name.
func canonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// LocalLabel reports whether host uses the .local development suffix and
// returns the bare label that names its backend socket ("shop.local" →
// "shop").
func LocalLabel(host string) (string, bool) {
	m := localSuffix.FindStringSubmatch(canonicalHost(host))
	if m == nil {
		return "", false
	}
	return m[1], true
}
