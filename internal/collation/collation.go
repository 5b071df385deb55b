// Package collation supplies core.Collation implementations: the
// mandatory Unicode codepoint collation, and locale-sensitive
// collations backed by golang.org/x/text/collate, resolved by URI the
// way fn:compare/fn:sort/fn:distinct-values accept a collation
// argument.
package collation

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sderkacs/xpvm/core"
)

// CodepointURI is the mandatory default collation every implementation
// must support: plain Unicode codepoint ordering.
const CodepointURI = "http://www.w3.org/2005/xpath-functions/collation/codepoint"

// codepointCollation orders strings by raw Unicode codepoint value,
// which for Go's UTF-8-encoded strings is exactly strings.Compare.
type codepointCollation struct{}

func (codepointCollation) Compare(a, b string) int { return strings.Compare(a, b) }
func (codepointCollation) Equal(a, b string) bool  { return a == b }

var _ core.Collation = codepointCollation{}

// Codepoint is the shared codepoint-collation instance.
var Codepoint core.Collation = codepointCollation{}

// localeCollation wraps an x/text/collate.Collator for one BCP-47
// language tag.
type localeCollation struct {
	c *collate.Collator
}

func (l localeCollation) Compare(a, b string) int { return l.c.CompareString(a, b) }
func (l localeCollation) Equal(a, b string) bool  { return l.c.CompareString(a, b) == 0 }

var _ core.Collation = localeCollation{}

// ForLanguage builds a collation for a BCP-47 language tag such as
// "de", "fr-CA", or "sv". An unparseable tag falls back to the root
// (language-neutral) collator rather than erroring, since an unknown
// collation argument is reported by the caller as an unsupported
// collation URI, not a malformed tag.
func ForLanguage(tag string) core.Collation {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.Und
	}
	return localeCollation{c: collate.New(t)}
}

// Registry resolves the collation URIs fn:compare/fn:sort/fn:distinct-
// values/xsl:sort accept: the mandatory codepoint collation plus a
// fixed set of locale collations, each addressed by a simple URN of the
// form "urn:xpvm:collation:<BCP-47 tag>" (this engine has no catalog of
// externally-registered collation URIs to resolve against, so a made-up
// but stable scheme stands in for one).
type Registry struct {
	named map[string]core.Collation
}

// NewRegistry builds a Registry pre-populated with the codepoint
// collation and the given extra locale tags.
func NewRegistry(locales ...string) *Registry {
	r := &Registry{named: map[string]core.Collation{
		CodepointURI: Codepoint,
	}}
	for _, tag := range locales {
		r.named["urn:xpvm:collation:"+tag] = ForLanguage(tag)
	}
	return r
}

// Lookup resolves a collation URI, returning ok=false if unknown.
func (r *Registry) Lookup(uri string) (core.Collation, bool) {
	c, ok := r.named[uri]
	return c, ok
}

// Install copies every collation this registry knows into a dynamic
// context's Collations map, the shape NewDynamicContext expects to be
// populated in before evaluation starts.
func (r *Registry) Install(into map[string]core.Collation) {
	for uri, c := range r.named {
		into[uri] = c
	}
}
