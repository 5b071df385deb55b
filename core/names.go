package core

import "sync"

// Well-known namespace URIs, mirrored from the XPath/XQuery/XSLT function
// namespace table.
const (
	NSXML   = "http://www.w3.org/XML/1998/namespace"
	NSXSI   = "http://www.w3.org/2001/XMLSchema-instance"
	NSXSD   = "http://www.w3.org/2001/XMLSchema"
	NSFn    = "http://www.w3.org/2005/xpath-functions"
	NSMath  = "http://www.w3.org/2005/xpath-functions/math"
	NSMap   = "http://www.w3.org/2005/xpath-functions/map"
	NSArray = "http://www.w3.org/2005/xpath-functions/array"
	NSXSL   = "http://www.w3.org/1999/XSL/Transform"
	NSLocal = "http://www.w3.org/2005/xquery-local-functions"
	NSNone  = ""
)

// Name is an expanded QName: a namespace URI and a local name. Equality
// ignores Prefix, which exists only so names can be rendered back to
// readable lexical QNames.
type Name struct {
	URI    string
	Local  string
	Prefix string
}

// Equal compares two names ignoring Prefix, per the data model invariant
// that prefix is not an identifying part of an expanded name.
func (n Name) Equal(other Name) bool {
	return n.URI == other.URI && n.Local == other.Local
}

func (n Name) String() string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Local
	}
	return n.Local
}

func (n Name) IsZero() bool {
	return n.URI == "" && n.Local == ""
}

func NewName(uri, local string) Name {
	return Name{URI: uri, Local: local}
}

func NewQName(prefix, uri, local string) Name {
	return Name{URI: uri, Local: local, Prefix: prefix}
}

// uriEntry is a registered namespace URI together with every local name
// ever interned under it and the prefixes it has been bound to.
type uriEntry struct {
	id       int
	uri      string
	locals   map[string]int
	prefixes []string
}

// NameTable interns (URI, local-name) pairs: lookups are map-based,
// registration is append-only, and a previously-registered name is
// always returned instead of a duplicate entry. Intern identity (the
// int ids) is an implementation detail never exposed to callers; only
// Name equality is observable.
type NameTable struct {
	mu    sync.RWMutex
	uris  map[string]*uriEntry
	order []string
}

func NewNameTable() *NameTable {
	t := &NameTable{uris: make(map[string]*uriEntry)}
	// The default namespace bindings every static context starts with.
	t.internURI(NSNone)
	t.internURI(NSXML)
	t.internURI(NSXSI)
	return t
}

func (t *NameTable) internURI(uri string) *uriEntry {
	if e, ok := t.uris[uri]; ok {
		return e
	}
	e := &uriEntry{id: len(t.order), uri: uri, locals: make(map[string]int)}
	t.uris[uri] = e
	t.order = append(t.order, uri)
	return e
}

// Intern registers a name and returns the canonical Name value for its
// (URI, local) pair, adopting prefix as a display hint only.
func (t *NameTable) Intern(uri, local, prefix string) Name {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.internURI(uri)
	if _, ok := e.locals[local]; !ok {
		e.locals[local] = len(e.locals)
	}
	if prefix != "" {
		found := false
		for _, p := range e.prefixes {
			if p == prefix {
				found = true
				break
			}
		}
		if !found {
			e.prefixes = append(e.prefixes, prefix)
		}
	}
	return Name{URI: uri, Local: local, Prefix: prefix}
}

// DefaultPrefix reports the prefix most recently bound to uri, or the
// built-in default for the three namespaces every context predeclares.
func (t *NameTable) DefaultPrefix(uri string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch uri {
	case NSNone:
		return ""
	case NSXML:
		return "xml"
	case NSXSI:
		return "xsi"
	}
	if e, ok := t.uris[uri]; ok && len(e.prefixes) > 0 {
		return e.prefixes[len(e.prefixes)-1]
	}
	return ""
}

// NamespaceBindings is a simple, lexically-scoped prefix->URI table used
// by the static context and by the xpath/xslt glue packages while
// resolving QName literals.
type NamespaceBindings struct {
	parent *NamespaceBindings
	binds  map[string]string
}

func NewNamespaceBindings(parent *NamespaceBindings) *NamespaceBindings {
	return &NamespaceBindings{parent: parent, binds: make(map[string]string)}
}

func (b *NamespaceBindings) Bind(prefix, uri string) {
	b.binds[prefix] = uri
}

func (b *NamespaceBindings) Resolve(prefix string) (string, bool) {
	for cur := b; cur != nil; cur = cur.parent {
		if uri, ok := cur.binds[prefix]; ok {
			return uri, true
		}
	}
	switch prefix {
	case "xml":
		return NSXML, true
	case "xsi":
		return NSXSI, true
	case "xs":
		return NSXSD, true
	case "fn":
		return NSFn, true
	case "math":
		return NSMath, true
	case "map":
		return NSMap, true
	case "array":
		return NSArray, true
	case "xsl":
		return NSXSL, true
	}
	return "", false
}
