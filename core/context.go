package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FunctionSignature is the declarative shape of a callable: name,
// arity, parameter types, and return type are all first-class,
// inspectable data rather than being baked into Go function signatures
// alone, the same declarative-option-surface style EXIFactory-shaped
// encoder/decoder configuration uses instead of ad hoc fields.
type FunctionSignature struct {
	Name         Name
	Params       []SequenceType
	Return       SequenceType
	ContextFirst bool // true if a zero-arg overload supplying the context item exists
}

// FunctionDescriptor binds a FunctionSignature to an implementation
// registered through the stdlib binding layer (core/stdlib.go).
type FunctionDescriptor struct {
	Signature FunctionSignature
	Impl      NativeFunc
}

// NativeFunc is the host-native shape every built-in function
// implementation has: a dynamic context, the already-converted argument
// sequences, and a result sequence or an error.
type NativeFunc func(ctx *DynamicContext, args []Sequence) (Sequence, error)

// StaticContext is compile-time state: in-scope namespaces, the function
// registry, and defaults, the single object consulted throughout
// compilation the way a factory-style configuration object is consulted
// throughout encode/decode. It is built once per compilation and is
// immutable once Compile (core/irbuild.go) returns a Program.
type StaticContext struct {
	Namespaces        *NamespaceBindings
	Names             *NameTable
	Functions         *FunctionRegistry
	DefaultElementNS  string
	DefaultFunctionNS string
	DefaultCollation  string
	BaseURI           string
}

func NewStaticContext() *StaticContext {
	sc := &StaticContext{
		Namespaces:        NewNamespaceBindings(nil),
		Names:             NewNameTable(),
		Functions:         NewFunctionRegistry(),
		DefaultFunctionNS: NSFn,
		DefaultCollation:  "http://www.w3.org/2005/xpath-functions/collation/codepoint",
	}
	RegisterStdlib(sc.Functions)
	return sc
}

// FunctionRegistry maps (name, arity) to a descriptor, the stdlib
// binding layer's materialized table.
type FunctionRegistry struct {
	byKey  map[functionKey]*FunctionDescriptor
	byName map[string][]*FunctionDescriptor
}

type functionKey struct {
	uri, local string
	arity      int
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{byKey: make(map[functionKey]*FunctionDescriptor), byName: make(map[string][]*FunctionDescriptor)}
}

func (r *FunctionRegistry) Register(d *FunctionDescriptor) {
	k := functionKey{uri: d.Signature.Name.URI, local: d.Signature.Name.Local, arity: len(d.Signature.Params)}
	r.byKey[k] = d
	nk := d.Signature.Name.URI + "|" + d.Signature.Name.Local
	r.byName[nk] = append(r.byName[nk], d)
	if d.Signature.ContextFirst {
		k0 := functionKey{uri: d.Signature.Name.URI, local: d.Signature.Name.Local, arity: len(d.Signature.Params) - 1}
		r.byKey[k0] = d
	}
}

func (r *FunctionRegistry) Lookup(name Name, arity int) (*FunctionDescriptor, bool) {
	d, ok := r.byKey[functionKey{uri: name.URI, local: name.Local, arity: arity}]
	return d, ok
}

func (r *FunctionRegistry) LookupAnyArity(name Name) []*FunctionDescriptor {
	return r.byName[name.URI+"|"+name.Local]
}

func (r *FunctionRegistry) Functions() []FunctionSignature {
	out := make([]FunctionSignature, 0, len(r.byName))
	for _, ds := range r.byName {
		if len(ds) == 0 {
			continue
		}
		out = append(out, ds[0].Signature)
	}
	return out
}

// DocumentSet owns every parsed document reachable during one dynamic
// evaluation and is the unit of node identity. It carries a stable UUID
// for diagnostics and cross-evaluation map keys.
type DocumentSet struct {
	ID        uuid.UUID
	Documents []Node
}

func NewDocumentSet() *DocumentSet {
	return &DocumentSet{ID: uuid.New()}
}

func (ds *DocumentSet) Add(doc Node) {
	ds.Documents = append(ds.Documents, doc)
}

// Collation is a comparator over strings, resolved by URI through
// internal/collation and installed into the dynamic context.
type Collation interface {
	Compare(a, b string) int
	Equal(a, b string) bool
}

// DynamicContext is per-evaluation state: context item/position/size,
// variable bindings, the document set, collations, and the current
// date-time, consulted by nearly every VM opcode and built-in function.
type DynamicContext struct {
	Static *StaticContext

	ContextItem     Item
	ContextPosition int
	ContextSize     int

	Documents               *DocumentSet
	Now                     time.Time
	ImplicitTimezoneMinutes int

	Collations map[string]Collation

	// Invoke calls a function item with the given arguments, reusing the
	// engine's own call-dispatch logic (named, inline, or partial). It is
	// wired up by NewVM so stdlib functions that take a function item
	// (fn:for-each, fn:filter, fn:fold-left, fn:sort, ...) can call back
	// into the engine without the stdlib package depending on the VM.
	Invoke func(f *FunctionValue, args []Sequence) (Sequence, error)

	Logger Logger

	// Cancel is checked at backward branches and function entry; a
	// non-nil error from Cancel aborts evaluation with ErrEngineCancelled.
	Cancel func() error
	ctx    context.Context
}

func NewDynamicContext(static *StaticContext, docs *DocumentSet) *DynamicContext {
	return &DynamicContext{
		Static:     static,
		Documents:  docs,
		Now:        time.Now().UTC(),
		Collations: make(map[string]Collation),
		ctx:        context.Background(),
	}
}

func (dc *DynamicContext) WithGoContext(ctx context.Context) *DynamicContext {
	clone := *dc
	clone.ctx = ctx
	clone.Cancel = func() error {
		select {
		case <-ctx.Done():
			return NewError(ErrEngineCancelled, "evaluation cancelled", Span{})
		default:
			return nil
		}
	}
	return &clone
}

func (dc *DynamicContext) CheckCancelled() error {
	if dc.Cancel == nil {
		return nil
	}
	return dc.Cancel()
}

// Logger is the narrow logging surface the VM and stdlib need; it is
// implemented by internal/logging's zerolog wrapper so core never
// imports zerolog directly and stays testable without a real sink.
type Logger interface {
	Debug(msg string, kv ...any)
	Trace(msg string, kv ...any)
	Warn(msg string, kv ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Trace(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// NopLogger is the default logger when none is installed, so core never
// panics on a nil Logger.
var NopLogger Logger = nopLogger{}

func (dc *DynamicContext) log() Logger {
	if dc.Logger == nil {
		return NopLogger
	}
	return dc.Logger
}
