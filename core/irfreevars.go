package core

// freeVarsOf returns, in first-reference order with duplicates removed,
// every variable name referenced within n that is not bound by a Let,
// For, quantified binding, try/catch error variable, or inline-function
// parameter inside n itself. It is used by core/irbuild.go to populate
// InlineFuncAtom.FreeVars, and by core/lower.go's lowerPathStep and
// lowerFilter to work out which outer-scope slots a predicate's
// compiled function needs copied into its own frame.
func freeVarsOf(n IRNode) []string {
	var order []string
	seen := map[string]bool{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	var walk func(n IRNode)
	var walkAtom func(a Atom)

	remove := func(names []string, bound string) []string {
		out := names[:0:0]
		for _, n := range names {
			if n != bound {
				out = append(out, n)
			}
		}
		return out
	}

	collect := func(n IRNode) []string {
		sub := freeVarsOf(n)
		for _, v := range sub {
			add(v)
		}
		return sub
	}

	walk = func(n IRNode) {
		switch x := n.(type) {
		case *Let:
			walkAtom(x.Bind)
			collect(x.Body)
			// collect already added Body's free vars to the outer set
			// unconditionally; remove the one this Let binds.
			if seen[x.Var] {
				delete(seen, x.Var)
				filtered := remove(order, x.Var)
				order = filtered
			}
		case *Return:
			walkAtom(x.Value)
		}
	}

	walkAtom = func(a Atom) {
		switch x := a.(type) {
		case *ConstAtom:
		case *VarRefAtom:
			add(x.Name)
		case *PathStepAtom:
			add(x.Context)
			for _, p := range x.Predicates {
				// A predicate's own free-variable analysis is done
				// independently by lowerPathStep; from the perspective of
				// the enclosing expression, the predicate's references to
				// "." are locally resolved and must not leak out, but
				// references to anything else do.
				sub := freeVarsOf(p)
				for _, v := range sub {
					if v != "." {
						add(v)
					}
				}
			}
		case *BinOpAtom:
			add(x.Left)
			add(x.Right)
		case *UnaryOpAtom:
			add(x.Operand)
		case *IfAtom:
			add(x.Cond)
			collect(x.Then)
			collect(x.Else)
		case *ForAtom:
			add(x.Seq)
			sub := freeVarsOf(x.Body)
			for _, v := range sub {
				if v != x.Var {
					add(v)
				}
			}
		case *QuantifiedAtom:
			add(x.Seq)
			sub := freeVarsOf(x.Test)
			for _, v := range sub {
				if v != x.Var {
					add(v)
				}
			}
		case *ConvertAtom:
			add(x.Operand)
		case *CallAtom:
			for _, arg := range x.Args {
				add(arg)
			}
		case *DynamicCallAtom:
			add(x.Func)
			for _, arg := range x.Args {
				add(arg)
			}
		case *PartialApplyAtom:
			add(x.Func)
			for _, arg := range x.Args {
				if arg != nil {
					add(*arg)
				}
			}
		case *InlineFuncAtom:
			sub := freeVarsOf(x.Body)
			params := map[string]bool{}
			for _, p := range x.Params {
				params[p] = true
			}
			var fv []string
			for _, v := range sub {
				if !params[v] {
					fv = append(fv, v)
					add(v)
				}
			}
			x.FreeVars = fv
		case *SequenceConstructAtom:
			for _, it := range x.Items {
				add(it)
			}
		case *MapConstructAtom:
			for _, k := range x.Keys {
				add(k)
			}
			for _, v := range x.Values {
				add(v)
			}
		case *ArrayConstructAtom:
			for _, m := range x.Members {
				add(m)
			}
		case *MapLookupAtom:
			add(x.Map)
			add(x.Key)
		case *ArrayLookupAtom:
			add(x.Array)
			add(x.Index)
		case *FilterAtom:
			add(x.Source)
			sub := freeVarsOf(x.Predicate)
			for _, v := range sub {
				if v != "." {
					add(v)
				}
			}
		case *TryCatchAtom:
			collect(x.Body)
			for _, c := range x.Catches {
				sub := freeVarsOf(c.Handler)
				for _, v := range sub {
					if v != c.ErrVar {
						add(v)
					}
				}
			}
		}
	}

	walk(n)
	return order
}
