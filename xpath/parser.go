package xpath

import "fmt"

// Parser consumes a flat token slice (produced by Lexer.Tokenize) with
// simple lookahead; XPath's grammar is almost entirely LL(1) once axis
// steps and name tests are disambiguated by peeking at "::" and "(",
// which parseStepExpr below does explicitly rather than backtracking.
type Parser struct {
	toks []Token
	pos  int
}

// Parse tokenizes and parses a complete XPath expression. The returned
// Expr is exactly one ExprSingle or, for a comma-separated list, the
// enclosing SequenceExpr.
func Parse(src string) (Expr, error) {
	lex := NewLexer(src)
	toks, err := lex.Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input %q", p.cur().Text)
	}
	return e, nil
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) errorf(format string, args ...any) error {
	return fmt.Errorf("xpath: at offset %d: %s", p.cur().Start, fmt.Sprintf(format, args...))
}

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// isPunct/isKeyword peek without consuming; XPath reserves no keywords
// globally; a TokName matching a keyword spelling is a keyword only in
// productions that expect one, so callers (not the lexer) decide.
func (p *Parser) isPunct(s string) bool {
	t := p.cur()
	return t.Kind == TokPunct && t.Text == s
}

func (p *Parser) isKeyword(s string) bool {
	t := p.cur()
	return t.Kind == TokName && t.Text == s
}

func (p *Parser) expectPunct(s string) error {
	if s == "$" && p.cur().Kind == TokVarName {
		// The lexer emits "$name" as one TokVarName; a binding site
		// expects "$" then a name, so leave the name as a TokName for
		// the parseEQName call that follows.
		p.toks[p.pos].Kind = TokName
		return nil
	}
	if !p.isPunct(s) {
		return p.errorf("expected %q, got %q", s, p.cur().Text)
	}
	p.advance()
	return nil
}

func (p *Parser) expectKeyword(s string) error {
	if !p.isKeyword(s) {
		return p.errorf("expected keyword %q, got %q", s, p.cur().Text)
	}
	p.advance()
	return nil
}

func startPos(toks []Token, i int) int { return toks[i].Start }

// --- Expr / ExprSingle ---

func (p *Parser) parseExpr() (Expr, error) {
	start := p.cur().Start
	first, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if !p.isPunct(",") {
		return first, nil
	}
	items := []Expr{first}
	for p.isPunct(",") {
		p.advance()
		e, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return &SequenceExpr{base: base{Pos{start, p.cur().Start}}, Items: items}, nil
}

func (p *Parser) parseExprSingle() (Expr, error) {
	switch {
	case p.isKeyword("for"):
		return p.parseForExpr()
	case p.isKeyword("let"):
		return p.parseLetExpr()
	case p.isKeyword("some"), p.isKeyword("every"):
		return p.parseQuantifiedExpr()
	case p.isKeyword("if") && p.peekIsParen():
		return p.parseIfExpr()
	default:
		return p.parseOrExpr()
	}
}

// peekIsParen reports whether the token after the current one is "(",
// used to disambiguate the "if" keyword from a function/variable named
// "if" used as an ordinary identifier.
func (p *Parser) peekIsParen() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	n := p.toks[p.pos+1]
	return n.Kind == TokPunct && n.Text == "("
}

func (p *Parser) parseForExpr() (Expr, error) {
	start := p.cur().Start
	p.advance() // "for"
	var bindings []ForBinding
	for {
		if err := p.expectPunct("$"); err != nil {
			return nil, err
		}
		name, err := p.parseEQName()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("in"); err != nil {
			return nil, err
		}
		val, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ForBinding{Var: name.Local, In: val})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectKeyword("return"); err != nil {
		return nil, err
	}
	ret, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return &ForExpr{base: base{Pos{start, p.cur().Start}}, Bindings: bindings, Return: ret}, nil
}

func (p *Parser) parseLetExpr() (Expr, error) {
	start := p.cur().Start
	p.advance() // "let"
	var bindings []LetBinding
	for {
		if err := p.expectPunct("$"); err != nil {
			return nil, err
		}
		name, err := p.parseEQName()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":="); err != nil {
			return nil, err
		}
		val, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, LetBinding{Var: name.Local, Value: val})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectKeyword("return"); err != nil {
		return nil, err
	}
	ret, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return &LetExpr{base: base{Pos{start, p.cur().Start}}, Bindings: bindings, Return: ret}, nil
}

func (p *Parser) parseQuantifiedExpr() (Expr, error) {
	start := p.cur().Start
	kind := QuantSome
	if p.isKeyword("every") {
		kind = QuantEvery
	}
	p.advance()
	var bindings []ForBinding
	for {
		if err := p.expectPunct("$"); err != nil {
			return nil, err
		}
		name, err := p.parseEQName()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("in"); err != nil {
			return nil, err
		}
		val, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ForBinding{Var: name.Local, In: val})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectKeyword("satisfies"); err != nil {
		return nil, err
	}
	test, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return &QuantifiedExpr{base: base{Pos{start, p.cur().Start}}, Kind: kind, Bindings: bindings, Test: test}, nil
}

func (p *Parser) parseIfExpr() (Expr, error) {
	start := p.cur().Start
	p.advance() // "if"
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	els, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return &IfExpr{base: base{Pos{start, p.cur().Start}}, Cond: cond, Then: then, Else: els}, nil
}

// --- Binary operator precedence chain ---

func (p *Parser) parseOrExpr() (Expr, error) {
	return p.parseLeftAssoc([]string{"or"}, p.parseAndExpr)
}

func (p *Parser) parseAndExpr() (Expr, error) {
	return p.parseLeftAssoc([]string{"and"}, p.parseComparisonExpr)
}

// parseComparisonExpr is non-associative in the grammar (at most one
// comparison per expression), which is what the spec's disallowal of
// chained "a = b = c" means in practice; parsing it as "optional single
// operator" enforces that directly instead of needing a later check.
func (p *Parser) parseComparisonExpr() (Expr, error) {
	left, err := p.parseStringConcatExpr()
	if err != nil {
		return nil, err
	}
	op, ok := p.matchComparisonOp()
	if !ok {
		return left, nil
	}
	p.advance()
	right, err := p.parseStringConcatExpr()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{base: base{Pos{left.exprPos().Start, right.exprPos().End}}, Op: op, Left: left, Right: right}, nil
}

var generalCmp = map[string]bool{"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}
var valueCmp = map[string]bool{"eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true}
var nodeCmp = map[string]bool{"is": true, "<<": true, ">>": true}

func (p *Parser) matchComparisonOp() (string, bool) {
	t := p.cur()
	if t.Kind == TokPunct && (generalCmp[t.Text] || nodeCmp[t.Text]) {
		return t.Text, true
	}
	if t.Kind == TokName && valueCmp[t.Text] {
		return t.Text, true
	}
	if t.Kind == TokName && t.Text == "is" {
		return "is", true
	}
	return "", false
}

func (p *Parser) parseStringConcatExpr() (Expr, error) {
	return p.parseLeftAssoc([]string{"||"}, p.parseRangeExpr)
}

func (p *Parser) parseRangeExpr() (Expr, error) {
	left, err := p.parseAdditiveExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("to") {
		return left, nil
	}
	p.advance()
	right, err := p.parseAdditiveExpr()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{base: base{Pos{left.exprPos().Start, right.exprPos().End}}, Op: "to", Left: left, Right: right}, nil
}

func (p *Parser) parseAdditiveExpr() (Expr, error) {
	return p.parseLeftAssoc([]string{"+", "-"}, p.parseMultiplicativeExpr)
}

func (p *Parser) parseMultiplicativeExpr() (Expr, error) {
	return p.parseLeftAssocKw([]string{"*"}, []string{"div", "idiv", "mod"}, p.parseUnionExpr)
}

func (p *Parser) parseUnionExpr() (Expr, error) {
	return p.parseLeftAssocKw([]string{"|"}, []string{"union"}, p.parseIntersectExceptExpr)
}

func (p *Parser) parseIntersectExceptExpr() (Expr, error) {
	return p.parseLeftAssocKw(nil, []string{"intersect", "except"}, p.parseInstanceofExpr)
}

func (p *Parser) parseInstanceofExpr() (Expr, error) {
	operand, err := p.parseTreatExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("instance") {
		return operand, nil
	}
	p.advance()
	if err := p.expectKeyword("of"); err != nil {
		return nil, err
	}
	st, err := p.parseSequenceType()
	if err != nil {
		return nil, err
	}
	return &InstanceOfExpr{base: base{Pos{operand.exprPos().Start, p.cur().Start}}, Kind: ConvInstanceOf, Operand: operand, Type: st}, nil
}

func (p *Parser) parseTreatExpr() (Expr, error) {
	operand, err := p.parseCastableExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("treat") {
		return operand, nil
	}
	p.advance()
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	st, err := p.parseSequenceType()
	if err != nil {
		return nil, err
	}
	return &InstanceOfExpr{base: base{Pos{operand.exprPos().Start, p.cur().Start}}, Kind: ConvTreatAs, Operand: operand, Type: st}, nil
}

func (p *Parser) parseCastableExpr() (Expr, error) {
	operand, err := p.parseCastExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("castable") {
		return operand, nil
	}
	p.advance()
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	st, err := p.parseSingleType()
	if err != nil {
		return nil, err
	}
	return &InstanceOfExpr{base: base{Pos{operand.exprPos().Start, p.cur().Start}}, Kind: ConvCastableAs, Operand: operand, Single: st, IsSingle: true}, nil
}

func (p *Parser) parseCastExpr() (Expr, error) {
	operand, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("cast") {
		return operand, nil
	}
	p.advance()
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	st, err := p.parseSingleType()
	if err != nil {
		return nil, err
	}
	return &InstanceOfExpr{base: base{Pos{operand.exprPos().Start, p.cur().Start}}, Kind: ConvCastAs, Operand: operand, Single: st, IsSingle: true}, nil
}

func (p *Parser) parseUnaryExpr() (Expr, error) {
	start := p.cur().Start
	if p.isPunct("-") || p.isPunct("+") {
		op := p.advance().Text
		operand, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{base: base{Pos{start, operand.exprPos().End}}, Op: op, Operand: operand}, nil
	}
	return p.parseValueExpr()
}

// parseLeftAssoc folds a punctuation-operator chain left-associatively.
func (p *Parser) parseLeftAssoc(ops []string, next func() (Expr, error)) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, op := range ops {
			if p.isPunct(op) || p.isKeyword(op) {
				matched = op
				break
			}
		}
		if matched == "" {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{base: base{Pos{left.exprPos().Start, right.exprPos().End}}, Op: matched, Left: left, Right: right}
	}
}

func (p *Parser) parseLeftAssocKw(punctOps, kwOps []string, next func() (Expr, error)) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, op := range punctOps {
			if p.isPunct(op) {
				matched = op
				break
			}
		}
		if matched == "" {
			for _, op := range kwOps {
				if p.isKeyword(op) {
					matched = op
					break
				}
			}
		}
		if matched == "" {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{base: base{Pos{left.exprPos().Start, right.exprPos().End}}, Op: matched, Left: left, Right: right}
	}
}

// --- Path / Step / Postfix / Primary ---

func (p *Parser) parseValueExpr() (Expr, error) {
	return p.parsePathExpr()
}

func (p *Parser) parsePathExpr() (Expr, error) {
	start := p.cur().Start
	if p.isPunct("//") {
		p.advance()
		rel, err := p.parseRelativePathExpr()
		if err != nil {
			return nil, err
		}
		rp := rel.(*PathExpr)
		rp.Rooted = true
		rp.DoubleSlash[0] = true
		rp.P = Pos{start, p.cur().Start}
		return rp, nil
	}
	if p.isPunct("/") {
		p.advance()
		if p.atPathEnd() {
			return &PathExpr{base: base{Pos{start, p.cur().Start}}, Rooted: true}, nil
		}
		rel, err := p.parseRelativePathExpr()
		if err != nil {
			return nil, err
		}
		rp := rel.(*PathExpr)
		rp.Rooted = true
		rp.P = Pos{start, p.cur().Start}
		return rp, nil
	}
	return p.parseRelativePathExpr()
}

// atPathEnd reports whether the current token cannot start a
// RelativePathExpr, used to recognize the bare "/" (root) expression.
func (p *Parser) atPathEnd() bool {
	t := p.cur()
	switch t.Kind {
	case TokEOF:
		return true
	case TokPunct:
		switch t.Text {
		case ")", "]", ",", "}":
			return true
		}
	}
	return false
}

func (p *Parser) parseRelativePathExpr() (Expr, error) {
	start := p.cur().Start
	first, err := p.parseStepExpr()
	if err != nil {
		return nil, err
	}
	steps := []Expr{first}
	dbl := []bool{false}
	for p.isPunct("/") || p.isPunct("//") {
		isDouble := p.isPunct("//")
		p.advance()
		step, err := p.parseStepExpr()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
		dbl = append(dbl, isDouble)
	}
	if len(steps) == 1 && !dbl[0] {
		// A single non-axis step need not be wrapped; callers that care
		// about PathExpr-ness (none currently) can type-assert, but
		// irbuild.go treats a lone PostfixExpr identically either way.
	}
	return &PathExpr{base: base{Pos{start, p.cur().Start}}, Steps: steps, DoubleSlash: dbl}, nil
}

var axisNames = map[string]Axis{
	"child":              AxisChild,
	"descendant":         AxisDescendant,
	"attribute":          AxisAttribute,
	"self":               AxisSelf,
	"descendant-or-self": AxisDescendantOrSelf,
	"following-sibling":  AxisFollowingSibling,
	"following":          AxisFollowing,
	"namespace":          AxisNamespace,
	"parent":             AxisParent,
	"ancestor":           AxisAncestor,
	"preceding-sibling":  AxisPrecedingSibling,
	"preceding":          AxisPreceding,
	"ancestor-or-self":   AxisAncestorOrSelf,
}

func (p *Parser) parseStepExpr() (Expr, error) {
	start := p.cur().Start

	// Reverse step abbreviation: "..".
	if p.isPunct(".") && p.peekPunct(1, ".") {
		p.advance()
		p.advance()
		return &StepExpr{base: base{Pos{start, p.cur().Start}}, Axis: AxisParent, Test: ItemTestExpr{AnyItem: false, Kind: &KindTestExpr{Kind: KindAnyNode}}}, nil
	}

	// "@" abbreviates attribute::.
	if p.isPunct("@") {
		p.advance()
		test, err := p.parseNodeTest()
		if err != nil {
			return nil, err
		}
		preds, err := p.parsePredicateList()
		if err != nil {
			return nil, err
		}
		return &StepExpr{base: base{Pos{start, p.cur().Start}}, Axis: AxisAttribute, Test: test, Predicates: preds}, nil
	}

	// Full "axis::nodetest".
	if p.cur().Kind == TokName {
		if axis, ok := axisNames[p.cur().Text]; ok && p.peekPunct(1, "::") {
			p.advance()
			p.advance()
			test, err := p.parseNodeTest()
			if err != nil {
				return nil, err
			}
			preds, err := p.parsePredicateList()
			if err != nil {
				return nil, err
			}
			return &StepExpr{base: base{Pos{start, p.cur().Start}}, Axis: axis, Test: test, Predicates: preds}, nil
		}
	}

	// AbbrevForwardStep with no axis ("child::" implied), but this may
	// also be an ordinary PostfixExpr (function call, literal, "."). A
	// node test is only valid as a step if it's a wildcard, an NCName/
	// QName not followed by "(" (which would make it a function call),
	// or a KindTest keyword followed by "(".
	if p.isPunct(".") {
		p.advance()
		preds, err := p.parsePredicateList()
		if err != nil {
			return nil, err
		}
		return &StepExpr{base: base{Pos{start, p.cur().Start}}, Axis: AxisSelf, Test: ItemTestExpr{Kind: &KindTestExpr{Kind: KindAnyNode}}, Predicates: preds}, nil
	}

	if p.looksLikeNodeTest() {
		test, err := p.parseNodeTest()
		if err != nil {
			return nil, err
		}
		preds, err := p.parsePredicateList()
		if err != nil {
			return nil, err
		}
		return &StepExpr{base: base{Pos{start, p.cur().Start}}, Axis: AxisChild, Test: test, Predicates: preds}, nil
	}

	return p.parsePostfixExpr()
}

var kindTestNames = map[string]NodeTestKind{
	"node": KindAnyNode, "text": KindText, "comment": KindComment,
	"processing-instruction": KindProcessingInstruction, "document-node": KindDocument,
	"element": KindElement, "attribute": KindAttribute, "namespace-node": KindNamespace,
}

// looksLikeNodeTest decides, without consuming input, whether the
// upcoming tokens form a bare (axis-less, non-"@") node test rather
// than a PrimaryExpr. A kind-test keyword is only a node test if
// followed by "("; a bare name or "*" is a node test unless followed by
// "(" (a function call) or "#" (a named function reference), and
// "map"/"array" followed by "{" start a constructor, not a node test.
func (p *Parser) looksLikeNodeTest() bool {
	t := p.cur()
	if t.Kind == TokPunct && t.Text == "*" {
		return true
	}
	if t.Kind != TokName {
		return false
	}
	if (t.Text == "map" || t.Text == "array") && p.peekPunct(1, "{") {
		return false
	}
	if _, ok := kindTestNames[t.Text]; ok {
		return p.peekPunct(1, "(")
	}
	if p.peekPunct(1, "(") || p.peekPunct(1, "#") {
		return false
	}
	return true
}

func (p *Parser) peekPunct(ahead int, s string) bool {
	i := p.pos + ahead
	if i >= len(p.toks) {
		return false
	}
	t := p.toks[i]
	return t.Kind == TokPunct && t.Text == s
}

func (p *Parser) parseNodeTest() (ItemTestExpr, error) {
	t := p.cur()
	if t.Kind == TokPunct && t.Text == "*" {
		p.advance()
		return ItemTestExpr{Kind: &KindTestExpr{Kind: KindAnyNode}, AtomicName: nil}, nil
		// A bare "*" name test (any element/attribute) is represented the
		// same as "node()" here; irbuild.go treats a Kind test with
		// Name==nil and Kind matching the step's implied principal node
		// kind as a wildcard name test, since NodeKindWant/TestName on
		// core's OpAxisStep instruction already distinguish "any node
		// kind" from "any name of the step's principal kind".
	}
	if t.Kind == TokName {
		if kind, ok := kindTestNames[t.Text]; ok && p.peekPunct(1, "(") {
			p.advance()
			p.advance() // "("
			var name *QName
			if kind == KindElement || kind == KindAttribute {
				if !p.isPunct(")") {
					q, err := p.parseEQNameOrStar()
					if err != nil {
						return ItemTestExpr{}, err
					}
					name = &q
					if p.isPunct(",") {
						p.advance()
						if _, err := p.parseEQName(); err != nil {
							return ItemTestExpr{}, err
						}
						if p.isPunct("?") {
							p.advance()
						}
					}
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return ItemTestExpr{}, err
			}
			return ItemTestExpr{Kind: &KindTestExpr{Kind: kind, Name: name}}, nil
		}
	}
	// NameTest: QName or "prefix:*" or "*".
	name, err := p.parseEQNameOrStar()
	if err != nil {
		return ItemTestExpr{}, err
	}
	return ItemTestExpr{AtomicName: &name}, nil
}

func (p *Parser) parsePredicateList() ([]Expr, error) {
	var preds []Expr
	for p.isPunct("[") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		preds = append(preds, e)
	}
	return preds, nil
}

func (p *Parser) parsePostfixExpr() (Expr, error) {
	start := p.cur().Start
	prim, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	expr := prim
	for {
		switch {
		case p.isPunct("["):
			p.advance()
			pred, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			// core/irbuild.go lowers this to a FilterAtom over the
			// already-let-bound sequence, rather than an axis traversal
			// from a document node.
			expr = &filterExpr{base: base{Pos{start, p.cur().Start}}, Source: prim, Predicate: pred}
			prim = expr
		case p.isPunct("("):
			args, err := p.parseArgumentList()
			if err != nil {
				return nil, err
			}
			expr = &ArgumentListExpr{base: base{Pos{start, p.cur().Start}}, Target: prim, Args: args}
			prim = expr
		case p.isPunct("?") || p.isPunct("?."):
			expr, err = p.parseLookup(prim, start)
			if err != nil {
				return nil, err
			}
			prim = expr
		default:
			return expr, nil
		}
	}
}

// filterExpr is "PrimaryExpr '[' Expr ']'" (a FilterExpr in the
// grammar): filter the primary's sequence by a predicate without any
// axis navigation involved, over a sequence of arbitrary items rather
// than only nodes (e.g. "(1 to 10)[. mod 2 = 0]"). It is a
// package-private AST node; core/irbuild.go reaches its fields through
// FilterParts below rather than a type switch, since it cannot name an
// unexported type from outside this package.
type filterExpr struct {
	base
	Source    Expr
	Predicate Expr
}

// FilterParts reports whether e is a FilterExpr and, if so, its source
// and predicate sub-expressions.
func FilterParts(e Expr) (source, predicate Expr, ok bool) {
	fe, ok := e.(*filterExpr)
	if !ok {
		return nil, nil, false
	}
	return fe.Source, fe.Predicate, true
}

func (p *Parser) parseLookup(target Expr, start int) (Expr, error) {
	p.advance() // "?" (lexed as "?" or "?.")
	if p.isPunct("*") {
		p.advance()
		return &LookupExpr{base: base{Pos{start, p.cur().Start}}, Target: target, Star: true}, nil
	}
	if p.cur().Kind == TokNumber {
		lit := &Literal{base: base{Pos{p.cur().Start, p.cur().End}}, Number: p.cur().Text}
		p.advance()
		return &LookupExpr{base: base{Pos{start, p.cur().Start}}, Target: target, Key: lit}, nil
	}
	if p.cur().Kind == TokName {
		q, err := p.parseEQName()
		if err != nil {
			return nil, err
		}
		lit := &Literal{base: base{Pos{start, p.cur().Start}}, IsString: true, String: q.Local}
		return &LookupExpr{base: base{Pos{start, p.cur().Start}}, Target: target, Key: lit}, nil
	}
	if p.isPunct("(") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &LookupExpr{base: base{Pos{start, p.cur().Start}}, Target: target, Key: e}, nil
	}
	return nil, p.errorf("expected lookup key after '?'")
}

func (p *Parser) parseArgumentList() ([]PartialArg, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []PartialArg
	if p.isPunct(")") {
		p.advance()
		return args, nil
	}
	for {
		if p.isPunct("?") && (p.peekPunct(1, ",") || p.peekPunct(1, ")")) {
			p.advance()
			args = append(args, PartialArg{IsHole: true})
		} else {
			e, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			args = append(args, PartialArg{Expr: e})
		}
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimaryExpr() (Expr, error) {
	start := p.cur().Start
	t := p.cur()
	switch {
	case t.Kind == TokString:
		p.advance()
		return &Literal{base: base{Pos{start, p.cur().Start}}, IsString: true, String: t.Text}, nil
	case t.Kind == TokNumber:
		p.advance()
		return &Literal{base: base{Pos{start, p.cur().Start}}, Number: t.Text}, nil
	case t.Kind == TokVarName:
		p.advance()
		name, err := parseQNameString(t.Text)
		if err != nil {
			return nil, err
		}
		return &VarRef{base: base{Pos{start, p.cur().Start}}, Name: name}, nil
	case p.isPunct("."):
		p.advance()
		return &ContextItemExpr{base: base{Pos{start, p.cur().Start}}}, nil
	case p.isPunct("("):
		p.advance()
		if p.isPunct(")") {
			p.advance()
			return &ParenExpr{base: base{Pos{start, p.cur().Start}}}, nil
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &ParenExpr{base: base{Pos{start, p.cur().Start}}, Inner: inner}, nil
	case p.isKeyword("function") && p.peekPunct(1, "("):
		return p.parseInlineFunctionExpr()
	case p.isKeyword("map") && p.peekPunct(1, "{"):
		return p.parseMapConstructor()
	case p.isKeyword("array") && p.peekPunct(1, "{"):
		return p.parseArrayConstructorBraced()
	case p.isPunct("["):
		return p.parseArrayConstructorSquare()
	case t.Kind == TokName:
		return p.parseFunctionCallOrNamedRef()
	}
	return nil, p.errorf("unexpected token %q in primary expression", t.Text)
}

func (p *Parser) parseFunctionCallOrNamedRef() (Expr, error) {
	start := p.cur().Start
	name, err := p.parseEQName()
	if err != nil {
		return nil, err
	}
	if p.isPunct("#") {
		p.advance()
		if p.cur().Kind != TokNumber {
			return nil, p.errorf("expected arity after '#'")
		}
		arity := parseIntLiteral(p.cur().Text)
		p.advance()
		return &NamedFunctionRefExpr{base: base{Pos{start, p.cur().Start}}, Name: name, Arity: arity}, nil
	}
	if p.isPunct("(") {
		args, err := p.parseArgumentList()
		if err != nil {
			return nil, err
		}
		exprs := make([]Expr, len(args))
		for i, a := range args {
			if a.IsHole {
				return nil, p.errorf("function call arguments may not contain '?' holes")
			}
			exprs[i] = a.Expr
		}
		return &FunctionCallExpr{base: base{Pos{start, p.cur().Start}}, Name: name, Args: exprs}, nil
	}
	return nil, p.errorf("unexpected bare name %q", name.Local)
}

func parseIntLiteral(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func (p *Parser) parseInlineFunctionExpr() (Expr, error) {
	start := p.cur().Start
	p.advance() // "function"
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []InlineFunctionParam
	if !p.isPunct(")") {
		for {
			if err := p.expectPunct("$"); err != nil {
				return nil, err
			}
			name, err := p.parseEQName()
			if err != nil {
				return nil, err
			}
			param := InlineFunctionParam{Name: name.Local}
			if p.isPunct("as") || p.isKeyword("as") {
				p.advance()
				st, err := p.parseSequenceType()
				if err != nil {
					return nil, err
				}
				param.Type = &st
			}
			params = append(params, param)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	var ret *SequenceTypeNode
	if p.isKeyword("as") {
		p.advance()
		st, err := p.parseSequenceType()
		if err != nil {
			return nil, err
		}
		ret = &st
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var body Expr
	if !p.isPunct("}") {
		b, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body = b
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return &InlineFunctionExpr{base: base{Pos{start, p.cur().Start}}, Params: params, Return: ret, Body: body}, nil
}

func (p *Parser) parseMapConstructor() (Expr, error) {
	start := p.cur().Start
	p.advance() // "map"
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var entries []MapEntry
	if !p.isPunct("}") {
		for {
			k, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			v, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: k, Value: v})
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return &MapConstructorExpr{base: base{Pos{start, p.cur().Start}}, Entries: entries}, nil
}

func (p *Parser) parseArrayConstructorBraced() (Expr, error) {
	start := p.cur().Start
	p.advance() // "array"
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var members []Expr
	if !p.isPunct("}") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if seq, ok := e.(*SequenceExpr); ok {
			members = seq.Items
		} else {
			members = []Expr{e}
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return &ArrayConstructorExpr{base: base{Pos{start, p.cur().Start}}, Members: members}, nil
}

func (p *Parser) parseArrayConstructorSquare() (Expr, error) {
	start := p.cur().Start
	p.advance() // "["
	var members []Expr
	if !p.isPunct("]") {
		for {
			e, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			members = append(members, e)
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return &ArrayConstructorExpr{base: base{Pos{start, p.cur().Start}}, SquareForm: true, Members: members}, nil
}

// --- Names and types ---

func (p *Parser) parseEQName() (QName, error) {
	t := p.cur()
	if t.Kind != TokName {
		return QName{}, p.errorf("expected name, got %q", t.Text)
	}
	p.advance()
	return parseQNameString(t.Text)
}

func (p *Parser) parseEQNameOrStar() (QName, error) {
	t := p.cur()
	if t.Kind == TokPunct && t.Text == "*" {
		p.advance()
		return QName{IsStar: true, StarOnly: true}, nil
	}
	if t.Kind != TokName {
		return QName{}, p.errorf("expected name or '*', got %q", t.Text)
	}
	p.advance()
	if len(t.Text) > 2 && t.Text[len(t.Text)-1] == '*' {
		// "prefix:*" was lexed as one TokName by lexQName's ":"-extension
		// rule only when the char after ':' is a name-start char or '*';
		// split it back apart here.
		for i := 0; i < len(t.Text); i++ {
			if t.Text[i] == ':' {
				return QName{Prefix: t.Text[:i], IsStar: true}, nil
			}
		}
	}
	return parseQNameString(t.Text)
}

func parseQNameString(s string) (QName, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return QName{Prefix: s[:i], Local: s[i+1:]}, nil
		}
	}
	return QName{Local: s}, nil
}

func (p *Parser) parseSingleType() (SingleType, error) {
	name, err := p.parseEQName()
	if err != nil {
		return SingleType{}, err
	}
	st := SingleType{Name: name}
	if p.isPunct("?") {
		p.advance()
		st.Optional = true
	}
	return st, nil
}

func (p *Parser) parseSequenceType() (SequenceTypeNode, error) {
	if p.isKeyword("empty-sequence") && p.peekPunct(1, "(") {
		p.advance()
		p.advance()
		if err := p.expectPunct(")"); err != nil {
			return SequenceTypeNode{}, err
		}
		return SequenceTypeNode{EmptySequence: true}, nil
	}
	it, err := p.parseItemTest()
	if err != nil {
		return SequenceTypeNode{}, err
	}
	st := SequenceTypeNode{ItemTest: it}
	switch {
	case p.isPunct("?"):
		p.advance()
		st.Occurrence = OccurOpt
	case p.isPunct("*"):
		p.advance()
		st.Occurrence = OccurStar
	case p.isPunct("+"):
		p.advance()
		st.Occurrence = OccurPlus
	}
	return st, nil
}

func (p *Parser) parseItemTest() (ItemTestExpr, error) {
	if p.isKeyword("item") && p.peekPunct(1, "(") {
		p.advance()
		p.advance()
		if err := p.expectPunct(")"); err != nil {
			return ItemTestExpr{}, err
		}
		return ItemTestExpr{AnyItem: true}, nil
	}
	if p.cur().Kind == TokName {
		if _, ok := kindTestNames[p.cur().Text]; ok && p.peekPunct(1, "(") {
			kt, err := p.parseNodeTest()
			if err != nil {
				return ItemTestExpr{}, err
			}
			return kt, nil
		}
	}
	name, err := p.parseEQName()
	if err != nil {
		return ItemTestExpr{}, err
	}
	return ItemTestExpr{AtomicName: &name}, nil
}
