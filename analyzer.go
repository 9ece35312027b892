// analyzer.go — lexical scope construction and name resolution.
//
// The analyzer walks a parsed statement sequence once, building a scope tree
// and resolving every identifier to a binding. Scopes live in an arena owned
// by the Analyzer and refer to their parent by index, so there are no owning
// back-pointers. Captured bindings ("cells") live in a second arena keyed by
// stable id; a scope stores cell ids, never shared pointers.
//
// Scope policy: only function definitions open scopes. Blocks and loops bind
// into the scope they appear in. A free variable reference resolving into an
// enclosing function's scope promotes the binding to a cell (it must outlive
// that function's activation once the inner function runs later); a
// reference resolving to the unit's root scope stays a plain non-owning
// "outer" reference, since the root scope lives as long as the unit.
//
// Calls may legally precede the definition of their target (forward
// declaration, mutual recursion), so a call to an unbound name is queued
// rather than rejected; the queue is reconciled once the whole unit has been
// walked. All analysis findings are collected, never fail-fast, so a single
// pass can report several independent problems.
//
// An Analyzer instance performs one analysis over one unit; it is not
// reentrant and not safe for concurrent use.
package kslang

import "fmt"

// ScopeID indexes the Analyzer's scope arena.
type ScopeID int

// CellID indexes the Analyzer's cell arena.
type CellID int

// NoScope marks the absence of a scope (root's parent, extern bodies).
const NoScope ScopeID = -1

// VarInfo is a variable binding: where it was defined and where it is used.
type VarInfo struct {
	Name     string
	DefSpan  CodeSpan
	UseSpans []CodeSpan
}

// FnInfo is a function binding. Vararg bindings (extern declarations) accept
// any argument count. Scope is the function's body scope, NoScope for
// externs.
type FnInfo struct {
	Name     string
	DefSpan  CodeSpan
	UseSpans []CodeSpan

	Params   []string
	ArgsSpan CodeSpan
	IsVararg bool

	Scope ScopeID
}

// Named is the binding union: *VarInfo or *FnInfo.
type Named interface{ namedNode() }

func (*VarInfo) namedNode() {}
func (*FnInfo) namedNode()  {}

// OuterRef is a non-owning link to a binding in an ancestor scope.
type OuterRef struct {
	Scope ScopeID // scope owning the binding
	Name  string
}

// Scope is one node of the scope tree. Within a scope a name appears in at
// most one of the three maps.
type Scope struct {
	Parent ScopeID

	Locals map[string]Named
	Cells  map[string]CellID
	Outers map[string]OuterRef
}

func newScope(parent ScopeID) Scope {
	return Scope{
		Parent: parent,
		Locals: make(map[string]Named),
		Cells:  make(map[string]CellID),
		Outers: make(map[string]OuterRef),
	}
}

// has reports whether the name is bound in this scope, across all three maps.
func (s *Scope) has(name string) bool {
	if _, ok := s.Locals[name]; ok {
		return true
	}
	if _, ok := s.Cells[name]; ok {
		return true
	}
	_, ok := s.Outers[name]
	return ok
}

// UndefFnCall is a call seen before its target was bound.
type UndefFnCall struct {
	Name     string
	UseSpan  CodeSpan
	ArgsNum  int
	ArgsSpan CodeSpan

	scope ScopeID // where the call occurred, for end-of-unit resolution
}

// AnalyzeErrKind classifies analysis findings.
type AnalyzeErrKind int

const (
	ErrDuplicateBinding AnalyzeErrKind = iota
	ErrUndefinedName
	ErrUndefinedFunction
	ErrArityMismatch
	ErrNotCallable
)

// AnalyzeError is one collected finding.
type AnalyzeError struct {
	Kind AnalyzeErrKind
	Name string
	Span CodeSpan

	PrevSpan CodeSpan // ErrDuplicateBinding: the earlier definition
	Got      int      // ErrArityMismatch
	Want     int      // ErrArityMismatch
}

func (e *AnalyzeError) Error() string {
	switch e.Kind {
	case ErrDuplicateBinding:
		return fmt.Sprintf("duplicate binding %q at %s (first bound at %s)", e.Name, e.Span, e.PrevSpan)
	case ErrUndefinedName:
		return fmt.Sprintf("undefined name %q at %s", e.Name, e.Span)
	case ErrUndefinedFunction:
		return fmt.Sprintf("call to undefined function %q at %s", e.Name, e.Span)
	case ErrArityMismatch:
		return fmt.Sprintf("%q called with %d argument(s), declared with %d at %s", e.Name, e.Got, e.Want, e.Span)
	case ErrNotCallable:
		return fmt.Sprintf("%q is not a function at %s", e.Name, e.Span)
	}
	return fmt.Sprintf("analysis error %d", int(e.Kind))
}

// Analyzer resolves one unit. Create with NewAnalyzer, run Analyze once,
// then query the scope tree.
type Analyzer struct {
	reg    *SourceRegistry
	scopes []Scope
	cells  []Named
	undef  []UndefFnCall
	errs   []*AnalyzeError
}

// NewAnalyzer returns an analyzer resolving names against reg (identifier
// names are slices of registered source text).
func NewAnalyzer(reg *SourceRegistry) *Analyzer {
	a := &Analyzer{reg: reg}
	a.scopes = append(a.scopes, newScope(NoScope)) // root
	return a
}

// Root returns the unit scope's id (always 0).
func (a *Analyzer) Root() ScopeID { return 0 }

// Scope returns the scope with the given id.
func (a *Analyzer) Scope(id ScopeID) *Scope { return &a.scopes[id] }

// NumScopes returns the size of the scope arena.
func (a *Analyzer) NumScopes() int { return len(a.scopes) }

// Cell returns the shared binding with the given id.
func (a *Analyzer) Cell(id CellID) Named { return a.cells[id] }

// NumCells returns the size of the cell arena.
func (a *Analyzer) NumCells() int { return len(a.cells) }

// Errors returns all findings collected so far, in walk order.
func (a *Analyzer) Errors() []*AnalyzeError { return a.errs }

// Analyze walks one parsed unit, builds the scope tree and resolves every
// name, then reconciles queued forward calls. It returns the collected
// findings (also available via Errors).
func (a *Analyzer) Analyze(stmts []Stmt) []*AnalyzeError {
	for _, s := range stmts {
		a.stmt(a.Root(), s)
	}
	a.reconcile()
	return a.errs
}

func (a *Analyzer) name(id *Ident) string { return a.reg.Text(id.Span) }

func (a *Analyzer) report(e *AnalyzeError) { a.errs = append(a.errs, e) }

// ─── walking ─────────────────────────────────────────────────────────────────

func (a *Analyzer) stmt(sc ScopeID, s Stmt) {
	switch s := s.(type) {
	case *EmptyStmt, *BreakStmt, *ContinueStmt:
		// no names involved
	case *ExprStmt:
		a.expr(sc, s.X)
	case *ReturnStmt:
		a.expr(sc, s.X)
	case *AssignStmt:
		a.expr(sc, s.Right)
		a.bindVar(sc, s.Left)
	case *ForStmt:
		a.forLoop(sc, s.Var, s.Iter, s.Body)
	case *DefStmt:
		a.def(sc, s)
	case *ExternStmt:
		a.extern(sc, s)
	}
}

func (a *Analyzer) expr(sc ScopeID, e Expr) {
	switch e := e.(type) {
	case *Ident:
		a.useVar(sc, e)
	case *Ellipsis, *Lit:
		// no names involved
	case *Paren:
		a.expr(sc, e.Inner)
	case *Block:
		for _, s := range e.Stmts {
			a.stmt(sc, s)
		}
	case *Call:
		a.call(sc, e)
	case *UnOp:
		a.expr(sc, e.Arg)
	case *BinOp:
		a.expr(sc, e.Left)
		a.expr(sc, e.Right)
	case *IfExpr:
		for _, arm := range e.Arms {
			a.expr(sc, arm.Cond)
			a.expr(sc, arm.Then)
		}
		if e.Else != nil {
			a.expr(sc, e.Else.Expr)
		}
	case *ForExpr:
		a.forLoop(sc, e.Var, e.Iter, e.Body)
	}
}

// forLoop binds the loop variable into the enclosing scope (loops do not
// open scopes) and walks the iterable and body.
func (a *Analyzer) forLoop(sc ScopeID, loopVar *Ident, iter, body Expr) {
	a.expr(sc, iter)
	a.bindVar(sc, loopVar)
	a.expr(sc, body)
}

// bindVar binds (or re-binds) a variable name in sc. Assigning to a name the
// scope already holds as a variable is an update and records a use; any
// other collision is a duplicate binding.
func (a *Analyzer) bindVar(sc ScopeID, id *Ident) {
	name := a.name(id)
	scope := &a.scopes[sc]

	if prev, ok := scope.Locals[name]; ok {
		if v, ok := prev.(*VarInfo); ok {
			v.UseSpans = append(v.UseSpans, id.Span)
			return
		}
		a.report(&AnalyzeError{
			Kind: ErrDuplicateBinding, Name: name, Span: id.Span,
			PrevSpan: prev.(*FnInfo).DefSpan,
		})
		return
	}
	if cid, ok := scope.Cells[name]; ok {
		if v, ok := a.cells[cid].(*VarInfo); ok {
			v.UseSpans = append(v.UseSpans, id.Span)
			return
		}
		a.report(&AnalyzeError{
			Kind: ErrDuplicateBinding, Name: name, Span: id.Span,
			PrevSpan: a.cells[cid].(*FnInfo).DefSpan,
		})
		return
	}
	if ref, ok := scope.Outers[name]; ok {
		// Writing through an outer reference updates the root binding.
		if v, ok := a.scopes[ref.Scope].Locals[name].(*VarInfo); ok {
			v.UseSpans = append(v.UseSpans, id.Span)
			return
		}
	}

	scope.Locals[name] = &VarInfo{Name: name, DefSpan: id.Span}
}

// useVar resolves a value reference to a binding, classifying any capture.
func (a *Analyzer) useVar(sc ScopeID, id *Ident) {
	name := a.name(id)
	named, owner, ok := a.resolve(sc, name)
	if !ok {
		a.report(&AnalyzeError{Kind: ErrUndefinedName, Name: name, Span: id.Span})
		return
	}

	switch b := named.(type) {
	case *VarInfo:
		b.UseSpans = append(b.UseSpans, id.Span)
		if owner != sc {
			a.capture(sc, owner, name)
		}
	case *FnInfo:
		// Bare reference to a function name; functions are not first-class
		// values here, so no capture bookkeeping is needed.
		b.UseSpans = append(b.UseSpans, id.Span)
	}
}

// resolve walks the scope chain looking for name. It returns the binding and
// the scope that owns it.
func (a *Analyzer) resolve(sc ScopeID, name string) (Named, ScopeID, bool) {
	for id := sc; id != NoScope; id = a.scopes[id].Parent {
		scope := &a.scopes[id]
		if n, ok := scope.Locals[name]; ok {
			return n, id, true
		}
		if cid, ok := scope.Cells[name]; ok {
			return a.cells[cid], id, true
		}
		if ref, ok := scope.Outers[name]; ok {
			if n, ok := a.scopes[ref.Scope].Locals[name]; ok {
				return n, ref.Scope, true
			}
			if cid, ok := a.scopes[ref.Scope].Cells[name]; ok {
				return a.cells[cid], ref.Scope, true
			}
		}
	}
	return nil, NoScope, false
}

// capture records how sc reaches a binding owned by ancestor scope owner:
// root bindings stay non-owning outer references; anything deeper is
// promoted into the cell arena and shared by id between both scopes.
func (a *Analyzer) capture(sc, owner ScopeID, name string) {
	if owner == a.Root() {
		if !a.scopes[sc].has(name) {
			a.scopes[sc].Outers[name] = OuterRef{Scope: owner, Name: name}
		}
		return
	}

	ownerScope := &a.scopes[owner]
	cid, ok := ownerScope.Cells[name]
	if !ok {
		// First capture: move the local into the cell arena.
		named := ownerScope.Locals[name]
		delete(ownerScope.Locals, name)
		cid = CellID(len(a.cells))
		a.cells = append(a.cells, named)
		ownerScope.Cells[name] = cid
	}
	if !a.scopes[sc].has(name) {
		a.scopes[sc].Cells[name] = cid
	}
}

// ─── functions & calls ───────────────────────────────────────────────────────

func (a *Analyzer) def(sc ScopeID, s *DefStmt) {
	name := a.name(s.Name)
	scope := &a.scopes[sc]

	if scope.has(name) {
		a.report(&AnalyzeError{
			Kind: ErrDuplicateBinding, Name: name, Span: s.Name.Span,
			PrevSpan: a.defSpanOf(sc, name),
		})
		return
	}

	params := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		params = append(params, a.name(p))
	}

	fn := &FnInfo{
		Name:     name,
		DefSpan:  s.Name.Span,
		Params:   params,
		ArgsSpan: s.ArgsSpan,
	}
	scope.Locals[name] = fn

	// The body gets a child scope with the parameters as locals.
	body := ScopeID(len(a.scopes))
	a.scopes = append(a.scopes, newScope(sc))
	fn.Scope = body
	for i, p := range s.Params {
		pname := params[i]
		if a.scopes[body].has(pname) {
			a.report(&AnalyzeError{
				Kind: ErrDuplicateBinding, Name: pname, Span: p.Span,
				PrevSpan: a.defSpanOf(body, pname),
			})
			continue
		}
		a.scopes[body].Locals[pname] = &VarInfo{Name: pname, DefSpan: p.Span}
	}

	a.expr(body, s.Body)
}

func (a *Analyzer) extern(sc ScopeID, s *ExternStmt) {
	name := a.name(s.Name)
	scope := &a.scopes[sc]

	if scope.has(name) {
		a.report(&AnalyzeError{
			Kind: ErrDuplicateBinding, Name: name, Span: s.Name.Span,
			PrevSpan: a.defSpanOf(sc, name),
		})
		return
	}

	params := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		params = append(params, a.name(p))
	}
	scope.Locals[name] = &FnInfo{
		Name:     name,
		DefSpan:  s.Name.Span,
		Params:   params,
		ArgsSpan: s.ArgsSpan,
		IsVararg: true, // extern contracts accept any argument count
		Scope:    NoScope,
	}
}

func (a *Analyzer) call(sc ScopeID, e *Call) {
	name := a.name(e.Callee)

	named, _, ok := a.resolve(sc, name)
	if !ok {
		// Possibly a forward reference; settle it at end of unit.
		a.undef = append(a.undef, UndefFnCall{
			Name:     name,
			UseSpan:  e.Callee.Span,
			ArgsNum:  len(e.Args),
			ArgsSpan: e.ArgsSpan,
			scope:    sc,
		})
	} else {
		a.checkCall(named, name, e.Callee.Span, len(e.Args))
	}

	for _, arg := range e.Args {
		a.expr(sc, arg)
	}
}

// checkCall validates one resolved call target.
func (a *Analyzer) checkCall(named Named, name string, useSpan CodeSpan, argc int) {
	switch b := named.(type) {
	case *VarInfo:
		a.report(&AnalyzeError{Kind: ErrNotCallable, Name: name, Span: useSpan})
	case *FnInfo:
		b.UseSpans = append(b.UseSpans, useSpan)
		if !b.IsVararg && argc != len(b.Params) {
			a.report(&AnalyzeError{
				Kind: ErrArityMismatch, Name: name, Span: useSpan,
				Got: argc, Want: len(b.Params),
			})
		}
	}
}

// reconcile settles the forward-call queue once the whole unit was walked.
func (a *Analyzer) reconcile() {
	for _, u := range a.undef {
		named, _, ok := a.resolve(u.scope, u.Name)
		if !ok {
			a.report(&AnalyzeError{Kind: ErrUndefinedFunction, Name: u.Name, Span: u.UseSpan})
			continue
		}
		a.checkCall(named, u.Name, u.UseSpan, u.ArgsNum)
	}
	a.undef = nil
}

// defSpanOf finds the definition span of an existing binding in sc, for
// duplicate-binding reports.
func (a *Analyzer) defSpanOf(sc ScopeID, name string) CodeSpan {
	scope := &a.scopes[sc]
	var named Named
	if n, ok := scope.Locals[name]; ok {
		named = n
	} else if cid, ok := scope.Cells[name]; ok {
		named = a.cells[cid]
	} else if ref, ok := scope.Outers[name]; ok {
		if n, ok := a.scopes[ref.Scope].Locals[name]; ok {
			named = n
		}
	}
	switch b := named.(type) {
	case *VarInfo:
		return b.DefSpan
	case *FnInfo:
		return b.DefSpan
	}
	return CodeSpan{}
}
