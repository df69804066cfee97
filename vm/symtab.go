package vm

// SymbolHandle indexes into a SymbolTable's interned label pool.
type SymbolHandle int

// symbolDef records one label definition: the handle of the label that was
// defined, and the address it was defined at.
type symbolDef struct {
	label SymbolHandle
	addr  uint16
}

// reference records one forward (or backward) use of a label that the
// assembler must patch once the label's address is known.
type reference struct {
	label SymbolHandle
	site  uint16 // byte offset in the image that needs patching
}

// SymbolTable interns label strings and tracks their definitions and
// outstanding references, mirroring the original assembler's append-only
// label pool, append-only symbol list, and LIFO reference stack. Go's slice
// growth already gives amortized doubling, so this type does not hand-roll
// its own capacity management.
type SymbolTable struct {
	labels  []string
	byLabel map[string]SymbolHandle
	symbols []symbolDef
	refs    []reference
}

// NewSymbolTable returns an empty table ready for use.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byLabel: make(map[string]SymbolHandle),
	}
}

// Intern returns the handle for name, creating a new pool entry the first
// time name is seen. Interning the same string twice returns the same
// handle.
func (t *SymbolTable) Intern(name string) SymbolHandle {
	if h, ok := t.byLabel[name]; ok {
		return h
	}
	h := SymbolHandle(len(t.labels))
	t.labels = append(t.labels, name)
	t.byLabel[name] = h
	return h
}

// Name returns the interned string for a handle.
func (t *SymbolTable) Name(h SymbolHandle) string {
	return t.labels[h]
}

// Define records a definition of label at addr. Multiple definitions of the
// same label are permitted by the table (the original's table_symbol_define
// never rejects a redefinition); Lookup always resolves to the first one.
func (t *SymbolTable) Define(name string, addr uint16) {
	h := t.Intern(name)
	t.symbols = append(t.symbols, symbolDef{label: h, addr: addr})
}

// Lookup returns the address of the first recorded definition of name.
func (t *SymbolTable) Lookup(name string) (uint16, bool) {
	h, ok := t.byLabel[name]
	if !ok {
		return 0, false
	}
	for _, s := range t.symbols {
		if s.label == h {
			return s.addr, true
		}
	}
	return 0, false
}

// AddReference interns name (if needed) and records that site needs to be
// patched with name's eventual address.
func (t *SymbolTable) AddReference(name string, site uint16) {
	h := t.Intern(name)
	t.refs = append(t.refs, reference{label: h, site: site})
}

// PopReference removes and returns the most recently added reference, LIFO,
// as the original table_ref_pop does. The second return value is false once
// the reference stack is empty.
func (t *SymbolTable) PopReference() (name string, site uint16, ok bool) {
	n := len(t.refs)
	if n == 0 {
		return "", 0, false
	}
	r := t.refs[n-1]
	t.refs = t.refs[:n-1]
	return t.labels[r.label], r.site, true
}

// Delete tombstones every definition of name so that subsequent Lookups
// fail, mirroring table_symbol_del's approach of nulling the label pointer
// rather than compacting the symbol list.
func (t *SymbolTable) Delete(name string) {
	h, ok := t.byLabel[name]
	if !ok {
		return
	}
	delete(t.byLabel, name)
	out := t.symbols[:0]
	for _, s := range t.symbols {
		if s.label != h {
			out = append(out, s)
		}
	}
	t.symbols = out
}

// PendingReferences reports how many references remain unresolved. The
// assembler calls this after draining with PopReference to decide whether
// Pass 2 finished cleanly.
func (t *SymbolTable) PendingReferences() int {
	return len(t.refs)
}
