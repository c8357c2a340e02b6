package vm

import (
	"fadingrose/rosy-ledger/abi"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Visibility controls who may invoke an entry point.
type Visibility uint8

const (
	// External entry points are callable by messages and other contracts.
	External Visibility = iota
	// Public entry points are callable from outside and reused by the
	// contract's own logic.
	Public
	// Internal entry points are listed for introspection only. External
	// calls to them fail with ErrNotExternal.
	Internal
)

func (v Visibility) String() string {
	switch v {
	case External:
		return "external"
	case Public:
		return "public"
	case Internal:
		return "internal"
	}
	return fmt.Sprintf("visibility(%d)", v)
}

// Handler implements an entry point. args are decoded according to the
// method inputs; the returned values are encoded with its outputs.
type Handler func(ctx *Context, args []interface{}) ([]interface{}, error)

// Method describes one entry point of a contract definition.
type Method struct {
	Name       string
	Inputs     abi.Arguments
	Outputs    abi.Arguments
	Visibility Visibility
	Payable    bool
	// ReadOnly entry points run under write protection.
	ReadOnly bool
	Handler  Handler
}

// Signature renders the entry point as name(type,...).
func (m *Method) Signature() string {
	return abi.Signature(m.Name, m.Inputs)
}

// Definition is a contract type: the code installed at a contract address
// is the definition name, and calls are resolved against its method table.
type Definition struct {
	Name        string
	Constructor *Method
	// Receive handles plain value transfers. Nil rejects them.
	Receive Handler
	Methods []*Method
	Events  []abi.Event
}

// Code returns the code stored for accounts running this definition.
func (d *Definition) Code() []byte { return []byte(d.Name) }

// CodeHash returns the hash the registry is keyed by.
func (d *Definition) CodeHash() common.Hash { return crypto.Keccak256Hash(d.Code()) }

// Method looks up an entry point by name.
func (d *Definition) Method(name string) (*Method, bool) {
	for _, m := range d.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Event looks up a notification declaration by name.
func (d *Definition) Event(name string) (abi.Event, bool) {
	for _, ev := range d.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return abi.Event{}, false
}

// Registry maps code hashes to contract definitions.
type Registry struct {
	defs map[common.Hash]*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[common.Hash]*Definition)}
}

// Register adds def. Names must be unique and each method declared once.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("register: definition without a name")
	}
	hash := def.CodeHash()
	if _, ok := r.defs[hash]; ok {
		return fmt.Errorf("register %s: already registered", def.Name)
	}
	seen := make(map[string]bool, len(def.Methods))
	for _, m := range def.Methods {
		if m.Name == "" || m.Handler == nil {
			return fmt.Errorf("register %s: incomplete method %q", def.Name, m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("register %s: duplicate method %s", def.Name, m.Name)
		}
		seen[m.Name] = true
	}
	r.defs[hash] = def
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(defs ...*Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the definition installed under codeHash.
func (r *Registry) Lookup(codeHash common.Hash) (*Definition, bool) {
	def, ok := r.defs[codeHash]
	return def, ok
}

// ByName returns the definition called name.
func (r *Registry) ByName(name string) (*Definition, bool) {
	return r.Lookup(crypto.Keccak256Hash([]byte(name)))
}

// Definitions returns all registered definitions sorted by name.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
