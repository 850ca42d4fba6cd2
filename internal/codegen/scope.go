package codegen

import (
	"cmp"

	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

// Binding is the materialized value of a symbol.
type Binding struct {
	Layout layout.Layout
	Value  mir.Operand
}

// JoinPoint is the lowering target of a join id.
type JoinPoint struct {
	Block mir.BlockID
	Slots []mir.Operand
	Types []mir.Type
}

// Scope maps symbols and join ids to their lowering. It is persistent:
// every update returns a new Scope and leaves the receiver untouched, so
// copying a Scope is a constant-time clone.
type Scope struct {
	vars  *avlNode[mono.Symbol, Binding]
	joins *avlNode[mono.JoinID, JoinPoint]
	size  int
}

func (s Scope) Bind(sym mono.Symbol, l layout.Layout, v mir.Operand) Scope {
	var added bool
	s.vars, added = avlInsert(s.vars, sym, Binding{Layout: l, Value: v})
	if added {
		s.size++
	}
	return s
}

func (s Scope) Lookup(sym mono.Symbol) (Binding, bool) {
	return avlGet(s.vars, sym)
}

func (s Scope) Unbind(sym mono.Symbol) Scope {
	var removed bool
	s.vars, removed = avlDelete(s.vars, sym)
	if removed {
		s.size--
	}
	return s
}

func (s Scope) BindJoin(id mono.JoinID, jp JoinPoint) Scope {
	s.joins, _ = avlInsert(s.joins, id, jp)
	return s
}

func (s Scope) LookupJoin(id mono.JoinID) (JoinPoint, bool) {
	return avlGet(s.joins, id)
}

// Clone returns s. It exists to mark branch points.
func (s Scope) Clone() Scope { return s }

// Len returns the number of bound symbols.
func (s Scope) Len() int { return s.size }

type avlNode[K cmp.Ordered, V any] struct {
	key         K
	val         V
	left, right *avlNode[K, V]
	height      int8
}

func height[K cmp.Ordered, V any](n *avlNode[K, V]) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func mk[K cmp.Ordered, V any](key K, val V, l, r *avlNode[K, V]) *avlNode[K, V] {
	return &avlNode[K, V]{key: key, val: val, left: l, right: r, height: max(height(l), height(r)) + 1}
}

func balance[K cmp.Ordered, V any](key K, val V, l, r *avlNode[K, V]) *avlNode[K, V] {
	hl, hr := height(l), height(r)
	switch {
	case hl > hr+1:
		if height(l.left) >= height(l.right) {
			return mk(l.key, l.val, l.left, mk(key, val, l.right, r))
		}
		return mk(l.right.key, l.right.val, mk(l.key, l.val, l.left, l.right.left), mk(key, val, l.right.right, r))
	case hr > hl+1:
		if height(r.right) >= height(r.left) {
			return mk(r.key, r.val, mk(key, val, l, r.left), r.right)
		}
		return mk(r.left.key, r.left.val, mk(key, val, l, r.left.left), mk(r.key, r.val, r.left.right, r.right))
	default:
		return mk(key, val, l, r)
	}
}

func avlGet[K cmp.Ordered, V any](n *avlNode[K, V], key K) (V, bool) {
	for n != nil {
		switch c := cmp.Compare(key, n.key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.val, true
		}
	}
	var zero V
	return zero, false
}

// avlInsert returns a new tree with key set to val; only the search path is
// copied.
func avlInsert[K cmp.Ordered, V any](n *avlNode[K, V], key K, val V) (*avlNode[K, V], bool) {
	if n == nil {
		return mk[K, V](key, val, nil, nil), true
	}
	switch c := cmp.Compare(key, n.key); {
	case c < 0:
		l, added := avlInsert(n.left, key, val)
		return balance(n.key, n.val, l, n.right), added
	case c > 0:
		r, added := avlInsert(n.right, key, val)
		return balance(n.key, n.val, n.left, r), added
	default:
		return mk(key, val, n.left, n.right), false
	}
}

func avlDelete[K cmp.Ordered, V any](n *avlNode[K, V], key K) (*avlNode[K, V], bool) {
	if n == nil {
		return nil, false
	}
	switch c := cmp.Compare(key, n.key); {
	case c < 0:
		l, removed := avlDelete(n.left, key)
		if !removed {
			return n, false
		}
		return balance(n.key, n.val, l, n.right), true
	case c > 0:
		r, removed := avlDelete(n.right, key)
		if !removed {
			return n, false
		}
		return balance(n.key, n.val, n.left, r), true
	}
	if n.left == nil {
		return n.right, true
	}
	if n.right == nil {
		return n.left, true
	}
	succ := n.right
	for succ.left != nil {
		succ = succ.left
	}
	r, _ := avlDelete(n.right, succ.key)
	return balance(succ.key, succ.val, n.left, r), true
}
