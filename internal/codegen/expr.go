package codegen

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

// expr materializes ex for a binding of sym with declared layout l. It
// returns the value together with its concrete layout, which differs from
// l only when l is a RecursivePointer placeholder.
func (e *emitter) expr(scope Scope, sym mono.Symbol, ex mono.Expr, l layout.Layout) (mir.Operand, layout.Layout) {
	switch x := ex.(type) {
	case *mono.Literal:
		return e.literal(sym, x, l), l
	case *mono.Call:
		return e.call(scope, sym, x, l), l
	case *mono.StructExpr:
		return e.structValue(scope, sym, x.Fields, l), l
	case *mono.Tag:
		tl := x.Layout
		if tl.Kind == layout.KindInvalid {
			tl = l
		}
		return e.tag(scope, sym, tl, x.TagID, x.Args), tl
	case *mono.AccessAtIndex:
		v, fl := e.access(scope, sym, x)
		if l.Kind != layout.KindRecursivePointer && l.Kind != layout.KindInvalid {
			fl = l
		}
		return v, fl
	case *mono.GetTagID:
		b := e.lookup(scope, x.Structure)
		if b.Layout.Kind != layout.KindUnion {
			e.failLayout(x.Structure, b.Layout, b.Value, "tag id of a non-union value")
		}
		id := e.tagID(b.Value, b.Layout)
		if l.Kind == layout.KindInt {
			return e.b.IntResize(id, l.Width, false), l
		}
		return id, layout.I64()
	case *mono.Array:
		return e.arrayLiteral(scope, x), layout.List(x.Elem)
	case *mono.EmptyArray:
		return mir.Zero(fatType(e.ptr())), l
	default:
		e.fail(sym, "unsupported expression %T", ex)
		return mir.Operand{}, l
	}
}

func (e *emitter) literal(sym mono.Symbol, lit *mono.Literal, l layout.Layout) mir.Operand {
	switch lit.Kind {
	case mono.LitInt, mono.LitByte, mono.LitBool:
		switch l.Kind {
		case layout.KindInt:
			return mir.Const(mir.Int(l.Width), truncate(lit.Int, l.Width))
		case layout.KindFloat:
			return mir.ConstFloat(mir.Float(l.Width), float64(lit.Int))
		}
	case mono.LitFloat:
		if l.Kind == layout.KindFloat {
			return mir.ConstFloat(mir.Float(l.Width), lit.Float)
		}
	case mono.LitStr:
		if l.Kind == layout.KindStr {
			return e.strLiteral(lit.Str)
		}
	}
	e.fail(sym, "literal of kind %d cannot have layout %s", lit.Kind, l)
	return mir.Operand{}
}

// truncate wraps v to a signed integer of bits.
func truncate(v int64, bits int) int64 {
	if bits >= 64 {
		return v
	}
	if bits == 1 {
		return v & 1
	}
	shift := 64 - bits
	return v << shift >> shift
}

// strLiteral builds a string constant. Short strings are stored inline with
// the length and a small-string flag in the last byte; longer ones point
// into a deduplicated read-only global.
func (e *emitter) strLiteral(s string) mir.Operand {
	p := e.ptr()
	fat := fatType(p)
	if s == "" {
		return mir.Zero(fat)
	}
	if len(s) < 2*p {
		buf := make([]byte, 2*p)
		copy(buf, s)
		buf[2*p-1] = byte(len(s)) | 0x80
		slot := e.entryAlloca(fat, p)
		e.b.Store(mir.Const(e.usize(), wordAt(buf, 0, p)), slot)
		e.b.Store(mir.Const(e.usize(), wordAt(buf, p, p)), e.b.PtrOffset(slot, p))
		return e.b.Load(fat, slot)
	}
	name := e.g.stringGlobal(s)
	data := e.b.PtrOffset(mir.GlobalAddr(name), p)
	return e.b.Aggregate(fat, data, e.word(len(s)))
}

func wordAt(buf []byte, off, size int) int64 {
	if size == 4 {
		return int64(int32(binary.LittleEndian.Uint32(buf[off:])))
	}
	return int64(binary.LittleEndian.Uint64(buf[off:]))
}

// stringGlobal returns the global holding s behind a static refcount header.
func (g *Generator) stringGlobal(s string) string {
	if name, ok := g.strs[s]; ok {
		return name
	}
	h := fnv.New64a()
	h.Write([]byte(s))
	name := fmt.Sprintf("str.%016x", h.Sum64())
	for n := 1; g.mod.Global(name) != nil; n++ {
		name = fmt.Sprintf("str.%016x.%d", h.Sum64(), n)
	}
	data := make([]byte, g.ptr+len(s))
	copy(data[g.ptr:], s)
	g.mod.AddGlobal(&mir.Global{Name: name, Bytes: data, Align: g.ptr})
	g.strs[s] = name
	return name
}

// messageGlobal returns a NUL-terminated global for an error message.
func (g *Generator) messageGlobal(msg string) string {
	if name, ok := g.msgs[msg]; ok {
		return name
	}
	name := fmt.Sprintf("msg.%d", len(g.msgs))
	g.mod.AddGlobal(&mir.Global{Name: name, Bytes: append([]byte(msg), 0), Align: 1})
	g.msgs[msg] = name
	return name
}

// structValue builds a struct from field symbols, dropping zero-sized
// fields and unwrapping a single stored field.
func (e *emitter) structValue(scope Scope, sym mono.Symbol, fields []mono.Symbol, l layout.Layout) mir.Operand {
	if l.Kind != layout.KindStruct {
		e.fail(sym, "struct construction with layout %s", l)
	}
	if len(fields) != len(l.Fields) {
		e.fail(sym, "struct of %d fields built from %d symbols", len(l.Fields), len(fields))
	}
	var vals []mir.Operand
	for i, f := range fields {
		if l.Fields[i].IsZeroSized() {
			continue
		}
		vals = append(vals, e.lookup(scope, f).Value)
	}
	t := e.basic(l)
	if _, ok := l.Unwrapped(); ok {
		return vals[0]
	}
	if len(vals) == 0 {
		return mir.Zero(t)
	}
	return e.b.Aggregate(t, vals...)
}

// storeFields writes the stored fields of a variant at base.
func (e *emitter) storeFields(scope Scope, base mir.Operand, fields []layout.Layout, args []mono.Symbol) {
	offsets, _, _ := layout.StructOffsets(fields, e.ptr())
	k := 0
	for i, f := range fields {
		if f.IsZeroSized() {
			continue
		}
		v := e.lookup(scope, args[i]).Value
		e.b.Store(v, e.b.PtrOffset(base, offsets[k]))
		k++
	}
}

// tag constructs variant tagID of union l.
func (e *emitter) tag(scope Scope, sym mono.Symbol, l layout.Layout, tagID int, args []mono.Symbol) mir.Operand {
	if l.Kind == layout.KindStruct {
		return e.structValue(scope, sym, args, l)
	}
	if l.Kind != layout.KindUnion {
		e.fail(sym, "tag construction with layout %s", l)
	}
	u := l.Union
	if tagID < 0 || tagID >= u.NumTags() {
		e.fail(sym, "tag id %d out of range for %s", tagID, l)
	}
	if u.IsNullable(tagID) {
		if len(args) != 0 {
			e.fail(sym, "nullable variant %d built with %d fields", tagID, len(args))
		}
		return mir.Null()
	}
	fields := substituteAll(u.FieldsOf(tagID), l)
	if len(fields) != len(args) {
		e.fail(sym, "variant %d of %s has %d fields, got %d", tagID, l, len(fields), len(args))
	}

	switch u.Shape {
	case layout.ShapeNonRecursive:
		t := e.basic(l)
		slot := e.entryAlloca(t, layout.TagBytes)
		e.b.Store(mir.Const(mir.I64(), int64(tagID)), slot)
		e.storeFields(scope, e.b.PtrOffset(slot, layout.TagBytes), fields, args)
		return e.b.Load(t, slot)
	case layout.ShapeRecursive, layout.ShapeNullableWrapped:
		p := e.reserve(l)
		e.b.Store(mir.Const(mir.I64(), int64(tagID)), p)
		e.storeFields(scope, e.b.PtrOffset(p, layout.TagBytes), fields, args)
		return p
	case layout.ShapeNonNullableUnwrapped, layout.ShapeNullableUnwrapped:
		p := e.reserve(l)
		e.storeFields(scope, p, fields, args)
		return p
	default:
		e.fail(sym, "unknown union shape %s", u.Shape)
		return mir.Operand{}
	}
}

// payloadBase returns the address of the payload of a union value. Inline
// unions are spilled to the stack first.
func (e *emitter) payloadBase(v mir.Operand, l layout.Layout) mir.Operand {
	u := l.Union
	switch u.Shape {
	case layout.ShapeNonRecursive:
		slot := e.entryAlloca(v.Type, layout.TagBytes)
		e.b.Store(v, slot)
		return e.b.PtrOffset(slot, layout.TagBytes)
	case layout.ShapeRecursive, layout.ShapeNullableWrapped:
		return e.b.PtrOffset(v, layout.TagBytes)
	default:
		return v
	}
}

// loadField reads stored field idx of fields at base.
func (e *emitter) loadField(base mir.Operand, fields []layout.Layout, idx int) mir.Operand {
	offsets, _, _ := layout.StructOffsets(fields, e.ptr())
	k := storedIndex(fields, idx)
	return e.b.Load(e.basic(fields[idx]), e.b.PtrOffset(base, offsets[k]))
}

// access projects a field out of a struct or a union variant.
func (e *emitter) access(scope Scope, sym mono.Symbol, x *mono.AccessAtIndex) (mir.Operand, layout.Layout) {
	b := e.lookup(scope, x.Structure)
	switch b.Layout.Kind {
	case layout.KindStruct:
		fields := b.Layout.Fields
		if x.Index < 0 || x.Index >= len(fields) {
			e.failLayout(sym, b.Layout, b.Value, "field %d out of range", x.Index)
		}
		fl := fields[x.Index]
		if fl.IsZeroSized() {
			return mir.Zero(e.basic(fl)), fl
		}
		if _, ok := b.Layout.Unwrapped(); ok {
			return b.Value, fl
		}
		return e.b.Extract(b.Value, storedIndex(fields, x.Index)), fl
	case layout.KindUnion:
		u := b.Layout.Union
		if u.IsNullable(x.TagID) {
			e.failLayout(sym, b.Layout, b.Value, "field access on nullable variant %d", x.TagID)
		}
		fields := substituteAll(u.FieldsOf(x.TagID), b.Layout)
		if x.Index < 0 || x.Index >= len(fields) {
			e.failLayout(sym, b.Layout, b.Value, "field %d out of range for variant %d", x.Index, x.TagID)
		}
		fl := fields[x.Index]
		if fl.IsZeroSized() {
			return mir.Zero(e.basic(fl)), fl
		}
		return e.loadField(e.payloadBase(b.Value, b.Layout), fields, x.Index), fl
	default:
		e.failLayout(sym, b.Layout, b.Value, "field access on a value that is neither struct nor union")
		return mir.Operand{}, layout.Layout{}
	}
}

// tagID extracts the discriminant of a union value as i64. Null pointers of
// nullable shapes yield the nullable id without a dereference.
func (e *emitter) tagID(v mir.Operand, l layout.Layout) mir.Operand {
	u := l.Union
	switch u.Shape {
	case layout.ShapeNonRecursive:
		return e.b.Extract(v, 0)
	case layout.ShapeRecursive:
		return e.b.Load(mir.I64(), v)
	case layout.ShapeNonNullableUnwrapped:
		return mir.Const(mir.I64(), 0)
	case layout.ShapeNullableUnwrapped:
		isNull := e.b.Cmp(mir.CmpEq, v, mir.Null())
		return e.b.Select(isNull, mir.Const(mir.I64(), int64(u.NullableID)), mir.Const(mir.I64(), int64(u.OtherID())))
	case layout.ShapeNullableWrapped:
		isNull := e.b.Cmp(mir.CmpEq, v, mir.Null())
		nullB, loadB, done := e.block("tag_null"), e.block("tag_load"), e.block("tag_done")
		e.b.If(isNull, nullB, loadB)
		e.b.SetBlock(nullB)
		e.b.Goto(done)
		e.b.SetBlock(loadB)
		loaded := e.b.Load(mir.I64(), v)
		e.b.Goto(done)
		e.b.SetBlock(done)
		return e.b.Phi(mir.I64(),
			mir.PhiIncoming{Block: nullB, Value: mir.Const(mir.I64(), int64(u.NullableID))},
			mir.PhiIncoming{Block: loadB, Value: loaded},
		)
	default:
		e.fail("", "unknown union shape %s", u.Shape)
		return mir.Operand{}
	}
}

// arrayLiteral allocates exactly len(elems) elements behind a refcount
// header and stores them in order.
func (e *emitter) arrayLiteral(scope Scope, x *mono.Array) mir.Operand {
	fat := fatType(e.ptr())
	if len(x.Elems) == 0 {
		return mir.Zero(fat)
	}
	width := x.Elem.StackSize(e.ptr())
	align := x.Elem.Alignment(e.ptr())
	data := e.reserveBytes(e.word(width*len(x.Elems)), align)
	if width > 0 {
		for i, s := range x.Elems {
			e.b.Store(e.lookup(scope, s).Value, e.b.PtrOffset(data, i*width))
		}
	}
	return e.b.Aggregate(fat, data, e.word(len(x.Elems)))
}
