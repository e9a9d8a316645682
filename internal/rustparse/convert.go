package rustparse

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/apicheck/internal/syntax"
)

type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	return n.Content(c.src)
}

// fieldText returns the source text of a named field, or "".
func (c *converter) fieldText(n *sitter.Node, field string) string {
	ch := n.ChildByFieldName(field)
	if ch == nil {
		return ""
	}
	return c.text(ch)
}

// fieldFragment returns the tokens of a named field, or nil.
func (c *converter) fieldFragment(n *sitter.Node, field string) syntax.Fragment {
	ch := n.ChildByFieldName(field)
	if ch == nil {
		return nil
	}
	return c.fragment(ch)
}

// childOfType returns the first direct child, named or not, of type typ.
func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if ch := n.Child(i); ch.Type() == typ {
			return ch
		}
	}
	return nil
}

func hasToken(n *sitter.Node, tok string) bool {
	return childOfType(n, tok) != nil
}

// Nodes rendered as a single token regardless of their internal structure.
var atomicNodes = map[string]bool{
	"string_literal":     true,
	"raw_string_literal": true,
	"char_literal":       true,
	"integer_literal":    true,
	"float_literal":      true,
	"lifetime":           true,
	"metavariable":       true,
}

// fragment flattens n into its non-comment tokens.
func (c *converter) fragment(n *sitter.Node) syntax.Fragment {
	var toks syntax.Fragment
	c.collect(n, &toks)
	return toks
}

func (c *converter) collect(n *sitter.Node, toks *syntax.Fragment) {
	switch typ := n.Type(); {
	case typ == "line_comment" || typ == "block_comment":
		return
	case atomicNodes[typ] || n.ChildCount() == 0:
		if text := strings.TrimSpace(c.text(n)); text != "" {
			*toks = append(*toks, text)
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c.collect(n.Child(i), toks)
	}
}

func (c *converter) visibility(n *sitter.Node) syntax.Visibility {
	vis := childOfType(n, "visibility_modifier")
	if vis == nil {
		return syntax.Inherited
	}
	return visibilityOf(c.text(vis))
}

func visibilityOf(text string) syntax.Visibility {
	if strings.Join(strings.Fields(text), "") == "pub" {
		return syntax.Public
	}
	return syntax.Restricted
}

func (c *converter) where(n *sitter.Node) syntax.Fragment {
	if w := childOfType(n, "where_clause"); w != nil {
		return c.fragment(w)
	}
	return nil
}

type docStyle int

const (
	notDoc docStyle = iota
	outerDoc
	innerDoc
)

func classifyComment(text string) docStyle {
	switch {
	case strings.HasPrefix(text, "///") && !strings.HasPrefix(text, "////"):
		return outerDoc
	case strings.HasPrefix(text, "//!"):
		return innerDoc
	case strings.HasPrefix(text, "/**") && !strings.HasPrefix(text, "/***") && text != "/**/":
		return outerDoc
	case strings.HasPrefix(text, "/*!"):
		return innerDoc
	}
	return notDoc
}

// items converts the item children of a source_file or declaration_list.
// Outer attributes and doc comments are attached to the item that follows
// them; inner attributes are returned separately.
func (c *converter) items(parent *sitter.Node) ([]*syntax.Item, []syntax.Fragment) {
	var (
		items   []*syntax.Item
		inner   []syntax.Fragment
		pending []syntax.Fragment
	)
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		n := parent.NamedChild(i)
		switch n.Type() {
		case "attribute_item":
			pending = append(pending, c.fragment(n))
			continue
		case "inner_attribute_item":
			inner = append(inner, c.fragment(n))
			continue
		case "line_comment", "block_comment":
			text := strings.TrimRight(c.text(n), " \t\r\n")
			switch classifyComment(text) {
			case outerDoc:
				pending = append(pending, syntax.Fragment{text})
			case innerDoc:
				inner = append(inner, syntax.Fragment{text})
			}
			continue
		case "empty_statement", "shebang":
			continue
		}

		it := c.item(n)
		it.Attrs = append(pending, it.Attrs...)
		if it.Kind == syntax.KindModule {
			it.PathAttr = pathAttr(pending)
		}
		pending = nil
		items = append(items, it)
	}
	return items, inner
}

func (c *converter) item(n *sitter.Node) *syntax.Item {
	switch n.Type() {
	case "function_item", "function_signature_item":
		return c.function(n)
	case "struct_item":
		return c.record(n, syntax.KindStruct)
	case "union_item":
		return c.record(n, syntax.KindUnion)
	case "enum_item":
		return c.enum(n)
	case "trait_item":
		return c.trait(n)
	case "impl_item":
		return c.impl(n)
	case "type_item":
		return &syntax.Item{
			Kind:       syntax.KindTypeAlias,
			Name:       c.fieldText(n, "name"),
			Visibility: c.visibility(n),
			Generics:   c.fieldFragment(n, "type_parameters"),
			Where:      c.where(n),
			Type:       c.fieldFragment(n, "type"),
		}
	case "associated_type":
		it := &syntax.Item{
			Kind:       syntax.KindTypeAlias,
			Name:       c.fieldText(n, "name"),
			Visibility: c.visibility(n),
			Generics:   c.fieldFragment(n, "type_parameters"),
			Where:      c.where(n),
		}
		if b := n.ChildByFieldName("bounds"); b != nil {
			it.Bounds = c.bounds(b)
		}
		return it
	case "const_item":
		return &syntax.Item{
			Kind:       syntax.KindConst,
			Name:       c.fieldText(n, "name"),
			Visibility: c.visibility(n),
			Type:       c.fieldFragment(n, "type"),
		}
	case "static_item":
		return &syntax.Item{
			Kind:       syntax.KindStatic,
			Name:       c.fieldText(n, "name"),
			Visibility: c.visibility(n),
			Type:       c.fieldFragment(n, "type"),
			Mutable:    childOfType(n, "mutable_specifier") != nil,
		}
	case "mod_item":
		return c.module(n)
	case "use_declaration":
		it := &syntax.Item{Kind: syntax.KindUse, Visibility: c.visibility(n)}
		if arg := n.ChildByFieldName("argument"); arg != nil {
			it.Use = c.useTree(arg)
		}
		return it
	case "macro_invocation":
		return &syntax.Item{Kind: syntax.KindMacroCall, Name: c.fieldText(n, "macro")}
	case "expression_statement":
		if m := childOfType(n, "macro_invocation"); m != nil {
			return &syntax.Item{Kind: syntax.KindMacroCall, Name: c.fieldText(m, "macro")}
		}
	case "extern_crate_declaration":
		return &syntax.Item{Kind: syntax.KindExternCrate, Name: c.fieldText(n, "name"), Visibility: c.visibility(n)}
	case "macro_definition":
		return &syntax.Item{Kind: syntax.KindMacroDef, Name: c.fieldText(n, "name")}
	case "foreign_mod_item":
		return &syntax.Item{Kind: syntax.KindForeignMod, Visibility: c.visibility(n)}
	}
	return &syntax.Item{Kind: syntax.KindUnknown, Name: n.Type()}
}

func (c *converter) function(n *sitter.Node) *syntax.Item {
	sig := &syntax.FnSig{Output: c.fieldFragment(n, "return_type")}
	if mods := childOfType(n, "function_modifiers"); mods != nil {
		c.modifiers(mods, sig)
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		c.params(params, sig)
	}
	return &syntax.Item{
		Kind:       syntax.KindFunction,
		Name:       c.fieldText(n, "name"),
		Visibility: c.visibility(n),
		Generics:   c.fieldFragment(n, "type_parameters"),
		Where:      c.where(n),
		Fn:         sig,
	}
}

func (c *converter) modifiers(mods *sitter.Node, sig *syntax.FnSig) {
	for i := 0; i < int(mods.ChildCount()); i++ {
		m := mods.Child(i)
		switch m.Type() {
		case "async":
			sig.Async = true
		case "const":
			sig.Const = true
		case "unsafe":
			sig.Unsafe = true
		case "extern_modifier":
			sig.Extern = syntax.ExternImplicit
			if abi := childOfType(m, "string_literal"); abi != nil {
				sig.Extern = syntax.ExternExplicit
				sig.ABI = unquote(c.text(abi))
			}
		}
	}
}

func (c *converter) params(params *sitter.Node, sig *syntax.FnSig) {
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "attribute_item", "line_comment", "block_comment":
			continue
		case "parameter":
			pat := c.fieldFragment(p, "pattern")
			if childOfType(p, "mutable_specifier") != nil {
				pat = append(syntax.Fragment{"mut"}, pat...)
			}
			sig.Params = append(sig.Params, syntax.Param{Pattern: pat, Type: c.fieldFragment(p, "type")})
		case "self_parameter":
			sig.Params = append(sig.Params, c.receiver(p))
		case "variadic_parameter":
			sig.Variadic = true
			pat := c.fieldFragment(p, "pattern")
			if pat == nil {
				pat = syntax.Fragment{"_"}
			}
			sig.Params = append(sig.Params, syntax.Param{Pattern: pat, Type: syntax.Fragment{"..."}})
		default:
			// Anonymous parameter: only a type was written.
			sig.Params = append(sig.Params, syntax.Param{Pattern: syntax.Fragment{"_"}, Type: c.fragment(p)})
		}
	}
}

// receiver renders a self parameter as binding `self` with an explicit
// Self type: &self becomes self: &Self, mut self becomes mut self: Self.
func (c *converter) receiver(p *sitter.Node) syntax.Param {
	var (
		ref      bool
		mutable  bool
		lifetime string
	)
	for i := 0; i < int(p.ChildCount()); i++ {
		ch := p.Child(i)
		switch ch.Type() {
		case "&":
			ref = true
		case "lifetime":
			lifetime = c.text(ch)
		case "mutable_specifier":
			mutable = true
		}
	}
	if !ref {
		if mutable {
			return syntax.Param{Pattern: syntax.Fragment{"mut", "self"}, Type: syntax.Fragment{"Self"}}
		}
		return syntax.Param{Pattern: syntax.Fragment{"self"}, Type: syntax.Fragment{"Self"}}
	}
	typ := syntax.Fragment{"&"}
	if lifetime != "" {
		typ = append(typ, lifetime)
	}
	if mutable {
		typ = append(typ, "mut")
	}
	typ = append(typ, "Self")
	return syntax.Param{Pattern: syntax.Fragment{"self"}, Type: typ}
}

// record converts struct and union items.
func (c *converter) record(n *sitter.Node, kind syntax.Kind) *syntax.Item {
	return &syntax.Item{
		Kind:       kind,
		Name:       c.fieldText(n, "name"),
		Visibility: c.visibility(n),
		Generics:   c.fieldFragment(n, "type_parameters"),
		Where:      c.where(n),
		Fields:     c.fieldList(n.ChildByFieldName("body")),
	}
}

func (c *converter) fieldList(body *sitter.Node) *syntax.FieldList {
	if body == nil {
		return &syntax.FieldList{Style: syntax.UnitFields}
	}
	switch body.Type() {
	case "field_declaration_list":
		fl := &syntax.FieldList{Style: syntax.NamedFields}
		for i := 0; i < int(body.NamedChildCount()); i++ {
			f := body.NamedChild(i)
			if f.Type() != "field_declaration" {
				continue
			}
			fl.Fields = append(fl.Fields, &syntax.Field{
				Name:       c.fieldText(f, "name"),
				Visibility: c.visibility(f),
				Type:       c.fieldFragment(f, "type"),
			})
		}
		return fl
	case "ordered_field_declaration_list":
		fl := &syntax.FieldList{Style: syntax.TupleFields}
		vis := syntax.Inherited
		for i := 0; i < int(body.NamedChildCount()); i++ {
			f := body.NamedChild(i)
			switch f.Type() {
			case "attribute_item", "line_comment", "block_comment":
			case "visibility_modifier":
				vis = visibilityOf(c.text(f))
			default:
				fl.Fields = append(fl.Fields, &syntax.Field{Visibility: vis, Type: c.fragment(f)})
				vis = syntax.Inherited
			}
		}
		return fl
	}
	return &syntax.FieldList{Style: syntax.UnitFields}
}

func (c *converter) enum(n *sitter.Node) *syntax.Item {
	it := &syntax.Item{
		Kind:       syntax.KindEnum,
		Name:       c.fieldText(n, "name"),
		Visibility: c.visibility(n),
		Generics:   c.fieldFragment(n, "type_parameters"),
		Where:      c.where(n),
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return it
	}
	var pending []syntax.Fragment
	for i := 0; i < int(body.NamedChildCount()); i++ {
		v := body.NamedChild(i)
		switch v.Type() {
		case "attribute_item":
			pending = append(pending, c.fragment(v))
		case "line_comment", "block_comment":
			text := strings.TrimRight(c.text(v), " \t\r\n")
			if classifyComment(text) == outerDoc {
				pending = append(pending, syntax.Fragment{text})
			}
		case "enum_variant":
			it.Variants = append(it.Variants, &syntax.Variant{
				Name:   c.fieldText(v, "name"),
				Attrs:  pending,
				Fields: c.fieldList(v.ChildByFieldName("body")),
			})
			pending = nil
		}
	}
	return it
}

func (c *converter) trait(n *sitter.Node) *syntax.Item {
	it := &syntax.Item{
		Kind:       syntax.KindTrait,
		Name:       c.fieldText(n, "name"),
		Visibility: c.visibility(n),
		Generics:   c.fieldFragment(n, "type_parameters"),
		Where:      c.where(n),
		Unsafe:     hasToken(n, "unsafe"),
	}
	if b := n.ChildByFieldName("bounds"); b != nil {
		it.Bounds = c.bounds(b)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		it.Children, _ = c.items(body)
	}
	return it
}

func (c *converter) bounds(n *sitter.Node) []syntax.Bound {
	var out []syntax.Bound
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b := n.NamedChild(i)
		switch b.Type() {
		case "line_comment", "block_comment":
		case "lifetime":
			out = append(out, syntax.Bound{Lifetime: c.text(b)})
		case "higher_ranked_trait_bound":
			out = append(out, syntax.Bound{
				ForParams: c.fieldFragment(b, "type_parameters"),
				Trait:     c.fieldFragment(b, "type"),
			})
		default:
			out = append(out, syntax.Bound{Trait: c.fragment(b)})
		}
	}
	return out
}

func (c *converter) impl(n *sitter.Node) *syntax.Item {
	it := &syntax.Item{
		Kind:     syntax.KindImpl,
		Generics: c.fieldFragment(n, "type_parameters"),
		Where:    c.where(n),
		Type:     c.fieldFragment(n, "type"),
		Trait:    c.fieldFragment(n, "trait"),
		Negative: hasToken(n, "!"),
		Unsafe:   hasToken(n, "unsafe"),
	}
	if body := n.ChildByFieldName("body"); body != nil {
		it.Children, _ = c.items(body)
	}
	return it
}

func (c *converter) module(n *sitter.Node) *syntax.Item {
	it := &syntax.Item{
		Kind:       syntax.KindModule,
		Name:       c.fieldText(n, "name"),
		Visibility: c.visibility(n),
	}
	if body := n.ChildByFieldName("body"); body != nil {
		it.Children, it.Attrs = c.items(body)
		it.Loaded = true
	}
	return it
}

func (c *converter) useTree(n *sitter.Node) *syntax.UseTree {
	switch n.Type() {
	case "use_as_clause":
		return &syntax.UseTree{
			Kind:  syntax.UseSimple,
			Path:  c.fieldFragment(n, "path"),
			Alias: c.fieldText(n, "alias"),
		}
	case "use_wildcard":
		t := &syntax.UseTree{Kind: syntax.UseGlob}
		if n.NamedChildCount() > 0 {
			t.Path = c.fragment(n.NamedChild(0))
		}
		return t
	case "use_list":
		return &syntax.UseTree{Kind: syntax.UseNested, Nested: c.useList(n)}
	case "scoped_use_list":
		t := &syntax.UseTree{Kind: syntax.UseNested, Path: c.fieldFragment(n, "path")}
		if list := n.ChildByFieldName("list"); list != nil {
			t.Nested = c.useList(list)
		}
		return t
	}
	return &syntax.UseTree{Kind: syntax.UseSimple, Path: c.fragment(n)}
}

func (c *converter) useList(n *sitter.Node) []*syntax.UseTree {
	var out []*syntax.UseTree
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		switch ch.Type() {
		case "line_comment", "block_comment", "attribute_item":
			continue
		}
		out = append(out, c.useTree(ch))
	}
	return out
}

// pathAttr returns the value of a #[path = "..."] attribute, or "".
func pathAttr(attrs []syntax.Fragment) string {
	for _, f := range attrs {
		if len(f) == 6 && f[0] == "#" && f[1] == "[" && f[2] == "path" && f[3] == "=" && f[5] == "]" {
			return unquote(f[4])
		}
	}
	return ""
}

// unquote strips the quotes from a string or raw string literal.
func unquote(lit string) string {
	if strings.HasPrefix(lit, "r") {
		s := strings.TrimLeft(lit[1:], "#")
		s = strings.TrimRight(s, "#")
		return strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
	}
	if s, err := strconv.Unquote(lit); err == nil {
		return s
	}
	return strings.Trim(lit, `"`)
}
