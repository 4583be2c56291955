package chunk

import (
	"context"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

var recordTypes = map[string]SymbolType{
	"class_specifier":  SymbolTypeClass,
	"struct_specifier": SymbolTypeStruct,
	"union_specifier":  SymbolTypeUnion,
	"enum_specifier":   SymbolTypeEnum,
}

// ExtractSymbols returns the C++ declarations in source in document order:
// function definitions, classes, structs, unions and enums with a body,
// and named namespaces.
func ExtractSymbols(ctx context.Context, source []byte) ([]Symbol, error) {
	p := NewParser()
	defer p.Close()

	tree, err := p.Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var symbols []Symbol
	prevByte, prevChar := 0, 0
	walk(tree.RootNode(), false, func(n *sitter.Node, inRecord bool) {
		sym, ok := symbolFromNode(n, source, inRecord)
		if !ok {
			return
		}
		// Preorder walk: start bytes never decrease.
		b := int(n.StartByte())
		prevChar += utf8.RuneCount(source[prevByte:b])
		prevByte = b
		sym.StartChar = prevChar + 1
		symbols = append(symbols, sym)
	})

	return symbols, nil
}

func walk(n *sitter.Node, inRecord bool, fn func(*sitter.Node, bool)) {
	if n == nil {
		return
	}
	fn(n, inRecord)
	if _, ok := recordTypes[n.Type()]; ok {
		inRecord = true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), inRecord, fn)
	}
}

func symbolFromNode(n *sitter.Node, source []byte, inRecord bool) (Symbol, bool) {
	sym := Symbol{
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}

	switch t := n.Type(); t {
	case "function_definition":
		decl := functionDeclarator(n.ChildByFieldName("declarator"))
		if decl == nil {
			return sym, false
		}
		name := decl.ChildByFieldName("declarator")
		if name == nil {
			return sym, false
		}
		sym.Name = name.Content(source)
		sym.Type = SymbolTypeFunction
		if inRecord || name.Type() == "qualified_identifier" || name.Type() == "field_identifier" {
			sym.Type = SymbolTypeMethod
		}
	case "namespace_definition":
		name := n.ChildByFieldName("name")
		if name == nil {
			return sym, false
		}
		sym.Name = name.Content(source)
		sym.Type = SymbolTypeNamespace
	default:
		kind, ok := recordTypes[t]
		if !ok || n.ChildByFieldName("body") == nil {
			return sym, false
		}
		name := n.ChildByFieldName("name")
		if name == nil {
			return sym, false
		}
		sym.Name = name.Content(source)
		sym.Type = kind
	}

	return sym, sym.Name != ""
}

// functionDeclarator unwraps pointer and reference declarators.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		if n.Type() == "function_declarator" {
			return n
		}
		next := n.ChildByFieldName("declarator")
		if next == nil {
			// reference_declarator has no field name on its child
			if n.NamedChildCount() == 0 {
				return nil
			}
			next = n.NamedChild(0)
		}
		n = next
	}
	return nil
}

// Annotate attaches the names of symbols that start inside each chunk.
// chunks and symbols must come from the same file.
func Annotate(chunks []*Chunk, symbols []Symbol) {
	for _, c := range chunks {
		c.Symbols = c.Symbols[:0]
		for _, s := range symbols {
			pos := s.StartChar
			if c.Unit == UnitLines {
				pos = s.StartLine
			}
			if pos >= c.StartOffset && pos <= c.EndOffset {
				c.Symbols = append(c.Symbols, s.Name)
			}
		}
		if len(c.Symbols) == 0 {
			c.Symbols = nil
		}
	}
}
