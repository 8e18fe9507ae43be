package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// FunctionNode represents a parsed function or method.
type FunctionNode struct {
	Name      string
	Receiver  string
	StartLine uint32
	EndLine   uint32
	Body      *sitter.Node
	Node      *sitter.Node
}

// GetFunctions extracts all function definitions from parsed code.
func GetFunctions(result *ParseResult) []FunctionNode {
	var functions []FunctionNode
	root := result.Tree.RootNode()

	funcTypes := FunctionNodeTypes(result.Language)

	Walk(root, result.Source, func(node *sitter.Node, source []byte) bool {
		for _, ft := range funcTypes {
			if node.Type() == ft {
				fn := extractFunction(node, source, result.Language)
				if fn != nil {
					functions = append(functions, *fn)
				}
				break
			}
		}
		return true
	})

	return functions
}

// FunctionNodeTypes returns the AST node types for functions in each language.
func FunctionNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return []string{"function_declaration", "method_declaration"}
	case LangRust:
		return []string{"function_item"}
	case LangPython:
		return []string{"function_definition"}
	case LangTypeScript, LangJavaScript, LangTSX:
		return []string{"function_declaration", "function", "arrow_function", "method_definition"}
	case LangJava:
		return []string{"method_declaration", "constructor_declaration"}
	case LangC, LangCPP:
		return []string{"function_definition"}
	case LangRuby:
		return []string{"method", "singleton_method"}
	default:
		return nil
	}
}

// extractFunction extracts function details from an AST node.
func extractFunction(node *sitter.Node, source []byte, lang Language) *FunctionNode {
	fn := &FunctionNode{
		StartLine: node.StartPoint().Row + 1,
		EndLine:   node.EndPoint().Row + 1,
		Node:      node,
	}

	switch lang {
	case LangC, LangCPP:
		// C/C++ function names sit inside the declarator chain.
		if declNode := node.ChildByFieldName("declarator"); declNode != nil {
			if nameNode := declNode.ChildByFieldName("declarator"); nameNode != nil {
				fn.Name = GetNodeText(nameNode, source)
			}
		}
	default:
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			fn.Name = GetNodeText(nameNode, source)
		}
	}

	// Go methods carry the receiver type; other languages get the enclosing
	// class from GetClasses instead.
	if lang == LangGo && node.Type() == "method_declaration" {
		if recv := node.ChildByFieldName("receiver"); recv != nil {
			fn.Receiver = receiverTypeName(recv, source)
		}
	}

	fn.Body = node.ChildByFieldName("body")
	if fn.Body == nil {
		fn.Body = node.ChildByFieldName("block")
	}
	if fn.Body == nil {
		// Ruby uses body_statement for method bodies
		fn.Body = node.ChildByFieldName("body_statement")
	}

	return fn
}

// receiverTypeName digs the bare type name out of a Go receiver parameter
// list, skipping pointers and generics.
func receiverTypeName(recv *sitter.Node, source []byte) string {
	name := ""
	Walk(recv, source, func(n *sitter.Node, src []byte) bool {
		if name != "" {
			return false
		}
		if n.Type() == "type_identifier" {
			name = GetNodeText(n, src)
			return false
		}
		return true
	})
	return name
}

// ClassNode represents a parsed class, struct, or module.
type ClassNode struct {
	Name      string
	StartLine uint32
	EndLine   uint32
	Node      *sitter.Node
}

// GetClasses extracts all class definitions from parsed code.
func GetClasses(result *ParseResult) []ClassNode {
	var classes []ClassNode
	root := result.Tree.RootNode()

	classTypes := ClassNodeTypes(result.Language)

	Walk(root, result.Source, func(node *sitter.Node, source []byte) bool {
		for _, ct := range classTypes {
			if node.Type() == ct {
				cls := ClassNode{
					StartLine: node.StartPoint().Row + 1,
					EndLine:   node.EndPoint().Row + 1,
					Node:      node,
				}
				if nameNode := node.ChildByFieldName("name"); nameNode != nil {
					cls.Name = GetNodeText(nameNode, source)
				}
				if cls.Name != "" {
					classes = append(classes, cls)
				}
				return false // Don't descend into class body here
			}
		}
		return true
	})

	return classes
}

// ClassNodeTypes returns the AST node types for classes in each language.
func ClassNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return []string{"type_spec"}
	case LangRust:
		return []string{"struct_item", "enum_item", "trait_item"}
	case LangPython:
		return []string{"class_definition"}
	case LangTypeScript, LangJavaScript, LangTSX:
		return []string{"class_declaration", "class"}
	case LangJava:
		return []string{"class_declaration", "interface_declaration"}
	case LangCPP:
		return []string{"class_specifier", "struct_specifier"}
	case LangRuby:
		return []string{"class", "module"}
	default:
		return nil
	}
}

// IsCommentType reports whether a node type is a comment in any supported
// grammar.
func IsCommentType(nodeType string) bool {
	switch nodeType {
	case "comment", "line_comment", "block_comment":
		return true
	}
	return false
}

// IsLiteralType reports whether a node type is a string/number/char literal.
// Literal subtrees collapse to a placeholder during duplicate normalization;
// keyword-like values (true, nil, None) stay as-is.
func IsLiteralType(nodeType string) bool {
	switch nodeType {
	// Go
	case "interpreted_string_literal", "raw_string_literal", "int_literal",
		"float_literal", "imaginary_literal", "rune_literal":
		return true
	// Python / Ruby / JS-family
	case "string", "integer", "float", "template_string", "number", "regex",
		"simple_symbol", "heredoc_body":
		return true
	// C / C++ / Java / Rust
	case "string_literal", "char_literal", "character_literal",
		"number_literal", "integer_literal", "concatenated_string",
		"system_lib_string", "decimal_integer_literal", "hex_integer_literal",
		"octal_integer_literal", "binary_integer_literal",
		"decimal_floating_point_literal", "hex_floating_point_literal":
		return true
	}
	return false
}

// Token is one lexical unit from a leaf-token walk.
type Token struct {
	Text    string
	Row     uint32
	Literal bool
}

// LeafTokens walks a subtree emitting its leaf tokens in source order.
// Comments are skipped; literal subtrees collapse to a single literal token,
// so formatting and literal values never affect downstream fingerprints.
func LeafTokens(node *sitter.Node, source []byte) []Token {
	var tokens []Token
	WalkTyped(node, source, func(n *sitter.Node, nodeType string, src []byte) bool {
		if IsCommentType(nodeType) {
			return false
		}
		if IsLiteralType(nodeType) {
			tokens = append(tokens, Token{Text: nodeType, Row: n.StartPoint().Row, Literal: true})
			return false
		}
		if n.ChildCount() == 0 {
			text := GetNodeText(n, src)
			if text != "" {
				tokens = append(tokens, Token{Text: text, Row: n.StartPoint().Row})
			}
		}
		return true
	})
	return tokens
}
