// Package symbols builds the cross-file symbol graph. Each file is walked
// once to collect its definitions and name references; the per-file results
// merge into a graph with deterministic ids, resolving names where a
// definition exists and retaining the edge as unresolved where none does.
package symbols

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
)

// Version invalidates cached extraction results when the schema or the
// extraction semantics change.
const Version = "2"

// notDefined is returned by the define helpers when a node yields no symbol.
const notDefined = ^uint32(0)

// moduleScope is the local id of the per-file module pseudo-symbol.
const moduleScope uint32 = 0

// FileSymbols is one file's extraction result. Symbol ids and reference
// endpoints are local ordinals, with 0 reserved for the module pseudo-symbol,
// until the merge assigns graph-wide ids.
type FileSymbols struct {
	Path    string             `json:"path"`
	Symbols []models.Symbol    `json:"symbols"`
	Refs    []models.Reference `json:"refs"`
}

// ModuleName is the name under which a file's module pseudo-symbol is known:
// the base name without its extension, so "pkg/util.go" becomes "util".
func ModuleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extract walks one parsed file and collects definitions and references in
// source order. The walk is deterministic for a given file content, which
// keeps the merged graph stable across runs.
func Extract(result *parser.ParseResult) *FileSymbols {
	root := result.Tree.RootNode()

	ex := &extractor{
		fs:       &FileSymbols{Path: result.Path},
		source:   result.Source,
		lang:     result.Language,
		defNames: make(map[uint32]bool),
		writes:   make(map[uint32]bool),
		declared: make(map[string]bool),
		seenRefs: make(map[refKey]bool),
	}

	// Local id 0 anchors top-level code: references made outside any
	// function originate from it, and entry-point roots attach to it.
	ex.fs.Symbols = append(ex.fs.Symbols, models.Symbol{
		ID:        moduleScope,
		Name:      ModuleName(result.Path),
		Qualified: ModuleName(result.Path),
		Kind:      models.SymbolModule,
		File:      result.Path,
		StartLine: 1,
		EndLine:   int(root.EndPoint().Row) + 1,
		Exported:  true,
	})

	ex.walk(root, moduleScope, "")
	return ex.fs
}

type refKey struct {
	name  string
	line  int
	write bool
}

type extractor struct {
	fs     *FileSymbols
	source []byte
	lang   parser.Language

	// defNames holds the byte offsets of definition name tokens, so the
	// reference pass never counts a definition as a use of itself.
	defNames map[uint32]bool
	// writes holds byte offsets of identifiers on the left of an assignment.
	writes map[uint32]bool
	// declared tracks names already defined in this file, for module-var
	// dedup: only the first module-scope assignment of a name defines it.
	declared map[string]bool
	// seenRefs collapses repeated references to one name on one line.
	seenRefs map[refKey]bool
}

// walk visits node and its named children. scope is the local id of the
// enclosing symbol; receiver is the enclosing class name, if any.
func (e *extractor) walk(node *sitter.Node, scope uint32, receiver string) {
	nodeType := node.Type()

	if parser.IsCommentType(nodeType) || parser.IsLiteralType(nodeType) {
		return
	}

	switch {
	case e.isFunctionType(nodeType):
		if id := e.defineFunction(node, receiver); id != notDefined {
			scope = id
		}

	case e.isClassType(nodeType):
		if id, name := e.defineClass(node); id != notDefined {
			scope = id
			receiver = name
		}

	case isImportType(nodeType):
		e.defineImports(node)
		// Names inside an import are bindings, not uses.
		return

	case isDeclarationType(nodeType):
		if scope == moduleScope {
			e.defineDeclaredVars(node, nodeType)
		}
		// Keep walking: initializer expressions are real references.

	case isAssignmentType(nodeType):
		e.markWrites(node)
		if scope == moduleScope && (e.lang == parser.LangPython || e.lang == parser.LangRuby) {
			e.defineAssignedVars(node)
		}

	case isIdentifierType(nodeType):
		e.addRef(node, scope)
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		e.walk(node.NamedChild(i), scope, receiver)
	}
}

// isFunctionType reports whether nodeType is a function definition in the
// file's language.
func (e *extractor) isFunctionType(nodeType string) bool {
	for _, ft := range parser.FunctionNodeTypes(e.lang) {
		if nodeType == ft {
			return true
		}
	}
	return false
}

func (e *extractor) isClassType(nodeType string) bool {
	for _, ct := range parser.ClassNodeTypes(e.lang) {
		if nodeType == ct {
			return true
		}
	}
	return false
}

func isImportType(nodeType string) bool {
	switch nodeType {
	case "import_declaration", // Go, Java
		"import_statement",      // Python, JS/TS
		"import_from_statement", // Python
		"use_declaration":       // Rust
		return true
	}
	return false
}

// isDeclarationType matches module-variable declaration forms. Python and
// Ruby declare by assignment and are handled separately.
func isDeclarationType(nodeType string) bool {
	switch nodeType {
	case "var_declaration", "const_declaration", // Go
		"lexical_declaration", "variable_declaration", // JS/TS
		"static_item", "const_item", // Rust
		"declaration": // C/C++
		return true
	}
	return false
}

func isAssignmentType(nodeType string) bool {
	switch nodeType {
	case "assignment", // Python, Ruby
		"augmented_assignment",     // Python
		"operator_assignment",      // Ruby
		"assignment_expression",    // JS/TS, Java, C/C++, Rust
		"augmented_assignment_expression", // JS/TS
		"compound_assignment_expr", // Rust
		"assignment_statement":     // Go
		return true
	}
	return false
}

// isIdentifierType matches the leaf node types that name things. Ruby class
// references are "constant" nodes; Go selector calls put the method name in
// a "field_identifier".
func isIdentifierType(nodeType string) bool {
	switch nodeType {
	case "identifier", "type_identifier", "field_identifier",
		"property_identifier", "shorthand_property_identifier",
		"package_identifier", "namespace_identifier",
		"constant", "global_variable":
		return true
	}
	return false
}

// skipRefName filters binding keywords that look like identifiers but never
// name a graph symbol.
func skipRefName(name string) bool {
	switch name {
	case "_", "self", "this", "cls", "super":
		return true
	}
	return false
}

// defineFunction records a function or method symbol. Anonymous functions
// yield no symbol; their references attribute to the enclosing scope.
func (e *extractor) defineFunction(node *sitter.Node, receiver string) uint32 {
	nameNode := e.functionNameNode(node)
	if nameNode == nil {
		return notDefined
	}
	name := parser.GetNodeText(nameNode, e.source)
	if name == "" {
		return notDefined
	}

	if e.lang == parser.LangGo && node.Type() == "method_declaration" {
		receiver = e.goReceiver(node)
	}
	// C++ out-of-class definitions carry the class in the name itself.
	if i := strings.LastIndex(name, "::"); i >= 0 {
		receiver = name[:i]
		name = name[i+2:]
	}

	kind := models.SymbolFunction
	if receiver != "" || node.Type() == "method_definition" || node.Type() == "singleton_method" {
		kind = models.SymbolMethod
	}

	e.defNames[nameNode.StartByte()] = true
	return e.define(models.Symbol{
		Name:      name,
		Qualified: qualify(e.fs.Path, receiver, name),
		Kind:      kind,
		File:      e.fs.Path,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  e.isExported(node, name),
		Receiver:  receiver,
	})
}

// functionNameNode finds the identifier that names a function definition.
func (e *extractor) functionNameNode(node *sitter.Node) *sitter.Node {
	switch e.lang {
	case parser.LangC, parser.LangCPP:
		// The name sits at the bottom of the declarator chain.
		cur := node.ChildByFieldName("declarator")
		for cur != nil {
			next := cur.ChildByFieldName("declarator")
			if next == nil {
				break
			}
			cur = next
		}
		if cur != nil {
			switch cur.Type() {
			case "identifier", "field_identifier", "qualified_identifier", "destructor_name":
				return cur
			}
		}
		return nil
	}

	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nameNode
	}

	// Arrow functions and function expressions take the name of the
	// variable or property they are assigned to.
	switch node.Type() {
	case "arrow_function", "function":
		parent := node.Parent()
		if parent == nil {
			return nil
		}
		switch parent.Type() {
		case "variable_declarator", "public_field_definition":
			return parent.ChildByFieldName("name")
		case "pair":
			return parent.ChildByFieldName("key")
		case "assignment_expression":
			left := parent.ChildByFieldName("left")
			if left != nil && left.Type() == "identifier" {
				return left
			}
		}
	}
	return nil
}

// goReceiver pulls the bare receiver type out of a Go method declaration,
// skipping pointers and type parameters.
func (e *extractor) goReceiver(node *sitter.Node) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	name := ""
	parser.Walk(recv, e.source, func(n *sitter.Node, src []byte) bool {
		if name != "" {
			return false
		}
		if n.Type() == "type_identifier" {
			name = parser.GetNodeText(n, src)
			return false
		}
		return true
	})
	return name
}

// defineClass records a class, struct, trait, or interface symbol.
func (e *extractor) defineClass(node *sitter.Node) (uint32, string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return notDefined, ""
	}
	name := parser.GetNodeText(nameNode, e.source)
	if name == "" {
		return notDefined, ""
	}

	e.defNames[nameNode.StartByte()] = true
	id := e.define(models.Symbol{
		Name:      name,
		Qualified: qualify(e.fs.Path, "", name),
		Kind:      models.SymbolClass,
		File:      e.fs.Path,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  e.isExported(node, name),
	})
	return id, name
}

// defineImports records the local bindings an import introduces, so later
// references to them resolve inside the file instead of dangling.
func (e *extractor) defineImports(node *sitter.Node) {
	switch e.lang {
	case parser.LangGo:
		for _, spec := range parser.FindNodesByType(node, e.source, "import_spec") {
			e.defineGoImport(spec)
		}
	case parser.LangPython:
		e.definePythonImports(node)
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		e.defineJSImports(node)
	case parser.LangRust:
		if arg := node.ChildByFieldName("argument"); arg != nil {
			e.defineRustUseBindings(arg)
		}
	case parser.LangJava:
		e.defineJavaImport(node)
	}
}

func (e *extractor) defineGoImport(spec *sitter.Node) {
	name := ""
	var nameNode *sitter.Node
	if alias := spec.ChildByFieldName("name"); alias != nil {
		name = parser.GetNodeText(alias, e.source)
		nameNode = alias
	} else if path := spec.ChildByFieldName("path"); path != nil {
		text := strings.Trim(parser.GetNodeText(path, e.source), "\"`")
		name = text[strings.LastIndex(text, "/")+1:]
	}
	if name == "" || name == "_" || name == "." {
		return
	}
	e.defineImportAlias(name, nameNode, spec)
}

func (e *extractor) definePythonImports(node *sitter.Node) {
	if node.Type() == "import_from_statement" {
		moduleName := node.ChildByFieldName("module_name")
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if moduleName != nil && child.StartByte() == moduleName.StartByte() {
				continue
			}
			switch child.Type() {
			case "dotted_name":
				text := parser.GetNodeText(child, e.source)
				e.defineImportAlias(lastSegment(text, "."), nil, child)
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					e.defineImportAlias(parser.GetNodeText(alias, e.source), alias, child)
				}
			}
		}
		return
	}

	// import a.b binds "a"; import x as y binds "y".
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			text := parser.GetNodeText(child, e.source)
			e.defineImportAlias(firstSegment(text, "."), nil, child)
		case "aliased_import":
			if alias := child.ChildByFieldName("alias"); alias != nil {
				e.defineImportAlias(parser.GetNodeText(alias, e.source), alias, child)
			}
		}
	}
}

func (e *extractor) defineJSImports(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		clause := node.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			child := clause.NamedChild(j)
			switch child.Type() {
			case "identifier": // default import
				e.defineImportAlias(parser.GetNodeText(child, e.source), child, child)
			case "namespace_import":
				for _, id := range parser.FindNodesByType(child, e.source, "identifier") {
					e.defineImportAlias(parser.GetNodeText(id, e.source), id, child)
				}
			case "named_imports":
				for _, spec := range parser.FindNodesByType(child, e.source, "import_specifier") {
					bound := spec.ChildByFieldName("alias")
					if bound == nil {
						bound = spec.ChildByFieldName("name")
					}
					if bound != nil {
						e.defineImportAlias(parser.GetNodeText(bound, e.source), bound, spec)
					}
				}
			}
		}
	}
}

// defineRustUseBindings walks a use tree and records the names it brings
// into scope: the final segment of each path, or its alias.
func (e *extractor) defineRustUseBindings(node *sitter.Node) {
	switch node.Type() {
	case "identifier":
		e.defineImportAlias(parser.GetNodeText(node, e.source), node, node)
	case "scoped_identifier":
		if name := node.ChildByFieldName("name"); name != nil {
			e.defineRustUseBindings(name)
		}
	case "use_as_clause":
		if alias := node.ChildByFieldName("alias"); alias != nil {
			e.defineImportAlias(parser.GetNodeText(alias, e.source), alias, node)
		}
	case "use_list":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			e.defineRustUseBindings(node.NamedChild(i))
		}
	case "scoped_use_list":
		if list := node.ChildByFieldName("list"); list != nil {
			e.defineRustUseBindings(list)
		}
	}
}

func (e *extractor) defineJavaImport(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "scoped_identifier" {
			continue
		}
		if name := child.ChildByFieldName("name"); name != nil {
			e.defineImportAlias(parser.GetNodeText(name, e.source), name, node)
		}
	}
}

func (e *extractor) defineImportAlias(name string, nameNode, at *sitter.Node) {
	if name == "" || e.declared[name] {
		return
	}
	if nameNode != nil {
		e.defNames[nameNode.StartByte()] = true
	}
	e.define(models.Symbol{
		Name:      name,
		Qualified: qualify(e.fs.Path, "", name),
		Kind:      models.SymbolImport,
		File:      e.fs.Path,
		StartLine: int(at.StartPoint().Row) + 1,
		EndLine:   int(at.EndPoint().Row) + 1,
		Exported:  false,
	})
}

// defineDeclaredVars records module variables from declaration statements.
// Only called at module scope.
func (e *extractor) defineDeclaredVars(node *sitter.Node, nodeType string) {
	switch nodeType {
	case "var_declaration", "const_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			spec := node.NamedChild(i)
			if spec.Type() == "var_spec" || spec.Type() == "const_spec" {
				e.defineGoSpecNames(spec)
			}
		}
	case "lexical_declaration", "variable_declaration":
		for _, decl := range parser.FindNodesByType(node, e.source, "variable_declarator") {
			// const f = () => {} defines a function, not a variable. The
			// function node claims the name when the walk reaches it; mark
			// the name token now so it is never counted as a reference.
			if value := decl.ChildByFieldName("value"); value != nil {
				switch value.Type() {
				case "arrow_function", "function":
					if name := decl.ChildByFieldName("name"); name != nil {
						e.defNames[name.StartByte()] = true
					}
					continue
				}
			}
			if name := decl.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				e.defineModuleVar(name, node)
			}
		}
	case "static_item", "const_item":
		if name := node.ChildByFieldName("name"); name != nil {
			e.defineModuleVar(name, node)
		}
	case "declaration":
		e.defineCVars(node)
	}
}

// defineGoSpecNames picks the declared identifiers out of a var_spec or
// const_spec: the identifiers before the type and value are the names,
// anything after is an initializer expression.
func (e *extractor) defineGoSpecNames(spec *sitter.Node) {
	limit := ^uint32(0)
	if t := spec.ChildByFieldName("type"); t != nil && t.StartByte() < limit {
		limit = t.StartByte()
	}
	if v := spec.ChildByFieldName("value"); v != nil && v.StartByte() < limit {
		limit = v.StartByte()
	}
	for i := 0; i < int(spec.NamedChildCount()); i++ {
		child := spec.NamedChild(i)
		if child.Type() == "identifier" && child.StartByte() < limit {
			e.defineModuleVar(child, spec)
		}
	}
}

// defineCVars handles top-level C/C++ declarations, skipping function
// prototypes.
func (e *extractor) defineCVars(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		cur := child
		for cur != nil && cur.Type() != "identifier" {
			if cur.Type() == "function_declarator" {
				cur = nil
				break
			}
			cur = cur.ChildByFieldName("declarator")
		}
		if cur != nil && cur.Type() == "identifier" {
			e.defineModuleVar(cur, node)
		}
	}
}

// defineAssignedVars handles Python and Ruby, where the first module-scope
// assignment of a name is its definition.
func (e *extractor) defineAssignedVars(node *sitter.Node) {
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}
	parser.Walk(left, e.source, func(n *sitter.Node, src []byte) bool {
		t := n.Type()
		if t == "identifier" || t == "constant" || t == "global_variable" {
			name := parser.GetNodeText(n, src)
			if name != "" && !e.declared[name] {
				e.defineModuleVar(n, node)
			}
		}
		// Do not descend into subscripts or attributes: a[0] = x and
		// obj.attr = x assign into existing objects, not new names.
		return t != "subscript" && t != "attribute" && t != "element_reference" && t != "call"
	})
}

func (e *extractor) defineModuleVar(nameNode, at *sitter.Node) {
	name := parser.GetNodeText(nameNode, e.source)
	if name == "" || name == "_" || e.declared[name] {
		return
	}
	e.defNames[nameNode.StartByte()] = true
	e.define(models.Symbol{
		Name:      name,
		Qualified: qualify(e.fs.Path, "", name),
		Kind:      models.SymbolVariable,
		File:      e.fs.Path,
		StartLine: int(at.StartPoint().Row) + 1,
		EndLine:   int(at.EndPoint().Row) + 1,
		Exported:  e.isExported(at, name),
	})
}

// define appends a symbol with the next local ordinal and returns its id.
func (e *extractor) define(sym models.Symbol) uint32 {
	sym.ID = uint32(len(e.fs.Symbols))
	e.fs.Symbols = append(e.fs.Symbols, sym)
	e.declared[sym.Name] = true
	return sym.ID
}

// markWrites flags every identifier on the left side of an assignment so
// its reference carries the write bit.
func (e *extractor) markWrites(node *sitter.Node) {
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}
	parser.Walk(left, e.source, func(n *sitter.Node, src []byte) bool {
		if isIdentifierType(n.Type()) {
			e.writes[n.StartByte()] = true
		}
		return true
	})
}

// addRef records one name reference from the current scope.
func (e *extractor) addRef(node *sitter.Node, scope uint32) {
	start := node.StartByte()
	if e.defNames[start] {
		return
	}
	name := parser.GetNodeText(node, e.source)
	if name == "" || skipRefName(name) {
		return
	}

	line := int(node.StartPoint().Row) + 1
	write := e.writes[start]
	key := refKey{name: name, line: line, write: write}
	if e.seenRefs[key] {
		return
	}
	e.seenRefs[key] = true

	e.fs.Refs = append(e.fs.Refs, models.Reference{
		From:  scope,
		Name:  name,
		File:  e.fs.Path,
		Line:  line,
		Write: write,
	})
}

// isExported applies each language's visibility convention: capitalization
// in Go, the underscore prefix in Python, an explicit pub in Rust.
// Languages without a cheap syntactic rule default to exported, which keeps
// downstream consumers conservative.
func (e *extractor) isExported(node *sitter.Node, name string) bool {
	switch e.lang {
	case parser.LangGo:
		r, _ := utf8.DecodeRuneInString(name)
		return unicode.IsUpper(r)
	case parser.LangPython:
		return !strings.HasPrefix(name, "_")
	case parser.LangRust:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if node.NamedChild(i).Type() == "visibility_modifier" {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func qualify(path, receiver, name string) string {
	if receiver != "" {
		return ModuleName(path) + "." + receiver + "." + name
	}
	return ModuleName(path) + "." + name
}

func firstSegment(s, sep string) string {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i]
	}
	return s
}

func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}
