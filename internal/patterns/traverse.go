package patterns

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/sha1n/mcp-codeintel-server/internal/domain"
	"github.com/sha1n/mcp-codeintel-server/internal/ignore"
)

// Idiom catalog labels.
const (
	IdiomHigherOrderComponent = "higher-order-component"
	IdiomCustomHook           = "custom-hook"
	IdiomStoreSubscription    = "store-subscription"
	IdiomContextProvider      = "context-provider"
	IdiomRenderProp           = "render-prop"
)

// Catalog lists every idiom label the analyzer can report.
var Catalog = []string{
	IdiomHigherOrderComponent,
	IdiomCustomHook,
	IdiomStoreSubscription,
	IdiomContextProvider,
	IdiomRenderProp,
}

var (
	hocName      = regexp.MustCompile(`^with[A-Z]`)
	hookName     = regexp.MustCompile(`^use[A-Z]`)
	extendsName  = regexp.MustCompile(`extends\s+([\w$.]+)`)
	componentExt = regexp.MustCompile(`(^|\.)(Component|PureComponent)$`)
)

var storeCalls = map[string]bool{
	"useSelector": true,
	"useStore":    true,
	"connect":     true,
}

// languageFor picks the grammar for a file, or nil when unsupported.
func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return tsx.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	default:
		return nil
	}
}

// Analyze produces the PatternRecord for src. Unsupported files, binary
// content and parse failures yield an empty record. The second result reports
// whether the source was parsed.
func Analyze(ctx context.Context, relPath string, src []byte) (domain.PatternRecord, bool) {
	rec := emptyRecord(relPath)

	lang := languageFor(relPath)
	if lang == nil || ignore.IsBinary(src) {
		return rec, false
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		slog.Debug("Parse failed", "path", relPath, "error", err)
		return rec, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		slog.Debug("Source has syntax errors", "path", relPath)
		return rec, false
	}
	v := &visitor{src: src, rec: &rec, idioms: make(map[string]bool)}
	v.walk(root, true)

	rec.ComplexityScore = 1 + countBranches(root)
	rec.CodeStyle = DetectStyle(string(src))
	return rec, true
}

func emptyRecord(relPath string) domain.PatternRecord {
	return domain.PatternRecord{
		Path:               relPath,
		Imports:            []string{},
		Exports:            []string{},
		Components:         []domain.ComponentDef{},
		Functions:          []domain.FunctionDef{},
		Classes:            []domain.ClassDef{},
		IdentifiedPatterns: []domain.Idiom{},
		CodeStyle:          domain.DefaultCodeStyle,
		ComplexityScore:    1,
	}
}

type visitor struct {
	src    []byte
	rec    *domain.PatternRecord
	idioms map[string]bool
}

func (v *visitor) walk(n *sitter.Node, topLevel bool) {
	switch n.Type() {
	case "import_statement":
		if s := n.ChildByFieldName("source"); s != nil {
			v.rec.Imports = appendUnique(v.rec.Imports, unquote(v.text(s)))
		}

	case "export_statement":
		v.export(n)

	case "function_declaration", "generator_function_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			v.function(n, v.text(name), line(n), topLevel, "function")
		}

	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			decl := n.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			name := decl.ChildByFieldName("name")
			value := decl.ChildByFieldName("value")
			if name == nil || value == nil || name.Type() != "identifier" || !isFunction(value) {
				continue
			}
			kind := "function"
			if value.Type() == "arrow_function" {
				kind = "arrow"
			}
			v.function(value, v.text(name), line(decl), topLevel, kind)
		}

	case "class_declaration", "abstract_class_declaration":
		v.class(n, topLevel)

	case "call_expression":
		v.call(n)

	case "jsx_opening_element", "jsx_self_closing_element":
		if name := n.ChildByFieldName("name"); name != nil {
			if tag := v.text(name); strings.HasSuffix(tag, ".Provider") {
				v.idiom(IdiomContextProvider, tag, line(n))
			}
		}

	case "jsx_attribute":
		v.jsxAttribute(n)

	case "jsx_expression":
		if p := n.Parent(); p != nil && p.Type() == "jsx_element" && hasFunctionChild(n) {
			v.idiom(IdiomRenderProp, "children", line(n))
		}
	}

	childTop := topLevel && (n.Type() == "program" || n.Type() == "export_statement")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		v.walk(n.NamedChild(i), childTop)
	}
}

func (v *visitor) export(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "default":
			v.rec.Exports = appendUnique(v.rec.Exports, "default")
		case "*":
			v.rec.Exports = appendUnique(v.rec.Exports, "*")
		case "export_clause":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "export_specifier" {
					continue
				}
				name := spec.ChildByFieldName("alias")
				if name == nil {
					name = spec.ChildByFieldName("name")
				}
				if name != nil {
					v.rec.Exports = appendUnique(v.rec.Exports, unquote(v.text(name)))
				}
			}
		}
	}

	decl := n.ChildByFieldName("declaration")
	if decl == nil {
		return
	}
	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			d := decl.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				v.rec.Exports = appendUnique(v.rec.Exports, v.text(name))
			}
		}
	default:
		if name := decl.ChildByFieldName("name"); name != nil {
			v.rec.Exports = appendUnique(v.rec.Exports, v.text(name))
		}
	}
}

func (v *visitor) function(fn *sitter.Node, name string, ln int, topLevel bool, kind string) {
	v.rec.Functions = append(v.rec.Functions, domain.FunctionDef{
		Name:       name,
		Line:       ln,
		Params:     paramCount(fn),
		Async:      isAsync(fn),
		Complexity: 1 + countBranches(fn),
	})

	if topLevel && isCapitalized(name) {
		v.rec.Components = append(v.rec.Components, domain.ComponentDef{Name: name, Kind: kind, Line: ln})
	}
	if hocName.MatchString(name) {
		v.idiom(IdiomHigherOrderComponent, name, ln)
	}
	if hookName.MatchString(name) {
		v.idiom(IdiomCustomHook, name, ln)
	}
}

func (v *visitor) class(n *sitter.Node, topLevel bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}

	def := domain.ClassDef{Name: v.text(name), Line: line(n), Methods: []string{}}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "class_heritage" {
			continue
		}
		if m := extendsName.FindStringSubmatch(v.text(c)); m != nil {
			def.Extends = m[1]
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			m := body.NamedChild(i)
			if m.Type() != "method_definition" {
				continue
			}
			if mn := m.ChildByFieldName("name"); mn != nil {
				def.Methods = append(def.Methods, v.text(mn))
			}
		}
	}

	v.rec.Classes = append(v.rec.Classes, def)

	if topLevel && def.Extends != "" && componentExt.MatchString(def.Extends) {
		v.rec.Components = append(v.rec.Components, domain.ComponentDef{Name: def.Name, Kind: "class", Line: def.Line})
	}
}

func (v *visitor) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var callee string
	switch fn.Type() {
	case "identifier":
		callee = v.text(fn)
	case "member_expression":
		if p := fn.ChildByFieldName("property"); p != nil {
			callee = v.text(p)
		}
	default:
		return
	}

	switch {
	case storeCalls[callee]:
		v.idiom(IdiomStoreSubscription, callee, line(n))
	case callee == "subscribe" && fn.Type() == "member_expression":
		v.idiom(IdiomStoreSubscription, v.text(fn), line(n))
	case callee == "createContext":
		v.idiom(IdiomContextProvider, callee, line(n))
	}
}

func (v *visitor) jsxAttribute(n *sitter.Node) {
	if n.NamedChildCount() < 2 {
		return
	}
	attr := n.NamedChild(0)
	if attr.Type() != "property_identifier" || v.text(attr) != "render" {
		return
	}
	value := n.NamedChild(1)
	if value.Type() == "jsx_expression" && hasFunctionChild(value) {
		v.idiom(IdiomRenderProp, "render", line(n))
	}
}

func (v *visitor) idiom(kind, name string, ln int) {
	key := kind + "\x00" + name
	if v.idioms[key] {
		return
	}
	v.idioms[key] = true
	v.rec.IdentifiedPatterns = append(v.rec.IdentifiedPatterns, domain.Idiom{Type: kind, Name: name, Line: ln})
}

func (v *visitor) text(n *sitter.Node) string {
	return n.Content(v.src)
}

// countBranches counts branching constructs and short-circuit operators in
// the subtree rooted at n.
func countBranches(n *sitter.Node) int {
	count := 0
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if isBranch(cur) {
			count++
		}
		for i := 0; i < int(cur.NamedChildCount()); i++ {
			stack = append(stack, cur.NamedChild(i))
		}
	}
	return count
}

func isBranch(n *sitter.Node) bool {
	switch n.Type() {
	case "if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_case", "catch_clause", "ternary_expression":
		return true
	case "binary_expression":
		if op := n.ChildByFieldName("operator"); op != nil {
			switch op.Type() {
			case "&&", "||", "??":
				return true
			}
		}
	}
	return false
}

func isFunction(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func hasFunctionChild(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if isFunction(n.NamedChild(i)) {
			return true
		}
	}
	return false
}

func paramCount(fn *sitter.Node) int {
	if p := fn.ChildByFieldName("parameters"); p != nil {
		count := 0
		for i := 0; i < int(p.NamedChildCount()); i++ {
			if p.NamedChild(i).Type() != "comment" {
				count++
			}
		}
		return count
	}
	if fn.ChildByFieldName("parameter") != nil {
		return 1
	}
	return 0
}

func isAsync(fn *sitter.Node) bool {
	for i := 0; i < int(fn.ChildCount()); i++ {
		if fn.Child(i).Type() == "async" {
			return true
		}
	}
	return false
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func isCapitalized(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func unquote(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '\'', '"', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
