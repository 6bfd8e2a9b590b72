package contextbuilder

import (
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// Related file kinds.
const (
	RelatedTest  = "test"
	RelatedStyle = "style"
	RelatedTypes = "types"
)

var (
	testSuffixes  = []string{".test", ".spec"}
	testExts      = []string{".js", ".jsx", ".ts", ".tsx"}
	styleExts     = []string{".css", ".scss", ".sass", ".less", ".module.css", ".module.scss"}
	maxUsageLines = 50
)

// relatedFiles probes for co-located test, style and type declaration files.
func (b *Builder) relatedFiles(file string) []RelatedFile {
	dir := path.Dir(file)
	stem := stemOf(file)

	var candidates []RelatedFile
	for _, suffix := range testSuffixes {
		for _, ext := range testExts {
			candidates = append(candidates, RelatedFile{Path: path.Join(dir, stem+suffix+ext), Kind: RelatedTest})
		}
	}
	for _, ext := range testExts {
		candidates = append(candidates,
			RelatedFile{Path: path.Join(dir, "__tests__", stem+ext), Kind: RelatedTest},
			RelatedFile{Path: path.Join(dir, "__tests__", stem+".test"+ext), Kind: RelatedTest},
		)
	}
	for _, ext := range styleExts {
		candidates = append(candidates, RelatedFile{Path: path.Join(dir, stem+ext), Kind: RelatedStyle})
	}
	candidates = append(candidates, RelatedFile{Path: path.Join(dir, stem+".d.ts"), Kind: RelatedTypes})

	found := make([]RelatedFile, 0)
	seen := map[string]bool{file: true}
	for _, c := range candidates {
		if seen[c.Path] {
			continue
		}
		seen[c.Path] = true
		if ok, err := afero.Exists(b.fs, b.abs(c.Path)); err == nil && ok {
			found = append(found, c)
		}
	}
	return found
}

// stemOf strips the extension and any test or declaration infix.
func stemOf(file string) string {
	base := path.Base(file)
	for _, suffix := range []string{".d.ts", ".module.css"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	for _, suffix := range testSuffixes {
		base = strings.TrimSuffix(base, suffix)
	}
	return base
}

var (
	importDefaultAndNamed = regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?([\w$*{}\s,]+?)\s+from\s+['"]`)
	requireBinding        = regexp.MustCompile(`\b(?:const|let|var)\s+([\w$]+|\{[^}]*\})\s*=\s*require\s*\(`)
	importLine            = regexp.MustCompile(`^\s*(?:import\b|(?:const|let|var)\s+[^=]+=\s*require\s*\()`)
	identPattern          = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

// importedNames returns the local bindings introduced by import statements
// and require calls.
func importedNames(content string) []string {
	var clauses []string
	for _, m := range importDefaultAndNamed.FindAllStringSubmatch(content, -1) {
		clauses = append(clauses, m[1])
	}
	for _, m := range requireBinding.FindAllStringSubmatch(content, -1) {
		clauses = append(clauses, m[1])
	}

	var names []string
	seen := make(map[string]bool)
	for _, clause := range clauses {
		clause = strings.NewReplacer("{", ",", "}", ",").Replace(clause)
		for _, part := range strings.Split(clause, ",") {
			part = strings.TrimSpace(part)
			part = strings.TrimPrefix(part, "type ")
			if idx := strings.LastIndex(part, " as "); idx >= 0 {
				part = strings.TrimSpace(part[idx+len(" as "):])
			}
			if idx := strings.Index(part, ":"); idx >= 0 {
				part = strings.TrimSpace(part[idx+1:])
			}
			if !identPattern.MatchString(part) || seen[part] {
				continue
			}
			seen[part] = true
			names = append(names, part)
		}
	}
	return names
}

// usages lists lines outside import statements that reference imported names.
func usages(content string) []Usage {
	names := importedNames(content)
	out := make([]Usage, 0)
	if len(names) == 0 {
		return out
	}

	patterns := make([]*regexp.Regexp, len(names))
	for i, n := range names {
		patterns[i] = regexp.MustCompile(`(^|[^\w$])` + regexp.QuoteMeta(n) + `($|[^\w$])`)
	}

	inImport := false
	for i, line := range strings.Split(content, "\n") {
		if inImport {
			inImport = !strings.Contains(line, "from")
			continue
		}
		if importLine.MatchString(line) {
			// import { a,
			//   b } from './x'
			inImport = strings.Contains(line, "{") && !strings.Contains(line, "from")
			continue
		}
		for j, re := range patterns {
			if re.MatchString(line) {
				out = append(out, Usage{Identifier: names[j], Line: i + 1, Text: strings.TrimSpace(line)})
				if len(out) >= maxUsageLines {
					return out
				}
			}
		}
	}
	return out
}
