// Package mapcss parses a MapCSS subset and matches parsed rules
// against map entities to produce drawing styles.
//
// The supported grammar covers what the bundled stylesheets use:
//
//	/* comment */
//	@import "other.mapcss";
//	way|z10-14[highway][name=Main] { color: #ffffff; width: 2; }
//	area[landuse=forest], area[natural=wood] { fill-color: #add19e; }
//	canvas { fill-color: #f1eee8; }
//
// Selectors name an element kind (node, way, area, canvas or *), an
// optional zoom range, and any number of tag tests. Declarations are
// property/value pairs; value interpretation is left to the Styler.
package mapcss

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Rule pairs selectors with the declarations they apply.
type Rule struct {
	Selectors    []Selector
	Declarations []Declaration
}

// Selector matches entities by element kind, zoom range and tag tests.
type Selector struct {
	Element string
	MinZoom uint32
	MaxZoom uint32 // 0 means unbounded
	Tests   []TagTest
}

// TagTest requires a tag to be present, optionally with an exact value.
type TagTest struct {
	Key   string
	Value string // empty means presence test
}

// Declaration is a single property assignment.
type Declaration struct {
	Property string
	Value    string
}

// SplitStylesheetPath splits a stylesheet path into the base directory
// and the file name. Imports are resolved relative to the base
// directory, which is also where the drawer looks for resources.
func SplitStylesheetPath(path string) (string, string, error) {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", "", fmt.Errorf("failed to extract the file name from %q", path)
	}
	return filepath.Dir(path), name, nil
}

// ParseFile parses the named stylesheet under basePath, following
// @import directives relative to basePath.
func ParseFile(basePath, fileName string) ([]Rule, error) {
	return parseFile(basePath, fileName, make(map[string]bool))
}

func parseFile(basePath, fileName string, seen map[string]bool) ([]Rule, error) {
	path := filepath.Join(basePath, fileName)
	if seen[path] {
		return nil, fmt.Errorf("import cycle through %q", path)
	}
	seen[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stylesheet %q: %w", path, err)
	}

	p := &parser{src: stripComments(string(data)), file: path}
	var rules []Rule
	for {
		p.skipSpace()
		if p.eof() {
			return rules, nil
		}

		if p.consume("@import") {
			name, err := p.importName()
			if err != nil {
				return nil, err
			}
			imported, err := parseFile(basePath, name, seen)
			if err != nil {
				return nil, err
			}
			rules = append(rules, imported...)
			continue
		}

		rule, err := p.rule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
}

type parser struct {
	src  string
	pos  int
	file string
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: offset %d: %s", p.file, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) consume(prefix string) bool {
	if strings.HasPrefix(p.src[p.pos:], prefix) {
		p.pos += len(prefix)
		return true
	}
	return false
}

// importName parses `"file.mapcss";` after the @import keyword.
func (p *parser) importName() (string, error) {
	p.skipSpace()
	if p.eof() || p.src[p.pos] != '"' {
		return "", p.errorf("@import expects a quoted file name")
	}
	p.pos++
	end := strings.IndexByte(p.src[p.pos:], '"')
	if end < 0 {
		return "", p.errorf("unterminated @import file name")
	}
	name := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	p.skipSpace()
	if !p.consume(";") {
		return "", p.errorf("@import must end with a semicolon")
	}
	return name, nil
}

func (p *parser) rule() (Rule, error) {
	var rule Rule
	for {
		sel, err := p.selector()
		if err != nil {
			return Rule{}, err
		}
		rule.Selectors = append(rule.Selectors, sel)

		p.skipSpace()
		if p.consume(",") {
			p.skipSpace()
			continue
		}
		break
	}

	if !p.consume("{") {
		return Rule{}, p.errorf("expected '{' after selector")
	}

	for {
		p.skipSpace()
		if p.consume("}") {
			return rule, nil
		}
		if p.eof() {
			return Rule{}, p.errorf("unterminated rule body")
		}

		decl, err := p.declaration()
		if err != nil {
			return Rule{}, err
		}
		rule.Declarations = append(rule.Declarations, decl)
	}
}

func (p *parser) selector() (Selector, error) {
	p.skipSpace()
	element := p.ident()
	if element == "" && !p.consume("*") {
		return Selector{}, p.errorf("expected selector element")
	}
	if element == "" {
		element = "*"
	}

	sel := Selector{Element: element}

	if p.consume("|z") {
		if err := p.zoomRange(&sel); err != nil {
			return Selector{}, err
		}
	}

	for p.consume("[") {
		test, err := p.tagTest()
		if err != nil {
			return Selector{}, err
		}
		sel.Tests = append(sel.Tests, test)
	}

	return sel, nil
}

// zoomRange parses `12`, `12-`, `-14` or `12-14` after `|z`.
func (p *parser) zoomRange(sel *Selector) error {
	lo := p.number()
	dash := p.consume("-")
	hi := p.number()

	if lo == "" && hi == "" {
		return p.errorf("empty zoom range")
	}

	if lo != "" {
		v, err := strconv.ParseUint(lo, 10, 32)
		if err != nil {
			return p.errorf("invalid zoom %q", lo)
		}
		sel.MinZoom = uint32(v)
		if !dash {
			sel.MaxZoom = uint32(v)
			return nil
		}
	}
	if hi != "" {
		v, err := strconv.ParseUint(hi, 10, 32)
		if err != nil {
			return p.errorf("invalid zoom %q", hi)
		}
		sel.MaxZoom = uint32(v)
	}
	return nil
}

func (p *parser) tagTest() (TagTest, error) {
	key := p.ident()
	if key == "" {
		return TagTest{}, p.errorf("expected tag key in selector")
	}
	test := TagTest{Key: key}
	if p.consume("=") {
		test.Value = p.ident()
		if test.Value == "" {
			return TagTest{}, p.errorf("expected tag value after '='")
		}
	}
	if !p.consume("]") {
		return TagTest{}, p.errorf("expected ']' to close tag test")
	}
	return test, nil
}

func (p *parser) declaration() (Declaration, error) {
	prop := p.ident()
	if prop == "" {
		return Declaration{}, p.errorf("expected property name")
	}
	p.skipSpace()
	if !p.consume(":") {
		return Declaration{}, p.errorf("expected ':' after property %q", prop)
	}
	p.skipSpace()

	end := strings.IndexByte(p.src[p.pos:], ';')
	if end < 0 {
		return Declaration{}, p.errorf("declaration %q must end with a semicolon", prop)
	}
	value := strings.TrimSpace(p.src[p.pos : p.pos+end])
	p.pos += end + 1

	value = strings.Trim(value, `"`)
	if value == "" {
		return Declaration{}, p.errorf("empty value for property %q", prop)
	}
	return Declaration{Property: prop, Value: value}, nil
}

// ident reads [A-Za-z0-9_-]+ without consuming surrounding space.
func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			p.pos++
			continue
		}
		// '-' is valid inside identifiers (fill-color) but also the
		// zoom range separator, which never follows a letter here.
		if c == '-' && p.pos > start {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// number reads a digit run.
func (p *parser) number() string {
	start := p.pos
	for !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	return p.src[start:p.pos]
}

// stripComments removes /* */ comments and // line comments.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); {
		if strings.HasPrefix(src[i:], "/*") {
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				break
			}
			i += end + 4
			continue
		}
		if strings.HasPrefix(src[i:], "//") {
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				break
			}
			i += end
			continue
		}
		b.WriteByte(src[i])
		i++
	}
	return b.String()
}
