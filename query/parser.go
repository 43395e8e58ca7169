package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parse reads query source into a pattern AST. A malformed top-level pattern
// is reported in File.Errors and skipped; parsing resumes at the next
// top-level form, so the remaining patterns are still returned.
func Parse(source string) *File {
	p := &queryParser{input: source}
	f := &File{Inherits: ParseInherits(source)}
	lastFailed := false

	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.input) {
			break
		}
		start := p.pos

		if p.peekPredicate() {
			// A predicate written after its pattern belongs to that pattern.
			pred, err := p.parsePredicate()
			switch {
			case err != nil:
				f.Errors = append(f.Errors, err)
				p.recover(start)
			case lastFailed:
				// Belongs to a pattern that was already dropped.
			case len(f.Patterns) == 0:
				f.Errors = append(f.Errors, p.errorAt(start, SyntaxInvalidPredicate, "predicate must follow a pattern"))
			default:
				last := &f.Patterns[len(f.Patterns)-1]
				last.Predicates = append(last.Predicates, pred)
				last.End = p.pos
			}
			continue
		}

		p.preds = nil
		root, err := p.parseTopLevel()
		if err != nil {
			f.Errors = append(f.Errors, err)
			p.recover(start)
			lastFailed = true
			continue
		}
		lastFailed = false
		f.Patterns = append(f.Patterns, ParsedPattern{
			Root:       root,
			Predicates: p.preds,
			Offset:     start,
			End:        p.pos,
		})
	}
	return f
}

// ParseInherits extracts the names from a leading "; inherits: a,b" comment.
// Only the comment block at the top of the source is considered.
func ParseInherits(source string) []string {
	var names []string
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, ";") {
			break
		}
		body := strings.TrimSpace(strings.TrimLeft(trimmed, ";"))
		rest, ok := strings.CutPrefix(body, "inherits:")
		if !ok {
			continue
		}
		for _, name := range strings.Split(rest, ",") {
			name = strings.Trim(strings.TrimSpace(name), "()")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// queryParser is a recursive-descent reader over .scm query text.
type queryParser struct {
	input string
	pos   int
	preds []Predicate
}

func (p *queryParser) errorAt(offset int, kind SyntaxErrorKind, detail string) *SyntaxError {
	return &SyntaxError{Offset: offset, Kind: kind, Detail: detail}
}

func (p *queryParser) eof() bool { return p.pos >= len(p.input) }

func (p *queryParser) peekPredicate() bool {
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return false
	}
	i := p.pos + 1
	for i < len(p.input) && isSpace(p.input[i]) {
		i++
	}
	return i < len(p.input) && p.input[i] == '#'
}

func (p *queryParser) parseTopLevel() (*Pattern, *SyntaxError) {
	switch ch := p.input[p.pos]; {
	case ch == '(' || ch == '[' || ch == '"' || ch == '_':
		return p.parseExpr(false)
	case isIdentStart(ch):
		// Field syntax is meaningless at top level.
		start := p.pos
		ident := p.readIdentifier()
		return nil, p.errorAt(start, SyntaxUnexpectedChar, "unexpected identifier "+ident)
	default:
		return nil, p.errorAt(p.pos, SyntaxUnexpectedChar, "unexpected character "+quoteChar(ch))
	}
}

// parseExpr parses one pattern with its quantifier and capture suffix.
// inChildren enables the forms only valid inside a node or group:
// anchors, negated fields and field prefixes.
func (p *queryParser) parseExpr(inChildren bool) (*Pattern, *SyntaxError) {
	p.skipWhitespaceAndComments()
	if p.eof() {
		return nil, p.errorAt(p.pos, SyntaxUnexpectedEOF, "expected pattern")
	}
	start := p.pos
	ch := p.input[p.pos]

	var pat *Pattern
	var err *SyntaxError
	switch {
	case ch == '(':
		pat, err = p.parseParenthesized()
	case ch == '[':
		pat, err = p.parseAlternation()
	case ch == '"':
		var text string
		text, err = p.readString()
		pat = &Pattern{Kind: PatternAnonymous, Type: text, Offset: start}
	case ch == '_' && !p.identContinuesAt(p.pos+1):
		p.pos++
		pat = &Pattern{Kind: PatternWildcard, Offset: start}
	case ch == '.' && inChildren:
		p.pos++
		return &Pattern{Kind: PatternAnchor, Offset: start}, nil
	case ch == '!' && inChildren:
		p.pos++
		field := p.readIdentifier()
		if field == "" {
			return nil, p.errorAt(p.pos, SyntaxInvalidField, "expected field name after '!'")
		}
		return &Pattern{Kind: PatternNegatedField, Field: field, Offset: start}, nil
	case isIdentStart(ch) && inChildren:
		field := p.readIdentifier()
		p.skipWhitespaceAndComments()
		if p.eof() || p.input[p.pos] != ':' {
			return nil, p.errorAt(start, SyntaxInvalidField, "expected ':' after field name "+field)
		}
		p.pos++
		child, err := p.parseExpr(false)
		if err != nil {
			return nil, err
		}
		if child.Kind == PatternAnchor || child.Kind == PatternNegatedField {
			return nil, p.errorAt(start, SyntaxInvalidField, "field "+field+" needs a node pattern")
		}
		child.Field = field
		return child, nil
	default:
		return nil, p.errorAt(p.pos, SyntaxUnexpectedChar, "unexpected character "+quoteChar(ch))
	}
	if err != nil {
		return nil, err
	}
	if err := p.parseSuffix(pat); err != nil {
		return nil, err
	}
	return pat, nil
}

// parseParenthesized handles node patterns, wildcard nodes and groups.
func (p *queryParser) parseParenthesized() (*Pattern, *SyntaxError) {
	start := p.pos
	p.pos++ // consume '('
	p.skipWhitespaceAndComments()
	if p.eof() {
		return nil, p.errorAt(p.pos, SyntaxUnexpectedEOF, "expected ')'")
	}

	pat := &Pattern{Offset: start}
	switch ch := p.input[p.pos]; {
	case ch == '(' || ch == '[' || ch == '"' || ch == '.':
		pat.Kind = PatternGroup
	case ch == '_' && !p.identContinuesAt(p.pos+1):
		p.pos++
		pat.Kind = PatternWildcard
		pat.NamedOnly = true
	case isIdentStart(ch):
		pat.Kind = PatternNamedNode
		pat.Type = p.readIdentifier()
	case ch == ')':
		return nil, p.errorAt(p.pos, SyntaxUnexpectedChar, "empty pattern")
	default:
		return nil, p.errorAt(p.pos, SyntaxUnexpectedChar, "unexpected character "+quoteChar(ch))
	}

	for {
		p.skipWhitespaceAndComments()
		if p.eof() {
			return nil, p.errorAt(p.pos, SyntaxUnexpectedEOF, "expected ')'")
		}
		if p.input[p.pos] == ')' {
			p.pos++
			break
		}
		if p.peekPredicate() {
			pred, err := p.parsePredicate()
			if err != nil {
				return nil, err
			}
			p.preds = append(p.preds, pred)
			continue
		}
		// Node captures may also be written inside the parentheses.
		if p.input[p.pos] == '@' && pat.Kind != PatternGroup {
			name, err := p.readCapture()
			if err != nil {
				return nil, err
			}
			pat.Captures = append(pat.Captures, name)
			continue
		}
		child, err := p.parseExpr(true)
		if err != nil {
			return nil, err
		}
		pat.Children = append(pat.Children, child)
	}

	if pat.Kind == PatternGroup && len(nonAnchors(pat.Children)) == 0 {
		return nil, p.errorAt(start, SyntaxUnexpectedChar, "group without patterns")
	}
	return pat, nil
}

func (p *queryParser) parseAlternation() (*Pattern, *SyntaxError) {
	start := p.pos
	p.pos++ // consume '['
	pat := &Pattern{Kind: PatternAlternation, Offset: start}
	for {
		p.skipWhitespaceAndComments()
		if p.eof() {
			return nil, p.errorAt(p.pos, SyntaxUnexpectedEOF, "expected ']'")
		}
		if p.input[p.pos] == ']' {
			p.pos++
			break
		}
		if p.peekPredicate() {
			pred, err := p.parsePredicate()
			if err != nil {
				return nil, err
			}
			p.preds = append(p.preds, pred)
			continue
		}
		branch, err := p.parseExpr(false)
		if err != nil {
			return nil, err
		}
		pat.Children = append(pat.Children, branch)
	}
	if len(pat.Children) == 0 {
		return nil, p.errorAt(start, SyntaxEmptyAlternation, "")
	}
	return pat, nil
}

// parseSuffix reads an optional quantifier followed by any number of captures.
func (p *queryParser) parseSuffix(pat *Pattern) *SyntaxError {
	if !p.eof() {
		switch p.input[p.pos] {
		case '*':
			pat.Quantifier = ZeroOrMore
			p.pos++
		case '+':
			pat.Quantifier = OneOrMore
			p.pos++
		case '?':
			pat.Quantifier = Optional
			p.pos++
		}
		if !p.eof() && strings.ContainsRune("*+?", rune(p.input[p.pos])) {
			return p.errorAt(p.pos, SyntaxInvalidQuantifier, "repeated quantifier")
		}
	}
	for {
		save := p.pos
		p.skipWhitespaceAndComments()
		if p.eof() || p.input[p.pos] != '@' {
			p.pos = save
			return nil
		}
		name, err := p.readCapture()
		if err != nil {
			return err
		}
		pat.Captures = append(pat.Captures, name)
	}
}

func (p *queryParser) parsePredicate() (Predicate, *SyntaxError) {
	start := p.pos
	p.pos++ // consume '('
	p.skipWhitespaceAndComments()

	nameStart := p.pos
	for !p.eof() {
		ch := p.input[p.pos]
		if ch == ')' || isSpace(ch) {
			break
		}
		p.pos++
	}
	name := p.input[nameStart:p.pos]
	if len(name) < 2 || name[0] != '#' {
		return Predicate{}, p.errorAt(nameStart, SyntaxInvalidPredicate, "expected predicate name")
	}

	pred := Predicate{Operator: name, Offset: start}
	for {
		p.skipWhitespaceAndComments()
		if p.eof() {
			return Predicate{}, p.errorAt(p.pos, SyntaxUnexpectedEOF, "expected ')' to close predicate")
		}
		switch ch := p.input[p.pos]; {
		case ch == ')':
			p.pos++
			return pred, nil
		case ch == '@':
			capName, err := p.readCapture()
			if err != nil {
				return Predicate{}, err
			}
			pred.Args = append(pred.Args, PredicateArg{Capture: capName})
		case ch == '"':
			text, err := p.readString()
			if err != nil {
				return Predicate{}, err
			}
			pred.Args = append(pred.Args, PredicateArg{Literal: text})
		case isIdentStart(ch) || unicode.IsDigit(rune(ch)):
			pred.Args = append(pred.Args, PredicateArg{Literal: p.readIdentifier()})
		default:
			return Predicate{}, p.errorAt(p.pos, SyntaxInvalidPredicate, "unexpected character "+quoteChar(ch)+" in predicate")
		}
	}
}

// recover skips the malformed form that began at start. It stops after the
// form's balancing close, or at the next opener in column zero, whichever
// comes first, so one broken pattern never swallows the rest of the file.
func (p *queryParser) recover(start int) {
	i := start
	depth := 0
	for i < len(p.input) {
		ch := p.input[i]
		if i > start && (ch == '(' || ch == '[') && (i == 0 || p.input[i-1] == '\n') {
			p.pos = i
			return
		}
		switch ch {
		case ';':
			for i < len(p.input) && p.input[i] != '\n' {
				i++
			}
			continue
		case '"':
			i++
			for i < len(p.input) && p.input[i] != '"' && p.input[i] != '\n' {
				if p.input[i] == '\\' {
					i++
				}
				i++
			}
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth <= 0 {
				p.pos = i + 1
				return
			}
		}
		i++
		if depth == 0 && i > start {
			// A bare token (identifier or stray character) at top level.
			for i < len(p.input) && !isSpace(p.input[i]) && p.input[i] != '(' && p.input[i] != '[' {
				i++
			}
			p.pos = i
			return
		}
	}
	p.pos = len(p.input)
}

func (p *queryParser) readIdentifier() string {
	start := p.pos
	for p.pos < len(p.input) {
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		if !isIdentRune(r) {
			break
		}
		p.pos += size
	}
	return p.input[start:p.pos]
}

func (p *queryParser) identContinuesAt(i int) bool {
	if i >= len(p.input) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(p.input[i:])
	return isIdentRune(r)
}

func (p *queryParser) readCapture() (string, *SyntaxError) {
	start := p.pos
	p.pos++ // consume '@'
	name := p.readIdentifier()
	if name == "" {
		return "", p.errorAt(start, SyntaxInvalidCapture, "expected capture name after '@'")
	}
	return name, nil
}

func (p *queryParser) readString() (string, *SyntaxError) {
	start := p.pos
	p.pos++ // consume opening quote
	var sb strings.Builder
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == '\\' && p.pos+1 < len(p.input) {
			p.pos++
			switch esc := p.input[p.pos]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(esc)
			}
			p.pos++
			continue
		}
		if ch == '"' {
			p.pos++
			return sb.String(), nil
		}
		if ch == '\n' {
			break
		}
		sb.WriteByte(ch)
		p.pos++
	}
	return "", p.errorAt(start, SyntaxUnterminatedString, "")
}

// skipWhitespaceAndComments skips whitespace and ;-style line comments.
func (p *queryParser) skipWhitespaceAndComments() {
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if isSpace(ch) {
			p.pos++
			continue
		}
		if ch == ';' {
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		break
	}
}

func nonAnchors(children []*Pattern) []*Pattern {
	var out []*Pattern
	for _, c := range children {
		if c.Kind != PatternAnchor && c.Kind != PatternNegatedField {
			out = append(out, c)
		}
	}
	return out
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch >= utf8.RuneSelf
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

func quoteChar(ch byte) string {
	return "'" + string(rune(ch)) + "'"
}
