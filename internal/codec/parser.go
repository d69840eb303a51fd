package codec

import (
	"strings"
	"unicode"

	"kifu_viewer/internal/domain/sgf"
)

// Parse читает SGF-коллекцию целиком. При первой ошибке разбор прекращается,
// частичное дерево не возвращается.
func Parse(text string) (sgf.Collection, error) {
	p := newParser(text)
	var games []sgf.Game

	p.skipWS()
	for !p.isEOF() {
		root, err := p.parseGameTree()
		if err != nil {
			return sgf.Collection{}, err
		}
		games = append(games, sgf.Game{Root: root})
		p.skipWS()
	}

	if len(games) == 0 {
		return sgf.Collection{}, p.invalid(ReasonEmptyCollection)
	}
	return sgf.Collection{Games: games}, nil
}

type parser struct {
	chars []rune
	idx   int
}

// treeFrame соответствует открытой '('. Её последовательность узлов идёт цепочкой
// от root до tail, закрытые внутри варианты подвешиваются к tail.
type treeFrame struct {
	root *sgf.Node
	tail *sgf.Node
}

func newParser(src string) *parser {
	return &parser{chars: []rune(src)}
}

func (p *parser) isEOF() bool {
	return p.idx >= len(p.chars)
}

func (p *parser) peek() (rune, bool) {
	if p.isEOF() {
		return 0, false
	}
	return p.chars[p.idx], true
}

func (p *parser) peekIs(c rune) bool {
	next, ok := p.peek()
	return ok && next == c
}

func (p *parser) next() (rune, bool) {
	c, ok := p.peek()
	if ok {
		p.idx++
	}
	return c, ok
}

func (p *parser) skipWS() {
	for !p.isEOF() && unicode.IsSpace(p.chars[p.idx]) {
		p.idx++
	}
}

func (p *parser) expect(expected rune) error {
	c, ok := p.next()
	if !ok {
		return p.errorAt(KindUnexpectedEOF, p.idx)
	}
	if c != expected {
		err := p.errorAt(KindExpectedChar, p.idx-1)
		err.Expected = expected
		return err
	}
	return nil
}

// parseGameTree разбирает одно дерево в скобках вместе со всеми вложенными
// вариантами. Вложенность обрабатывается явным стеком, а не рекурсией.
func (p *parser) parseGameTree() (*sgf.Node, error) {
	p.skipWS()
	if err := p.expect('('); err != nil {
		return nil, err
	}
	stack := []*treeFrame{{}}

	for {
		frame := stack[len(stack)-1]
		if frame.root == nil {
			if err := p.parseNodeSequence(frame); err != nil {
				return nil, err
			}
		}

		p.skipWS()
		if p.peekIs('(') {
			p.idx++
			stack = append(stack, &treeFrame{})
			continue
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}

		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return frame.root, nil
		}
		parent := stack[len(stack)-1]
		parent.tail.AddChild(frame.root)
	}
}

func (p *parser) parseNodeSequence(frame *treeFrame) error {
	p.skipWS()
	for p.peekIs(';') {
		node, err := p.parseNode()
		if err != nil {
			return err
		}
		if frame.root == nil {
			frame.root = node
		} else {
			frame.tail.AddChild(node)
		}
		frame.tail = node
		p.skipWS()
	}

	if frame.root == nil {
		return p.invalid(ReasonEmptySequence)
	}
	return nil
}

func (p *parser) parseNode() (*sgf.Node, error) {
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	p.skipWS()

	node := sgf.NewNode()
	for {
		c, ok := p.peek()
		if !ok || c == ';' || c == '(' || c == ')' {
			break
		}
		if unicode.IsSpace(c) {
			p.skipWS()
			continue
		}

		ident, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		values, err := p.parseValues()
		if err != nil {
			return nil, err
		}
		node.Properties = append(node.Properties, sgf.Property{Ident: ident, Values: values})
		p.skipWS()
	}
	return node, nil
}

func (p *parser) parseIdent() (string, error) {
	start := p.idx
	for !p.isEOF() && p.chars[p.idx] >= 'A' && p.chars[p.idx] <= 'Z' {
		p.idx++
	}
	if p.idx == start {
		return "", p.errorAt(KindExpectedIdent, start)
	}
	return string(p.chars[start:p.idx]), nil
}

func (p *parser) parseValues() ([]string, error) {
	var values []string
	p.skipWS()
	for p.peekIs('[') {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		p.skipWS()
	}
	if len(values) == 0 {
		return nil, p.invalid(ReasonEmptyValues)
	}
	return values, nil
}

func (p *parser) parseValue() (string, error) {
	if err := p.expect('['); err != nil {
		return "", err
	}
	var out strings.Builder
	for {
		c, ok := p.next()
		if !ok {
			return "", p.errorAt(KindUnexpectedEOF, p.idx)
		}
		switch c {
		case ']':
			return out.String(), nil
		case '\\':
			escaped, ok := p.next()
			if !ok {
				return "", p.errorAt(KindUnexpectedEOF, p.idx)
			}
			out.WriteRune(escaped)
		default:
			out.WriteRune(c)
		}
	}
}

func (p *parser) invalid(reason Reason) *ParseError {
	err := p.errorAt(KindInvalid, p.idx)
	err.Reason = reason
	return err
}

func (p *parser) errorAt(kind ErrorKind, offset int) *ParseError {
	line, column := 1, 1
	for i := 0; i < offset && i < len(p.chars); i++ {
		if p.chars[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return &ParseError{Kind: kind, Offset: offset, Line: line, Column: column}
}
