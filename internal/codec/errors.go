package codec

import "fmt"

type ErrorKind int

const (
	KindUnexpectedEOF ErrorKind = iota + 1
	KindExpectedChar
	KindExpectedIdent
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnexpectedEOF:
		return "unexpected end of input"
	case KindExpectedChar:
		return "expected character"
	case KindExpectedIdent:
		return "expected property identifier"
	case KindInvalid:
		return "invalid SGF"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Reason называет нарушенное структурное правило для ошибки KindInvalid.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonEmptyCollection
	ReasonEmptySequence
	ReasonEmptyValues
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonEmptyCollection:
		return "no game trees found"
	case ReasonEmptySequence:
		return "expected at least one node in sequence"
	case ReasonEmptyValues:
		return "property must contain at least one value"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// ParseError описывает первую ошибку разбора. Offset считается в символах (рунах)
// от начала текста, а не в байтах. Line и Column начинаются с 1 и тоже считаются
// в символах.
type ParseError struct {
	Kind     ErrorKind
	Reason   Reason
	Expected rune
	Offset   int
	Line     int
	Column   int
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindUnexpectedEOF:
		return "unexpected end of input"
	case KindExpectedChar:
		return fmt.Sprintf("expected '%c' at character %d (line %d, column %d)", e.Expected, e.Offset, e.Line, e.Column)
	case KindExpectedIdent:
		return fmt.Sprintf("expected property identifier at character %d (line %d, column %d)", e.Offset, e.Line, e.Column)
	case KindInvalid:
		return "invalid SGF: " + e.Reason.String()
	default:
		return e.Kind.String()
	}
}
