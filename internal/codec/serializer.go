package codec

import (
	"io"
	"strings"

	"kifu_viewer/internal/domain/sgf"
)

// Serialize возвращает текст SGF коллекции. Результат зависит только от дерева:
// пробелы не добавляются, порядок свойств сохраняется.
func Serialize(c sgf.Collection) string {
	var builder strings.Builder
	for _, game := range c.Games {
		serializeGame(&builder, game.Root)
	}
	return builder.String()
}

// WriteCollection пишет сериализованный текст в w одним вызовом.
func WriteCollection(w io.Writer, c sgf.Collection) error {
	_, err := io.WriteString(w, Serialize(c))
	return err
}

// serializeItem это либо узел, либо скобка (text != "").
type serializeItem struct {
	node *sgf.Node
	text string
}

func serializeGame(builder *strings.Builder, root *sgf.Node) {
	builder.WriteString("(")
	stack := []serializeItem{{node: root}}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.text != "" {
			builder.WriteString(item.text)
			continue
		}

		// линейная последовательность пишется подряд, без скобок
		node := item.node
		for {
			builder.WriteString(";")
			if node == nil {
				break
			}
			serializeProperties(builder, node.Properties)
			if len(node.Children) != 1 {
				break
			}
			node = node.Children[0]
		}
		if node == nil {
			continue
		}

		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack,
				serializeItem{text: ")"},
				serializeItem{node: node.Children[i]},
				serializeItem{text: "("},
			)
		}
	}
	builder.WriteString(")")
}

func serializeProperties(builder *strings.Builder, props []sgf.Property) {
	for _, prop := range props {
		builder.WriteString(prop.Ident)
		for _, value := range prop.Values {
			builder.WriteString("[")
			builder.WriteString(EscapeValue(value))
			builder.WriteString("]")
		}
	}
}

// EscapeValue экранирует обратную косую черту и "]" внутри значения свойства.
func EscapeValue(value string) string {
	if !strings.ContainsAny(value, `\]`) {
		return value
	}
	var out strings.Builder
	out.Grow(len(value) + 4)
	for _, c := range value {
		switch c {
		case '\\':
			out.WriteString(`\\`)
		case ']':
			out.WriteString(`\]`)
		default:
			out.WriteRune(c)
		}
	}
	return out.String()
}
