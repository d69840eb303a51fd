package sgf

const (
	IdentBlack   = "B"
	IdentWhite   = "W"
	IdentComment = "C"
)

// Property возвращает первое свойство с идентификатором ident.
func (n *Node) Property(ident string) (*Property, bool) {
	for i := range n.Properties {
		if n.Properties[i].Ident == ident {
			return &n.Properties[i], true
		}
	}
	return nil, false
}

// PropertyValues возвращает значения свойства или nil, если его нет.
func (n *Node) PropertyValues(ident string) []string {
	prop, ok := n.Property(ident)
	if !ok {
		return nil
	}
	return prop.Values
}

// FirstPropertyValue возвращает первое значение свойства или пустую строку.
func (n *Node) FirstPropertyValue(ident string) string {
	values := n.PropertyValues(ident)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// SetSingleProperty заменяет значения свойства на [value].
// Пустое значение удаляет свойство, отсутствующее свойство добавляется в конец.
func (n *Node) SetSingleProperty(ident, value string) {
	prop, found := n.Property(ident)
	if found {
		if value == "" {
			n.removeProperty(ident)
			return
		}
		prop.Values = []string{value}
		return
	}

	if value != "" {
		n.Properties = append(n.Properties, NewProperty(ident, value))
	}
}

func (n *Node) removeProperty(ident string) {
	kept := n.Properties[:0]
	for _, prop := range n.Properties {
		if prop.Ident != ident {
			kept = append(kept, prop)
		}
	}
	n.Properties = kept
}

// NodeByPath идёт от корня по индексам потомков. Пустой путь указывает на сам корень.
func NodeByPath(root *Node, path []int) (*Node, bool) {
	if root == nil {
		return nil, false
	}
	current := root
	for _, childIndex := range path {
		if childIndex < 0 || childIndex >= len(current.Children) || current.Children[childIndex] == nil {
			return nil, false
		}
		current = current.Children[childIndex]
	}
	return current, true
}

// LastMoveColor возвращает B или W для последнего хода на пути, или "", если ходов
// ещё не было. Индекс за пределами дерева обрывает путь.
func LastMoveColor(root *Node, path []int) string {
	if root == nil {
		return ""
	}
	nodes := []*Node{root}
	current := root
	for _, childIndex := range path {
		if childIndex < 0 || childIndex >= len(current.Children) || current.Children[childIndex] == nil {
			break
		}
		current = current.Children[childIndex]
		nodes = append(nodes, current)
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		if len(nodes[i].PropertyValues(IdentBlack)) > 0 {
			return IdentBlack
		}
		if len(nodes[i].PropertyValues(IdentWhite)) > 0 {
			return IdentWhite
		}
	}
	return ""
}

// NextMoveColor возвращает цвет следующего хода: первыми ходят чёрные, дальше по очереди.
func NextMoveColor(root *Node, path []int) string {
	if LastMoveColor(root, path) == IdentBlack {
		return IdentWhite
	}
	return IdentBlack
}

// MainLine возвращает корень и далее первого потомка на каждом шаге.
func MainLine(root *Node) []*Node {
	var line []*Node
	for current := root; current != nil; {
		line = append(line, current)
		if len(current.Children) == 0 {
			break
		}
		current = current.Children[0]
	}
	return line
}
