package sgf

// Property представляет одно свойство узла SGF: идентификатор и непустой список значений
// (например, AB[aa][bb] это одно свойство с двумя значениями)
type Property struct {
	Ident  string   `json:"ident" bson:"ident"`
	Values []string `json:"values" bson:"values"`
}

// Node представляет один узел SGF. Порядок свойств сохраняется при сериализации.
// Один потомок продолжает ту же линию, два и больше образуют точку ветвления.
type Node struct {
	Properties []Property `json:"properties" bson:"properties"`
	Children   []*Node    `json:"children" bson:"children"`
}

// Game представляет одно дерево верхнего уровня (одна пара скобок в файле)
type Game struct {
	Root *Node `json:"root" bson:"root"`
}

// Collection представляет корневой элемент SGF-файла, в нём хотя бы одна партия
type Collection struct {
	Games []Game `json:"games" bson:"games"`
}

// NewNode создаёт узел с непустыми (не nil) срезами свойств и потомков.
func NewNode(props ...Property) *Node {
	node := &Node{
		Properties: make([]Property, 0, len(props)),
		Children:   []*Node{},
	}
	node.Properties = append(node.Properties, props...)
	return node
}

func NewProperty(ident string, values ...string) Property {
	return Property{Ident: ident, Values: append([]string{}, values...)}
}

// NewEmptyCollection возвращает запись, с которой начинается новая доска.
func NewEmptyCollection() Collection {
	return Collection{
		Games: []Game{
			{
				Root: NewNode(
					NewProperty("FF", "4"),
					NewProperty("GM", "1"),
					NewProperty("SZ", "19"),
				),
			},
		},
	}
}

// AddChild добавляет потомка в конец списка и возвращает его.
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// IsBranchPoint сообщает, расходятся ли от узла несколько вариантов.
func (n *Node) IsBranchPoint() bool {
	return len(n.Children) > 1
}

// Clone делает глубокую копию без рекурсии.
func (c Collection) Clone() Collection {
	out := Collection{Games: make([]Game, len(c.Games))}
	type pair struct{ src, dst *Node }
	var stack []pair

	for i, game := range c.Games {
		if game.Root == nil {
			continue
		}
		out.Games[i].Root = &Node{}
		stack = append(stack, pair{src: game.Root, dst: out.Games[i].Root})
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p.dst.Properties = make([]Property, len(p.src.Properties))
		for i, prop := range p.src.Properties {
			p.dst.Properties[i] = NewProperty(prop.Ident, prop.Values...)
		}
		p.dst.Children = make([]*Node, len(p.src.Children))
		for i, child := range p.src.Children {
			if child == nil {
				continue
			}
			p.dst.Children[i] = &Node{}
			stack = append(stack, pair{src: child, dst: p.dst.Children[i]})
		}
	}
	return out
}
