package sgf

const ApplicationName = "Go Kifu Viewer"

var rootAllowedIdents = map[string]bool{
	"FF": true, "GM": true, "SZ": true, "EV": true, "DT": true,
	"KM": true, "RE": true, "PB": true, "BR": true, "PW": true,
	"WR": true, "AB": true, "AW": true, "AE": true, "C": true,
}

var nodeAllowedIdents = map[string]bool{
	"B": true, "W": true, "AB": true, "AW": true, "AE": true, "C": true,
}

// NormalizeForSave возвращает копию, в которой остались только свойства, которые
// умеет редактировать просмотрщик, а корень каждой партии помечен AP[Go Kifu Viewer].
// Исходная коллекция не меняется.
func NormalizeForSave(c Collection) Collection {
	out := c.Clone()

	var stack []*Node
	for _, game := range out.Games {
		if game.Root == nil {
			continue
		}
		game.Root.Properties = append(
			keepAllowed(game.Root.Properties, rootAllowedIdents),
			NewProperty("AP", ApplicationName),
		)
		stack = append(stack, game.Root.Children...)
	}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}
		node.Properties = keepAllowed(node.Properties, nodeAllowedIdents)
		stack = append(stack, node.Children...)
	}
	return out
}

func keepAllowed(props []Property, allowed map[string]bool) []Property {
	kept := make([]Property, 0, len(props))
	for _, prop := range props {
		if allowed[prop.Ident] {
			kept = append(kept, prop)
		}
	}
	return kept
}
