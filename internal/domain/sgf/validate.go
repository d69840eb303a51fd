package sgf

import (
	"fmt"

	errs "kifu_viewer/internal/errors"
)

// Validate проверяет коллекцию на границе: в ней должна быть хотя бы одна партия.
func Validate(c Collection) error {
	if len(c.Games) == 0 {
		return errs.ErrEmptyCollection
	}
	return nil
}

// CheckStructure проверяет для деревьев, собранных не парсером, то же, что
// гарантирует парсер: корни и потомки не nil, идентификаторы вида [A-Z]+,
// у каждого свойства есть значение. Смысл свойств не проверяется.
func CheckStructure(c Collection) error {
	if err := Validate(c); err != nil {
		return err
	}

	type item struct {
		node *Node
		game int
	}
	var stack []item
	for i, game := range c.Games {
		if game.Root == nil {
			return fmt.Errorf("%w: game %d has no root node", errs.ErrInvalidStructure, i)
		}
		stack = append(stack, item{node: game.Root, game: i})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, prop := range it.node.Properties {
			if !IsValidIdent(prop.Ident) {
				return fmt.Errorf("%w: game %d: bad property identifier %q", errs.ErrInvalidStructure, it.game, prop.Ident)
			}
			if len(prop.Values) == 0 {
				return fmt.Errorf("%w: game %d: property %s has no values", errs.ErrInvalidStructure, it.game, prop.Ident)
			}
		}
		for _, child := range it.node.Children {
			if child == nil {
				return fmt.Errorf("%w: game %d: nil child node", errs.ErrInvalidStructure, it.game)
			}
			stack = append(stack, item{node: child, game: it.game})
		}
	}
	return nil
}

// IsValidIdent сообщает, состоит ли идентификатор только из заглавных латинских букв.
func IsValidIdent(ident string) bool {
	if ident == "" {
		return false
	}
	for i := 0; i < len(ident); i++ {
		if ident[i] < 'A' || ident[i] > 'Z' {
			return false
		}
	}
	return true
}
