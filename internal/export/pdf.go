package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"kifu_viewer/internal/domain/kifu"
	"kifu_viewer/internal/domain/sgf"
)

// WritePDF печатает коллекцию: сведения о партии, ходы основной линии
// и комментарии. Каждая партия начинается с новой страницы.
func WritePDF(w io.Writer, title string, c sgf.Collection) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, game := range c.Games {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		heading := title
		if len(c.Games) > 1 {
			heading = fmt.Sprintf("%s (%d/%d)", title, i+1, len(c.Games))
		}
		pdf.Cell(0, 10, tr(heading))
		pdf.Ln(12)

		pdf.SetFont("Helvetica", "", 11)
		for _, line := range infoLines(kifu.InfoFromRoot(game.Root)) {
			pdf.Cell(0, 6, tr(line))
			pdf.Ln(6)
		}
		pdf.Ln(4)

		pdf.SetFont("Courier", "", 10)
		for _, line := range MoveLines(game.Root) {
			pdf.MultiCell(0, 4.5, tr(line), "", "L", false)
		}
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}

func infoLines(info kifu.GameInfo) []string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Black", strings.TrimSpace(info.PlayerBlack+" "+info.BlackRank))
	add("White", strings.TrimSpace(info.PlayerWhite+" "+info.WhiteRank))
	add("Event", info.Event)
	add("Date", info.Date)
	add("Komi", info.Komi)
	add("Board", info.BoardSize)
	add("Result", info.Result)
	return lines
}

// MoveLines печатает основную линию пронумерованными ходами. Комментарий идёт
// после своего хода, у точки ветвления указано число вариантов.
func MoveLines(root *sgf.Node) []string {
	var lines []string
	moveNumber := 0
	for _, node := range sgf.MainLine(root) {
		for _, color := range []string{sgf.IdentBlack, sgf.IdentWhite} {
			values := node.PropertyValues(color)
			if len(values) == 0 {
				continue
			}
			moveNumber++
			coord := values[0]
			if coord == "" {
				coord = "pass"
			}
			lines = append(lines, fmt.Sprintf("%4d. %s %s", moveNumber, color, coord))
		}
		if comment := node.FirstPropertyValue(sgf.IdentComment); comment != "" {
			lines = append(lines, "      "+comment)
		}
		if node.IsBranchPoint() {
			lines = append(lines, fmt.Sprintf("      variations: %d", len(node.Children)-1))
		}
	}
	return lines
}
