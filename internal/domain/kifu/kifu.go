package kifu

import (
	"time"

	"kifu_viewer/internal/domain/sgf"
)

// GameInfo содержит сведения о партии из корневого узла (PB, PW, DT, RE, ...)
type GameInfo struct {
	PlayerBlack string `json:"player_black" bson:"player_black"`
	BlackRank   string `json:"black_rank,omitempty" bson:"black_rank,omitempty"`
	PlayerWhite string `json:"player_white" bson:"player_white"`
	WhiteRank   string `json:"white_rank,omitempty" bson:"white_rank,omitempty"`
	Event       string `json:"event,omitempty" bson:"event,omitempty"`
	Date        string `json:"date,omitempty" bson:"date,omitempty"`
	Result      string `json:"result,omitempty" bson:"result,omitempty"`
	Komi        string `json:"komi,omitempty" bson:"komi,omitempty"`
	BoardSize   string `json:"board_size,omitempty" bson:"board_size,omitempty"`
}

func InfoFromRoot(root *sgf.Node) GameInfo {
	if root == nil {
		return GameInfo{}
	}
	return GameInfo{
		PlayerBlack: root.FirstPropertyValue("PB"),
		BlackRank:   root.FirstPropertyValue("BR"),
		PlayerWhite: root.FirstPropertyValue("PW"),
		WhiteRank:   root.FirstPropertyValue("WR"),
		Event:       root.FirstPropertyValue("EV"),
		Date:        root.FirstPropertyValue("DT"),
		Result:      root.FirstPropertyValue("RE"),
		Komi:        root.FirstPropertyValue("KM"),
		BoardSize:   root.FirstPropertyValue("SZ"),
	}
}

// ArchivedKifu хранится в MongoDB. Дерево хранится текстом SGF:
// длинная партия в виде вложенных документов упёрлась бы в лимит вложенности BSON.
type ArchivedKifu struct {
	ID         string    `json:"id" bson:"_id"`
	Key        string    `json:"key" bson:"key"`
	Info       GameInfo  `json:"info" bson:"info"`
	SGF        string    `json:"sgf" bson:"sgf"`
	ArchivedAt time.Time `json:"archived_at" bson:"archived_at"`
}

type ArchivePage struct {
	Kifu    []ArchivedKifu `json:"kifu"`
	Page    int            `json:"page"`
	HasMore bool           `json:"has_more"`
}

// Запросы редактирования

type AppendMoveRequest struct {
	Path  []int  `json:"path"`
	Coord string `json:"coord"`
}

type AppendMoveResponse struct {
	Path []int  `json:"path"`
	SGF  string `json:"sgf"`
}

type CommentRequest struct {
	Path    []int  `json:"path"`
	Comment string `json:"comment"`
}

type FileRequest struct {
	Path       string          `json:"path"`
	Collection *sgf.Collection `json:"collection,omitempty"`
}

type CreateKifuResponse struct {
	Key string `json:"key"`
}

type ArchiveResponse struct {
	ID string `json:"id"`
}

type PendingOpenResponse struct {
	Path       string         `json:"path"`
	Collection sgf.Collection `json:"collection"`
}
