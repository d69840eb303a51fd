package errors

import "errors"

var (
	ErrKifuNotFound     = errors.New("kifu not found")
	ErrArchiveNotFound  = errors.New("archived kifu not found")
	ErrNodeNotFound     = errors.New("node was not found by path")
	ErrEmptyCollection  = errors.New("SGF collection contains no games")
	ErrInvalidStructure = errors.New("SGF collection is structurally invalid")
	ErrNoPendingFile    = errors.New("no pending file to open")
	ErrPathNotAllowed   = errors.New("path is outside the data directory")
	ErrInternal         = errors.New("internal error")
)
