package kifu

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kifu_viewer/internal/bootstrap"
	"kifu_viewer/internal/codec"
	"kifu_viewer/internal/domain/kifu"
	"kifu_viewer/internal/domain/sgf"
	errs "kifu_viewer/internal/errors"
	"kifu_viewer/internal/httpresponse"
	kifuUC "kifu_viewer/internal/usecase/kifu"
	"kifu_viewer/internal/utils"
)

const sgfContentType = "application/x-go-sgf; charset=utf-8"

type KifuHandler struct {
	cfg    bootstrap.Config
	log    *zap.SugaredLogger
	kifuUC *kifuUC.KifuUseCase
	hub    *WatchHub
}

func NewKifuHandler(cfg bootstrap.Config, log *zap.SugaredLogger, uc *kifuUC.KifuUseCase) *KifuHandler {
	hub := NewWatchHub(log)
	uc.SetPublisher(hub)
	return &KifuHandler{
		cfg:    cfg,
		log:    log,
		kifuUC: uc,
		hub:    hub,
	}
}

func (h *KifuHandler) Routes(r chi.Router) {
	r.Post("/parse", h.HandleParse)
	r.Post("/serialize", h.HandleSerialize)
	r.Post("/validate", h.HandleValidate)

	r.Post("/files/open", h.HandleOpenFile)
	r.Post("/files/save", h.HandleSaveFile)
	r.Get("/pending-open", h.HandlePendingOpen)

	r.Post("/kifu", h.HandleCreateKifu)
	r.Route("/kifu/{key}", func(r chi.Router) {
		r.Get("/", h.HandleGetKifu)
		r.Put("/", h.HandlePutKifu)
		r.Delete("/", h.HandleDeleteKifu)
		r.Post("/moves", h.HandleAppendMove)
		r.Put("/comment", h.HandleSetComment)
		r.Put("/info", h.HandleSetGameInfo)
		r.Post("/archive", h.HandleArchiveKifu)
		r.Get("/pdf", h.HandleExportPDF)
		r.Get("/watch", h.HandleWatch)
	})

	r.Get("/archive", h.HandleListArchive)
	r.Get("/archive/{id}", h.HandleGetArchived)
}

// HandleParse принимает текст SGF и возвращает дерево в JSON.
func (h *KifuHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	body, err := utils.ReadRequestBody(r)
	if err != nil {
		h.log.Error("HandleParse: failed to read body: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	c, err := codec.Parse(string(body))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, c)
}

func (h *KifuHandler) HandleSerialize(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decodeCollection(w, r)
	if !ok {
		return
	}
	if err := sgf.CheckStructure(c); err != nil {
		h.writeError(w, err)
		return
	}
	writeSGF(w, codec.Serialize(c))
}

func (h *KifuHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decodeCollection(w, r)
	if !ok {
		return
	}
	if err := h.kifuUC.Validate(c); err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, nil)
}

func (h *KifuHandler) HandleOpenFile(w http.ResponseWriter, r *http.Request) {
	var req kifu.FileRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil || req.Path == "" {
		h.log.Error("HandleOpenFile: bad request: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}

	c, err := h.kifuUC.OpenFile(r.Context(), req.Path)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, c)
}

func (h *KifuHandler) HandleSaveFile(w http.ResponseWriter, r *http.Request) {
	var req kifu.FileRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil || req.Path == "" || req.Collection == nil {
		h.log.Error("HandleSaveFile: bad request: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}

	if err := h.kifuUC.SaveFile(r.Context(), req.Path, *req.Collection); err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, nil)
}

// HandlePendingOpen отдаёт файл, с которым было запущено приложение, ровно один раз.
func (h *KifuHandler) HandlePendingOpen(w http.ResponseWriter, r *http.Request) {
	path, c, err := h.kifuUC.TakePendingOpen(r.Context())
	if errors.Is(err, errs.ErrNoPendingFile) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.log.Errorw("failed to open launch file", "path", path, "error", err)
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, kifu.PendingOpenResponse{Path: path, Collection: c})
}

func (h *KifuHandler) HandleCreateKifu(w http.ResponseWriter, r *http.Request) {
	key, err := h.kifuUC.CreateKifu(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusCreated, kifu.CreateKifuResponse{Key: key})
}

func (h *KifuHandler) HandleGetKifu(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if r.URL.Query().Get("format") == "sgf" {
		text, err := h.kifuUC.LoadKifuText(r.Context(), key)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeSGF(w, text)
		return
	}

	c, err := h.kifuUC.LoadKifu(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, c)
}

func (h *KifuHandler) HandlePutKifu(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decodeCollection(w, r)
	if !ok {
		return
	}
	text, err := h.kifuUC.StoreKifu(r.Context(), chi.URLParam(r, "key"), c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSGF(w, text)
}

func (h *KifuHandler) HandleDeleteKifu(w http.ResponseWriter, r *http.Request) {
	if err := h.kifuUC.DeleteKifu(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *KifuHandler) HandleAppendMove(w http.ResponseWriter, r *http.Request) {
	var req kifu.AppendMoveRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.log.Error("HandleAppendMove: malformed JSON: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}

	path, text, err := h.kifuUC.AppendMove(r.Context(), chi.URLParam(r, "key"), req.Path, req.Coord)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, kifu.AppendMoveResponse{Path: path, SGF: text})
}

func (h *KifuHandler) HandleSetComment(w http.ResponseWriter, r *http.Request) {
	var req kifu.CommentRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		h.log.Error("HandleSetComment: malformed JSON: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}

	text, err := h.kifuUC.SetComment(r.Context(), chi.URLParam(r, "key"), req.Path, req.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSGF(w, text)
}

func (h *KifuHandler) HandleSetGameInfo(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := utils.DecodeJSONRequest(r, &updates); err != nil {
		h.log.Error("HandleSetGameInfo: malformed JSON: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return
	}

	text, err := h.kifuUC.SetGameInfo(r.Context(), chi.URLParam(r, "key"), updates)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSGF(w, text)
}

func (h *KifuHandler) HandleArchiveKifu(w http.ResponseWriter, r *http.Request) {
	id, err := h.kifuUC.ArchiveKifu(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusCreated, kifu.ArchiveResponse{ID: id})
}

func (h *KifuHandler) HandleGetArchived(w http.ResponseWriter, r *http.Request) {
	doc, err := h.kifuUC.GetArchived(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, doc)
}

func (h *KifuHandler) HandleListArchive(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		httpresponse.WriteError(w, http.StatusBadRequest, "player is required")
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httpresponse.WriteError(w, http.StatusBadRequest, "page must be a positive number")
			return
		}
		page = parsed
	}

	resp, err := h.kifuUC.ListArchivedByPlayer(r.Context(), player, page)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, resp)
}

func (h *KifuHandler) HandleExportPDF(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	// Рендерим в память, чтобы ошибка не оборвала уже начатый ответ
	var buf bytes.Buffer
	if err := h.kifuUC.ExportPDF(r.Context(), key, &buf); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+key+`.pdf"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *KifuHandler) decodeCollection(w http.ResponseWriter, r *http.Request) (sgf.Collection, bool) {
	var c sgf.Collection
	if err := utils.DecodeJSONRequest(r, &c); err != nil {
		h.log.Error("malformed collection JSON: ", err)
		httpresponse.WriteError(w, http.StatusBadRequest, httpresponse.MALFORMEDJSON_errorDesc)
		return sgf.Collection{}, false
	}
	return c, true
}

func (h *KifuHandler) writeError(w http.ResponseWriter, err error) {
	var perr *codec.ParseError
	if errors.As(err, &perr) {
		h.log.Infow("rejected record", "error", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, httpresponse.ParseErrorResponse{
			ErrorDescription: err.Error(),
			Kind:             perr.Kind.String(),
			Reason:           perr.Reason.String(),
			Offset:           perr.Offset,
			Line:             perr.Line,
			Column:           perr.Column,
		})
		return
	}

	switch {
	case errors.Is(err, errs.ErrKifuNotFound),
		errors.Is(err, errs.ErrArchiveNotFound),
		errors.Is(err, errs.ErrNodeNotFound),
		errors.Is(err, os.ErrNotExist):
		httpresponse.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrEmptyCollection),
		errors.Is(err, errs.ErrInvalidStructure),
		errors.Is(err, errs.ErrPathNotAllowed):
		httpresponse.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error(err)
		httpresponse.WriteError(w, http.StatusInternalServerError, errs.ErrInternal.Error())
	}
}

func writeSGF(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", sgfContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}
