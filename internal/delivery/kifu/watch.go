package kifu

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// watchQueueSize ограничивает число неотправленных версий записи на одного наблюдателя.
	watchQueueSize = 16
	watchWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// watcher пишет в соединение только из своей горутины writeLoop.
type watcher struct {
	conn      *websocket.Conn
	send      chan string
	writeWait time.Duration
}

// WatchHub рассылает новый текст записи всем, кто открыл /kifu/{key}/watch.
// Publish не ждёт сеть: наблюдатель, чья очередь переполнена, отключается.
type WatchHub struct {
	mu        sync.Mutex
	watchers  map[string]map[*watcher]struct{}
	queueSize int
	writeWait time.Duration
	log       *zap.SugaredLogger
}

func NewWatchHub(log *zap.SugaredLogger) *WatchHub {
	return &WatchHub{
		watchers:  make(map[string]map[*watcher]struct{}),
		queueSize: watchQueueSize,
		writeWait: watchWriteWait,
		log:       log,
	}
}

func (h *WatchHub) setLimits(queueSize int, writeWait time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queueSize = queueSize
	h.writeWait = writeWait
}

func (h *WatchHub) Publish(key string, sgfText string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range h.watchers[key] {
		select {
		case w.send <- sgfText:
		default:
			h.log.Warnw("dropping slow kifu watcher", "key", key)
			h.removeLocked(key, w)
			_ = w.conn.Close()
		}
	}
}

// add регистрирует наблюдателя; initial уходит в очередь первым.
func (h *WatchHub) add(key string, conn *websocket.Conn, initial string) *watcher {
	h.mu.Lock()
	w := &watcher{conn: conn, send: make(chan string, h.queueSize), writeWait: h.writeWait}
	w.send <- initial
	if h.watchers[key] == nil {
		h.watchers[key] = make(map[*watcher]struct{})
	}
	h.watchers[key][w] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(key, w)
	return w
}

func (h *WatchHub) writeLoop(key string, w *watcher) {
	for text := range w.send {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
		if err := w.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			h.log.Infow("kifu watcher write failed", "key", key, "error", err)
			h.remove(key, w)
			_ = w.conn.Close()
			return
		}
	}
}

func (h *WatchHub) remove(key string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(key, w)
}

// removeLocked закрывает очередь ровно один раз: только тот, кто снял
// наблюдателя с учёта.
func (h *WatchHub) removeLocked(key string, w *watcher) {
	set, ok := h.watchers[key]
	if !ok {
		return
	}
	if _, registered := set[w]; !registered {
		return
	}
	delete(set, w)
	close(w.send)
	if len(set) == 0 {
		delete(h.watchers, key)
	}
}

func (h *WatchHub) Count(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[key])
}

// HandleWatch отправляет текущий текст записи, а затем каждое его изменение.
// Сообщения клиента игнорируются, чтение нужно только чтобы заметить отключение.
func (h *KifuHandler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	text, err := h.kifuUC.LoadKifuText(r.Context(), key)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("upgrade error:", err)
		return
	}
	defer conn.Close()

	watcher := h.hub.add(key, conn, text)
	defer h.hub.remove(key, watcher)

	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			h.log.Debugw("kifu watcher disconnected", "key", key, "error", err)
			return
		}
	}
}
