package kifu

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kifu_viewer/internal/bootstrap"
	"kifu_viewer/internal/codec"
	"kifu_viewer/internal/domain/kifu"
	"kifu_viewer/internal/domain/sgf"
	errs "kifu_viewer/internal/errors"
	"kifu_viewer/internal/export"
	"kifu_viewer/internal/pending"
)

type TextStore interface {
	ReadText(ctx context.Context, path string) (string, error)
	WriteText(ctx context.Context, path string, text string) error
}

type KifuStore interface {
	SaveSGF(ctx context.Context, key string, sgfText string) error
	LoadSGF(ctx context.Context, key string) (string, error)
	DeleteSGF(ctx context.Context, key string) error
}

type ArchiveStore interface {
	PutArchivedKifu(ctx context.Context, doc kifu.ArchivedKifu) error
	GetArchivedKifuByID(ctx context.Context, id string) (kifu.ArchivedKifu, error)
	GetArchivedKifuByPlayer(ctx context.Context, name string, pageNum int) (*kifu.ArchivePage, error)
}

// Publisher получает новый текст записи после каждого изменения.
type Publisher interface {
	Publish(key string, sgfText string)
}

type KifuUseCase struct {
	files           TextStore
	launchFiles     TextStore
	store           KifuStore
	archive         ArchiveStore
	pendingOpen     *pending.OpenFile
	publisher       Publisher
	log             *zap.SugaredLogger
	normalizeOnSave bool

	locks keyLocks
}

func NewKifuUseCase(cfg bootstrap.Config, log *zap.SugaredLogger, files TextStore, store KifuStore, archive ArchiveStore, pendingOpen *pending.OpenFile) *KifuUseCase {
	return &KifuUseCase{
		files:           files,
		store:           store,
		archive:         archive,
		pendingOpen:     pendingOpen,
		log:             log,
		normalizeOnSave: cfg.NormalizeOnSave,
	}
}

func (k *KifuUseCase) SetPublisher(p Publisher) {
	k.publisher = p
}

// SetLaunchFiles задаёт хранилище, из которого читается файл запуска. Путь к нему
// указывает владелец процесса, поэтому оно может не иметь ограничений files.
func (k *KifuUseCase) SetLaunchFiles(files TextStore) {
	k.launchFiles = files
}

// keyLocks выдаёт мьютекс на ключ записи. Запись удаляется из карты, когда её
// больше никто не держит и не ждёт.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (l *keyLocks) lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (k *KifuUseCase) lock(key string) func() {
	return k.locks.lock(key)
}

// Файлы

func (k *KifuUseCase) OpenFile(ctx context.Context, path string) (sgf.Collection, error) {
	return k.openFrom(ctx, k.files, path)
}

func (k *KifuUseCase) openFrom(ctx context.Context, files TextStore, path string) (sgf.Collection, error) {
	text, err := files.ReadText(ctx, path)
	if err != nil {
		return sgf.Collection{}, err
	}
	c, err := codec.Parse(text)
	if err != nil {
		k.log.Warnw("failed to parse record file", "path", path, "error", err)
		return sgf.Collection{}, fmt.Errorf("parse %s: %w", path, err)
	}
	k.log.Infow("record file opened", "path", path, "games", len(c.Games))
	return c, nil
}

func (k *KifuUseCase) SaveFile(ctx context.Context, path string, c sgf.Collection) error {
	text, err := k.serializeForSave(c)
	if err != nil {
		return err
	}
	if err = k.files.WriteText(ctx, path, text); err != nil {
		return err
	}
	k.log.Infow("record file saved", "path", path, "games", len(c.Games))
	return nil
}

func (k *KifuUseCase) Validate(c sgf.Collection) error {
	return sgf.Validate(c)
}

// TakePendingOpen забирает путь, с которым был запущен процесс, и открывает файл.
// Путь выдаётся только один раз.
func (k *KifuUseCase) TakePendingOpen(ctx context.Context) (string, sgf.Collection, error) {
	if k.pendingOpen == nil {
		return "", sgf.Collection{}, errs.ErrNoPendingFile
	}
	path, ok := k.pendingOpen.Take()
	if !ok {
		return "", sgf.Collection{}, errs.ErrNoPendingFile
	}
	files := k.launchFiles
	if files == nil {
		files = k.files
	}
	c, err := k.openFrom(ctx, files, path)
	if err != nil {
		return path, sgf.Collection{}, err
	}
	return path, c, nil
}

// Format возвращает текст коллекции в том виде, в каком он будет сохранён:
// после проверки структуры и, если включено, нормализации.
func (k *KifuUseCase) Format(c sgf.Collection) (string, error) {
	return k.serializeForSave(c)
}

func (k *KifuUseCase) serializeForSave(c sgf.Collection) (string, error) {
	if err := sgf.CheckStructure(c); err != nil {
		return "", err
	}
	if k.normalizeOnSave {
		c = sgf.NormalizeForSave(c)
	}
	return codec.Serialize(c), nil
}

// Рабочие копии

func (k *KifuUseCase) CreateKifu(ctx context.Context) (string, error) {
	key := uuid.New().String()
	text := codec.Serialize(sgf.NewEmptyCollection())
	if err := k.store.SaveSGF(ctx, key, text); err != nil {
		return "", err
	}
	k.log.Infof("new kifu created with key: %s", key)
	return key, nil
}

func (k *KifuUseCase) LoadKifuText(ctx context.Context, key string) (string, error) {
	return k.store.LoadSGF(ctx, key)
}

func (k *KifuUseCase) LoadKifu(ctx context.Context, key string) (sgf.Collection, error) {
	text, err := k.store.LoadSGF(ctx, key)
	if err != nil {
		return sgf.Collection{}, err
	}
	c, err := codec.Parse(text)
	if err != nil {
		k.log.Errorw("stored kifu does not parse", "key", key, "error", err)
		return sgf.Collection{}, fmt.Errorf("stored kifu %s: %w", key, err)
	}
	return c, nil
}

func (k *KifuUseCase) StoreKifu(ctx context.Context, key string, c sgf.Collection) (string, error) {
	unlock := k.lock(key)
	defer unlock()
	return k.save(ctx, key, c)
}

func (k *KifuUseCase) DeleteKifu(ctx context.Context, key string) error {
	unlock := k.lock(key)
	defer unlock()
	return k.store.DeleteSGF(ctx, key)
}

func (k *KifuUseCase) save(ctx context.Context, key string, c sgf.Collection) (string, error) {
	if err := sgf.CheckStructure(c); err != nil {
		return "", err
	}
	text := codec.Serialize(c)
	if err := k.store.SaveSGF(ctx, key, text); err != nil {
		return "", err
	}
	if k.publisher != nil {
		k.publisher.Publish(key, text)
	}
	return text, nil
}

// edit загружает рабочую копию, применяет fn к корню первой партии и сохраняет
// результат под тем же ключом.
func (k *KifuUseCase) edit(ctx context.Context, key string, fn func(root *sgf.Node) error) (string, error) {
	unlock := k.lock(key)
	defer unlock()

	c, err := k.LoadKifu(ctx, key)
	if err != nil {
		return "", err
	}
	if err = fn(c.Games[0].Root); err != nil {
		return "", err
	}
	return k.save(ctx, key, c)
}

// AppendMove добавляет ход цветом, противоположным последнему ходу на пути
// (первыми ходят чёрные). Легальность хода не проверяется.
func (k *KifuUseCase) AppendMove(ctx context.Context, key string, path []int, coord string) ([]int, string, error) {
	var newPath []int
	text, err := k.edit(ctx, key, func(root *sgf.Node) error {
		node, ok := sgf.NodeByPath(root, path)
		if !ok {
			return fmt.Errorf("%w: %v", errs.ErrNodeNotFound, path)
		}
		color := sgf.NextMoveColor(root, path)
		node.AddChild(sgf.NewNode(sgf.NewProperty(color, coord)))
		newPath = append(append([]int{}, path...), len(node.Children)-1)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	k.log.Infow("move appended", "key", key, "path", newPath, "coord", coord)
	return newPath, text, nil
}

func (k *KifuUseCase) SetComment(ctx context.Context, key string, path []int, comment string) (string, error) {
	return k.edit(ctx, key, func(root *sgf.Node) error {
		node, ok := sgf.NodeByPath(root, path)
		if !ok {
			return fmt.Errorf("%w: %v", errs.ErrNodeNotFound, path)
		}
		node.SetSingleProperty(sgf.IdentComment, comment)
		return nil
	})
}

// SetGameInfo задаёт свойства корня, пустое значение удаляет свойство.
// Новые свойства добавляются в порядке идентификаторов.
func (k *KifuUseCase) SetGameInfo(ctx context.Context, key string, updates map[string]string) (string, error) {
	idents := make([]string, 0, len(updates))
	for ident := range updates {
		if !sgf.IsValidIdent(ident) {
			return "", fmt.Errorf("%w: bad property identifier %q", errs.ErrInvalidStructure, ident)
		}
		idents = append(idents, ident)
	}
	sort.Strings(idents)

	return k.edit(ctx, key, func(root *sgf.Node) error {
		for _, ident := range idents {
			root.SetSingleProperty(ident, updates[ident])
		}
		return nil
	})
}

// Архив

func (k *KifuUseCase) ArchiveKifu(ctx context.Context, key string) (string, error) {
	c, err := k.LoadKifu(ctx, key)
	if err != nil {
		return "", err
	}
	text, err := k.serializeForSave(c)
	if err != nil {
		return "", err
	}

	doc := kifu.ArchivedKifu{
		ID:         uuid.New().String(),
		Key:        key,
		Info:       kifu.InfoFromRoot(c.Games[0].Root),
		SGF:        text,
		ArchivedAt: time.Now().UTC(),
	}
	if err = k.archive.PutArchivedKifu(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (k *KifuUseCase) GetArchived(ctx context.Context, id string) (kifu.ArchivedKifu, error) {
	return k.archive.GetArchivedKifuByID(ctx, id)
}

func (k *KifuUseCase) ListArchivedByPlayer(ctx context.Context, name string, pageNum int) (*kifu.ArchivePage, error) {
	return k.archive.GetArchivedKifuByPlayer(ctx, name, pageNum)
}

// Экспорт

func (k *KifuUseCase) ExportPDF(ctx context.Context, key string, w io.Writer) error {
	c, err := k.LoadKifu(ctx, key)
	if err != nil {
		return err
	}
	return export.WritePDF(w, pdfTitle(c, key), c)
}

func pdfTitle(c sgf.Collection, fallback string) string {
	info := kifu.InfoFromRoot(c.Games[0].Root)
	var players []string
	if info.PlayerBlack != "" {
		players = append(players, info.PlayerBlack)
	}
	if info.PlayerWhite != "" {
		players = append(players, info.PlayerWhite)
	}
	if len(players) == 0 {
		return fallback
	}
	return strings.Join(players, " vs ")
}
