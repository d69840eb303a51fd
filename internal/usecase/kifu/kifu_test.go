package kifu

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"kifu_viewer/internal/bootstrap"
	"kifu_viewer/internal/codec"
	"kifu_viewer/internal/domain/kifu"
	"kifu_viewer/internal/domain/sgf"
	errs "kifu_viewer/internal/errors"
	"kifu_viewer/internal/pending"
	"kifu_viewer/internal/repository"
)

type memoryKifuStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryKifuStore() *memoryKifuStore {
	return &memoryKifuStore{data: make(map[string]string)}
}

func (m *memoryKifuStore) SaveSGF(_ context.Context, key string, sgfText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = sgfText
	return nil
}

func (m *memoryKifuStore) LoadSGF(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.data[key]
	if !ok {
		return "", errs.ErrKifuNotFound
	}
	return text, nil
}

func (m *memoryKifuStore) DeleteSGF(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type memoryArchive struct {
	docs []kifu.ArchivedKifu
}

func (m *memoryArchive) PutArchivedKifu(_ context.Context, doc kifu.ArchivedKifu) error {
	m.docs = append(m.docs, doc)
	return nil
}

func (m *memoryArchive) GetArchivedKifuByID(_ context.Context, id string) (kifu.ArchivedKifu, error) {
	for _, doc := range m.docs {
		if doc.ID == id {
			return doc, nil
		}
	}
	return kifu.ArchivedKifu{}, errs.ErrArchiveNotFound
}

func (m *memoryArchive) GetArchivedKifuByPlayer(_ context.Context, name string, pageNum int) (*kifu.ArchivePage, error) {
	page := &kifu.ArchivePage{Page: pageNum}
	for _, doc := range m.docs {
		if doc.Info.PlayerBlack == name || doc.Info.PlayerWhite == name {
			page.Kifu = append(page.Kifu, doc)
		}
	}
	return page, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingPublisher) Publish(_ string, sgfText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, sgfText)
}

type fixture struct {
	uc      *KifuUseCase
	store   *memoryKifuStore
	archive *memoryArchive
	pending *pending.OpenFile
	pub     *recordingPublisher
	dir     string
}

func newFixture(t *testing.T, cfg bootstrap.Config) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	f := &fixture{
		store:   newMemoryKifuStore(),
		archive: &memoryArchive{},
		pending: pending.NewOpenFile(),
		pub:     &recordingPublisher{},
		dir:     t.TempDir(),
	}
	f.uc = NewKifuUseCase(cfg, log, repository.NewFileStorage(f.dir, log), f.store, f.archive, f.pending)
	f.uc.SetLaunchFiles(repository.NewLocalFileStorage(log))
	f.uc.SetPublisher(f.pub)
	return f
}

func TestOpenAndSaveFile(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()

	src := "(;GM[1]FF[4]SZ[19];B[pd](;W[dd])(;W[qp]))"
	if err := os.WriteFile(filepath.Join(f.dir, "game.sgf"), []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := f.uc.OpenFile(ctx, "game.sgf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err = f.uc.SaveFile(ctx, "copy.sgf", c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := os.ReadFile(filepath.Join(f.dir, "copy.sgf"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(out) != src {
		t.Fatalf("expected identical text\ngot:  %s\nwant: %s", out, src)
	}
}

func TestOpenFile_Errors(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()

	if _, err := f.uc.OpenFile(ctx, "missing.sgf"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(f.dir, "broken.sgf"), []byte("(;B[pd]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := f.uc.OpenFile(ctx, "broken.sgf")
	var perr *codec.ParseError
	if !errors.As(err, &perr) || perr.Kind != codec.KindUnexpectedEOF {
		t.Fatalf("expected unexpected EOF parse error, got %v", err)
	}
}

func TestFiles_RejectPathsOutsideDataDir(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()
	outside := filepath.Join(t.TempDir(), "outside.sgf")
	if err := os.WriteFile(outside, []byte("(;GM[1])"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, path := range []string{outside, "../outside.sgf", "a/../../outside.sgf"} {
		if _, err := f.uc.OpenFile(ctx, path); !errors.Is(err, errs.ErrPathNotAllowed) {
			t.Fatalf("OpenFile(%q): expected ErrPathNotAllowed, got %v", path, err)
		}
		if err := f.uc.SaveFile(ctx, path, sgf.NewEmptyCollection()); !errors.Is(err, errs.ErrPathNotAllowed) {
			t.Fatalf("SaveFile(%q): expected ErrPathNotAllowed, got %v", path, err)
		}
	}

	data, err := os.ReadFile(outside)
	if err != nil || string(data) != "(;GM[1])" {
		t.Fatalf("file outside the data directory changed: %q (%v)", data, err)
	}
}

func TestFormat(t *testing.T) {
	c, err := codec.Parse("(;GM[1]XX[junk];B[pd])")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	plain, err := newFixture(t, bootstrap.Config{}).uc.Format(c)
	if err != nil || plain != "(;GM[1]XX[junk];B[pd])" {
		t.Fatalf("Format without normalization = %q, %v", plain, err)
	}
	normalized, err := newFixture(t, bootstrap.Config{NormalizeOnSave: true}).uc.Format(c)
	if err != nil || normalized != "(;GM[1]AP[Go Kifu Viewer];B[pd])" {
		t.Fatalf("Format with normalization = %q, %v", normalized, err)
	}
	if _, err = newFixture(t, bootstrap.Config{}).uc.Format(sgf.Collection{}); !errors.Is(err, errs.ErrEmptyCollection) {
		t.Fatalf("expected ErrEmptyCollection, got %v", err)
	}
}

func TestSaveFile_RejectsInvalidCollections(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})

	err := f.uc.SaveFile(context.Background(), "empty.sgf", sgf.Collection{})
	if !errors.Is(err, errs.ErrEmptyCollection) {
		t.Fatalf("expected ErrEmptyCollection, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(f.dir, "empty.sgf")); !os.IsNotExist(statErr) {
		t.Fatalf("nothing must be written for an invalid collection")
	}
}

func TestSaveFile_Normalizes(t *testing.T) {
	f := newFixture(t, bootstrap.Config{NormalizeOnSave: true})
	c, err := codec.Parse("(;GM[1]XX[junk];B[pd]TR[aa])")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if err = f.uc.SaveFile(context.Background(), "n.sgf", c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, _ := os.ReadFile(filepath.Join(f.dir, "n.sgf"))
	if string(out) != "(;GM[1]AP[Go Kifu Viewer];B[pd])" {
		t.Fatalf("unexpected normalized output %q", out)
	}
}

func TestTakePendingOpen(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()

	if _, _, err := f.uc.TakePendingOpen(ctx); !errors.Is(err, errs.ErrNoPendingFile) {
		t.Fatalf("expected ErrNoPendingFile, got %v", err)
	}

	// файл запуска может лежать вне каталога данных
	path := filepath.Join(t.TempDir(), "launch.sgf")
	if err := os.WriteFile(path, []byte("(;C[launched])"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.pending.Set(path)

	got, c, err := f.uc.TakePendingOpen(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path || c.Games[0].Root.FirstPropertyValue("C") != "launched" {
		t.Fatalf("unexpected result %q %#v", got, c)
	}
	if _, _, err = f.uc.TakePendingOpen(ctx); !errors.Is(err, errs.ErrNoPendingFile) {
		t.Fatalf("pending path must be delivered once, got %v", err)
	}
}

func TestEditingWorkingCopy(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()

	key, err := f.uc.CreateKifu(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	path, _, err := f.uc.AppendMove(ctx, key, nil, "pd")
	if err != nil {
		t.Fatalf("append #1: %v", err)
	}
	if !reflect.DeepEqual(path, []int{0}) {
		t.Fatalf("expected path [0], got %v", path)
	}
	path, _, err = f.uc.AppendMove(ctx, key, path, "dd")
	if err != nil {
		t.Fatalf("append #2: %v", err)
	}
	// второй ход от корня открывает вариант
	variation, _, err := f.uc.AppendMove(ctx, key, nil, "qq")
	if err != nil {
		t.Fatalf("append #3: %v", err)
	}
	if !reflect.DeepEqual(variation, []int{1}) {
		t.Fatalf("expected path [1], got %v", variation)
	}

	if _, err = f.uc.SetComment(ctx, key, path, "good shape"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	text, err := f.uc.SetGameInfo(ctx, key, map[string]string{"PW": "Gennan", "PB": "Shusaku", "SZ": ""})
	if err != nil {
		t.Fatalf("info: %v", err)
	}

	want := "(;FF[4]GM[1]PB[Shusaku]PW[Gennan](;B[pd];W[dd]C[good shape])(;B[qq]))"
	if text != want {
		t.Fatalf("unexpected record\ngot:  %s\nwant: %s", text, want)
	}
	stored, _ := f.uc.LoadKifuText(ctx, key)
	if stored != want {
		t.Fatalf("store not updated: %s", stored)
	}
	if len(f.pub.messages) != 5 || f.pub.messages[4] != want {
		t.Fatalf("expected 5 published updates ending with the record, got %q", f.pub.messages)
	}
}

func TestEditingErrors(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()

	if _, _, err := f.uc.AppendMove(ctx, "absent", nil, "aa"); !errors.Is(err, errs.ErrKifuNotFound) {
		t.Fatalf("expected ErrKifuNotFound, got %v", err)
	}

	key, _ := f.uc.CreateKifu(ctx)
	if _, _, err := f.uc.AppendMove(ctx, key, []int{3}, "aa"); !errors.Is(err, errs.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if _, err := f.uc.SetGameInfo(ctx, key, map[string]string{"pb": "x"}); !errors.Is(err, errs.ErrInvalidStructure) {
		t.Fatalf("expected ErrInvalidStructure, got %v", err)
	}
	if _, err := f.uc.StoreKifu(ctx, key, sgf.Collection{}); !errors.Is(err, errs.ErrEmptyCollection) {
		t.Fatalf("expected ErrEmptyCollection, got %v", err)
	}
}

func TestConcurrentAppendsAreSerialized(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()
	key, _ := f.uc.CreateKifu(ctx)

	const moves = 20
	var wg sync.WaitGroup
	for i := 0; i < moves; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.uc.AppendMove(ctx, key, nil, "aa"); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	c, err := f.uc.LoadKifu(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(c.Games[0].Root.Children); got != moves {
		t.Fatalf("expected %d variations from the root, got %d", moves, got)
	}
	if n := f.uc.locks.size(); n != 0 {
		t.Fatalf("key locks must be released after the edits, %d left", n)
	}
}

func TestKeyLocks_ReleasedAfterDelete(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key, err := f.uc.CreateKifu(ctx)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, _, err = f.uc.AppendMove(ctx, key, nil, "pd"); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err = f.uc.DeleteKifu(ctx, key); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	if n := f.uc.locks.size(); n != 0 {
		t.Fatalf("expected no key locks, got %d", n)
	}
}

func TestKeyLocks_ExcludeEachOther(t *testing.T) {
	var locks keyLocks
	unlock := locks.lock("k")

	acquired := make(chan struct{})
	go func() {
		release := locks.lock("k")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatalf("second holder got the lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}
	if n := locks.size(); n != 1 {
		t.Fatalf("waiter must share the entry, got %d entries", n)
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatalf("waiter never got the lock")
	}
}

func TestArchiveAndExport(t *testing.T) {
	f := newFixture(t, bootstrap.Config{})
	ctx := context.Background()
	key, _ := f.uc.CreateKifu(ctx)
	if _, err := f.uc.SetGameInfo(ctx, key, map[string]string{"PB": "Shusaku", "PW": "Gennan"}); err != nil {
		t.Fatalf("info: %v", err)
	}

	id, err := f.uc.ArchiveKifu(ctx, key)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	doc, err := f.uc.GetArchived(ctx, id)
	if err != nil {
		t.Fatalf("get archived: %v", err)
	}
	if doc.Key != key || doc.Info.PlayerBlack != "Shusaku" {
		t.Fatalf("unexpected archived doc %#v", doc)
	}
	if _, err = codec.Parse(doc.SGF); err != nil {
		t.Fatalf("archived text must parse: %v", err)
	}

	page, err := f.uc.ListArchivedByPlayer(ctx, "Gennan", 1)
	if err != nil || len(page.Kifu) != 1 {
		t.Fatalf("expected one archived record for Gennan, got %#v (%v)", page, err)
	}

	var buf bytes.Buffer
	if err = f.uc.ExportPDF(ctx, key, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected a PDF document")
	}
}

func TestPdfTitle(t *testing.T) {
	c := sgf.NewEmptyCollection()
	if got := pdfTitle(c, "key"); got != "key" {
		t.Fatalf("expected fallback, got %q", got)
	}
	c.Games[0].Root.SetSingleProperty("PB", "Black")
	c.Games[0].Root.SetSingleProperty("PW", "White")
	if got := pdfTitle(c, "key"); got != "Black vs White" {
		t.Fatalf("unexpected title %q", got)
	}
}
