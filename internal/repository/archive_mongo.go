package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"kifu_viewer/internal/bootstrap"
	"kifu_viewer/internal/domain/kifu"
	errs "kifu_viewer/internal/errors"
)

const archiveCollection = "kifu_archive"

type ArchiveRepository struct {
	cfg   bootstrap.Config
	log   *zap.SugaredLogger
	mongo *mongo.Database
}

func NewArchiveRepository(cfg bootstrap.Config, log *zap.SugaredLogger, mongo *mongo.Database) *ArchiveRepository {
	return &ArchiveRepository{
		cfg:   cfg,
		log:   log,
		mongo: mongo,
	}
}

// EnsureIndexes создаёт индексы для выборки архива по игроку.
func (a *ArchiveRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "info.player_black", Value: 1}, {Key: "archived_at", Value: -1}}},
		{Keys: bson.D{{Key: "info.player_white", Value: 1}, {Key: "archived_at", Value: -1}}},
		{Keys: bson.D{{Key: "key", Value: 1}}},
	}
	names, err := a.mongo.Collection(archiveCollection).Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("failed to create archive indexes: %w", err)
	}
	a.log.Debugw("archive indexes ready", "indexes", names)
	return nil
}

func (a *ArchiveRepository) PutArchivedKifu(ctx context.Context, doc kifu.ArchivedKifu) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := a.mongo.Collection(archiveCollection).InsertOne(ctx, doc)
	if err != nil {
		a.log.Errorf("failed to insert kifu to archive: %v", err)
		return err
	}

	a.log.Infof("kifu archived with id: %s", doc.ID)
	return nil
}

func (a *ArchiveRepository) GetArchivedKifuByID(ctx context.Context, id string) (kifu.ArchivedKifu, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var found kifu.ArchivedKifu
	err := a.mongo.Collection(archiveCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&found)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return kifu.ArchivedKifu{}, errs.ErrArchiveNotFound
	} else if err != nil {
		a.log.Error(err)
		return kifu.ArchivedKifu{}, err
	}
	return found, nil
}

// GetArchivedKifuByPlayer возвращает страницу (с 1) записей, где игрок играл
// любым цветом, сначала новые.
func (a *ArchiveRepository) GetArchivedKifuByPlayer(ctx context.Context, name string, pageNum int) (*kifu.ArchivePage, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if pageNum < 1 {
		pageNum = 1
	}
	limit := int64(a.cfg.PageLimitKifu)
	if limit <= 0 {
		limit = 20
	}

	filter := bson.M{
		"$or": []bson.M{
			{"info.player_black": name},
			{"info.player_white": name},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "archived_at", Value: -1}}).
		SetSkip(int64(pageNum-1) * limit).
		SetLimit(limit + 1)

	cursor, err := a.mongo.Collection(archiveCollection).Find(ctx, filter, opts)
	if err != nil {
		a.log.Error(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	page := &kifu.ArchivePage{Page: pageNum, Kifu: []kifu.ArchivedKifu{}}
	for cursor.Next(ctx) {
		var doc kifu.ArchivedKifu
		if err = cursor.Decode(&doc); err != nil {
			a.log.Error(err)
			return nil, err
		}
		page.Kifu = append(page.Kifu, doc)
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	if int64(len(page.Kifu)) > limit {
		page.Kifu = page.Kifu[:limit]
		page.HasMore = true
	}
	return page, nil
}
