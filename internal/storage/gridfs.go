package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultBucketName = "images"

var log = logrus.WithField("logger", "storage")

type fileMetadata struct {
	ContentType string `bson:"contentType"`
	BusinessID  string `bson:"businessId"`
	Caption     string `bson:"caption,omitempty"`
}

// gridFile mirrors a document of the bucket's files collection.
type gridFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
	Filename   string             `bson:"filename"`
	Metadata   fileMetadata       `bson:"metadata"`
}

func (f gridFile) blob() Blob {
	return Blob{
		ID:         BlobID(f.ID.Hex()),
		Length:     f.Length,
		UploadedAt: f.UploadDate.UTC(),
		Metadata: Metadata{
			ContentType: f.Metadata.ContentType,
			BusinessID:  f.Metadata.BusinessID,
			Caption:     f.Metadata.Caption,
			Filename:    f.Filename,
		},
	}
}

// GridFSStore keeps blobs in a MongoDB GridFS bucket.
type GridFSStore struct {
	client     *mongo.Client
	db         *mongo.Database
	bucketName string
	files      *mongo.Collection
}

// ConnectGridFS dials uri and returns a store bound to bucketName in dbName.
func ConnectGridFS(ctx context.Context, uri, dbName, bucketName string) (*GridFSStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect(ctx, uri). %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("cli.Ping(pctx, nil). %w", err)
	}

	store := NewGridFSStore(cli, cli.Database(dbName), bucketName)

	_, err = store.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "metadata.businessId", Value: 1}, {Key: "uploadDate", Value: 1}},
	})
	if err != nil {
		log.WithError(err).Warn("Could not create businessId index on GridFS files collection")
	}

	return store, nil
}

// NewGridFSStore wraps an already connected database. client may be nil when
// the caller owns the connection.
func NewGridFSStore(client *mongo.Client, db *mongo.Database, bucketName string) *GridFSStore {
	if bucketName == "" {
		bucketName = DefaultBucketName
	}
	return &GridFSStore{
		client:     client,
		db:         db,
		bucketName: bucketName,
		files:      db.Collection(bucketName + ".files"),
	}
}

// bucket returns a fresh handle. Deadlines are per bucket, so handles are
// never shared between requests.
func (g *GridFSStore) bucket() (*gridfs.Bucket, error) {
	return gridfs.NewBucket(g.db, options.GridFSBucket().SetName(g.bucketName))
}

func (g *GridFSStore) Store(ctx context.Context, r io.Reader, meta Metadata) (BlobID, error) {
	if err := meta.validate(); err != nil {
		return "", err
	}

	bucket, err := g.bucket()
	if err != nil {
		return "", storeErr("gridfs.NewBucket()", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return "", storeErr("bucket.SetWriteDeadline(deadline)", err)
		}
	}

	fileID := primitive.NewObjectID()
	uploadOpts := options.GridFSUpload().SetMetadata(fileMetadata{
		ContentType: meta.ContentType,
		BusinessID:  meta.BusinessID,
		Caption:     meta.Caption,
	})

	// The files document is only inserted by Close, so readers cannot see
	// the blob before every chunk is written.
	stream, err := bucket.OpenUploadStreamWithID(fileID, meta.Filename, uploadOpts)
	if err != nil {
		return "", storeErr("bucket.OpenUploadStreamWithID()", err)
	}

	if _, err := io.Copy(stream, ctxReader{ctx: ctx, r: r}); err != nil {
		if abortErr := stream.Abort(); abortErr != nil {
			log.WithError(abortErr).WithField("file_id", fileID.Hex()).Warn("Could not abort GridFS upload")
		}
		return "", storeErr("io.Copy(stream, r)", err)
	}

	if err := stream.Close(); err != nil {
		return "", storeErr("stream.Close()", err)
	}

	return BlobID(fileID.Hex()), nil
}

func (g *GridFSStore) GetByID(ctx context.Context, id string) (Blob, error) {
	oid, err := ParseBlobID(id)
	if err != nil {
		return Blob{}, err
	}

	var file gridFile
	err = g.files.FindOne(ctx, bson.M{"_id": oid}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Blob{}, ErrNotFound
	}
	if err != nil {
		return Blob{}, storeErr("g.files.FindOne(ctx, id)", err)
	}

	return file.blob(), nil
}

func (g *GridFSStore) StreamByFilename(ctx context.Context, name string) (Blob, io.ReadCloser, error) {
	// newest revision wins, as with GridFS openDownloadStreamByName
	findOpts := options.FindOne().SetSort(bson.D{{Key: "uploadDate", Value: -1}})

	var file gridFile
	err := g.files.FindOne(ctx, bson.M{"filename": name}, findOpts).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Blob{}, nil, ErrNotFound
	}
	if err != nil {
		return Blob{}, nil, storeErr("g.files.FindOne(ctx, filename)", err)
	}

	bucket, err := g.bucket()
	if err != nil {
		return Blob{}, nil, storeErr("gridfs.NewBucket()", err)
	}

	stream, err := bucket.OpenDownloadStream(file.ID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return Blob{}, nil, ErrNotFound
	}
	if err != nil {
		return Blob{}, nil, storeErr("bucket.OpenDownloadStream(file.ID)", err)
	}

	return file.blob(), stream, nil
}

func (g *GridFSStore) ListByOwner(ctx context.Context, businessID string) ([]Blob, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "uploadDate", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := g.files.Find(ctx, bson.M{"metadata.businessId": businessID}, findOpts)
	if err != nil {
		return nil, storeErr("g.files.Find(ctx, businessId)", err)
	}
	defer cur.Close(ctx)

	blobs := []Blob{}
	for cur.Next(ctx) {
		var file gridFile
		if err := cur.Decode(&file); err != nil {
			return nil, storeErr("cur.Decode(&file)", err)
		}
		blobs = append(blobs, file.blob())
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr("cur.Err()", err)
	}

	return blobs, nil
}

func (g *GridFSStore) Ping(ctx context.Context) error {
	if g.client == nil {
		return nil
	}
	return g.client.Ping(ctx, nil)
}

func (g *GridFSStore) Close(ctx context.Context) error {
	if g.client == nil {
		return nil
	}
	return g.client.Disconnect(ctx)
}
