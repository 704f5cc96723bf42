// Package files stores chat attachments in a MongoDB GridFS bucket. Each
// object is addressed by a ULID key that file messages carry as content.
package files

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	// ErrNotFound is returned when no object has the requested key.
	ErrNotFound = errors.New("file not found")
	// ErrTooLarge is returned when an upload exceeds the store's limit.
	ErrTooLarge = errors.New("file too large")
	// ErrInvalidKey is returned for keys that are not ULIDs.
	ErrInvalidKey = errors.New("invalid file key")
)

// Info describes a stored object.
type Info struct {
	Key        string    `json:"key"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt"`
	Owner      uuid.UUID `json:"-"`
}

// Store reads and writes attachments.
type Store struct {
	bucket   *mongo.GridFSBucket
	maxBytes int64
}

// NewStore returns a Store over bucket. Uploads larger than maxBytes are
// rejected; zero disables the limit.
func NewStore(bucket *mongo.GridFSBucket, maxBytes int64) *Store {
	return &Store{bucket: bucket, maxBytes: maxBytes}
}

type uploadMeta struct {
	ContentType string `bson:"contentType"`
	Owner       string `bson:"owner"`
}

// Upload streams r into the bucket under a fresh key, recording ownerID
// as the uploader.
func (s *Store) Upload(ctx context.Context, ownerID uuid.UUID, fileName, contentType string, r io.Reader) (*Info, error) {
	key := ulid.Make().String()

	src := r
	if s.maxBytes > 0 {
		// one extra byte tells an exact-limit upload from an oversized one
		src = io.LimitReader(r, s.maxBytes+1)
	}
	counted := &countingReader{r: src}

	meta := uploadMeta{ContentType: contentType, Owner: ownerID.String()}
	opts := options.GridFSUpload().SetMetadata(meta)
	if err := s.bucket.UploadFromStreamWithID(ctx, key, fileName, counted, opts); err != nil {
		return nil, errors.Wrap(err, "files.Upload.UploadFromStreamWithID")
	}

	if s.maxBytes > 0 && counted.n > s.maxBytes {
		_ = s.bucket.Delete(ctx, key)
		return nil, ErrTooLarge
	}

	return &Info{
		Key:        key,
		FileName:   fileName,
		FileType:   contentType,
		FileSize:   counted.n,
		UploadedAt: time.Now().UTC(),
		Owner:      ownerID,
	}, nil
}

// Open returns a reader over the object stored under key. The caller
// closes it.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, *Info, error) {
	if _, err := ulid.ParseStrict(key); err != nil {
		return nil, nil, ErrInvalidKey
	}

	stream, err := s.bucket.OpenDownloadStream(ctx, key)
	if err != nil {
		if errors.Is(err, mongo.ErrFileNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, errors.Wrap(err, "files.Open.OpenDownloadStream")
	}

	file := stream.GetFile()
	info := &Info{
		Key:        key,
		FileName:   file.Name,
		FileSize:   file.Length,
		UploadedAt: file.UploadDate,
	}
	meta := decodeMeta(file.Metadata)
	info.FileType = meta.ContentType
	info.Owner, _ = uuid.Parse(meta.Owner)
	return stream, info, nil
}

// Owner returns the user who uploaded the object stored under key.
func (s *Store) Owner(ctx context.Context, key string) (uuid.UUID, error) {
	if _, err := ulid.ParseStrict(key); err != nil {
		return uuid.Nil, ErrInvalidKey
	}

	cursor, err := s.bucket.Find(ctx, bson.D{{Key: "_id", Value: key}})
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "files.Owner.Find")
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return uuid.Nil, errors.Wrap(err, "files.Owner.Next")
		}
		return uuid.Nil, ErrNotFound
	}
	var doc struct {
		Metadata bson.Raw `bson:"metadata"`
	}
	if err := cursor.Decode(&doc); err != nil {
		return uuid.Nil, errors.Wrap(err, "files.Owner.Decode")
	}

	owner, err := uuid.Parse(decodeMeta(doc.Metadata).Owner)
	if err != nil {
		// uploaded without an owner; nobody may attach it
		return uuid.Nil, ErrNotFound
	}
	return owner, nil
}

func decodeMeta(raw bson.Raw) uploadMeta {
	var meta uploadMeta
	if len(raw) > 0 {
		_ = bson.Unmarshal(raw, &meta)
	}
	return meta
}

// Delete removes the object stored under key. A missing object is not
// an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if err != nil && !errors.Is(err, mongo.ErrFileNotFound) {
		return errors.Wrap(err, "files.Delete")
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
