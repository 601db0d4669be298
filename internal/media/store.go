package media

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var blobsBucket = []byte("blobs")

var (
	// ErrTooLarge is returned when a blob exceeds the configured size cap.
	ErrTooLarge = errors.New("media exceeds size limit")
	// ErrNotFound is returned for unknown keys.
	ErrNotFound = errors.New("media not found")
)

// Blob is a stored media file.
type Blob struct {
	Key      string
	Filename string
	MimeType string
	Size     int64
	StoredAt time.Time
	Data     []byte
}

// Object describes a blob after upload.
type Object struct {
	Key      string
	URL      string
	Filename string
	MimeType string
	Size     int64
}

// Store keeps media blobs in a bbolt file and hands out public URLs for them.
type Store struct {
	db        *bbolt.DB
	maxBytes  int64
	publicURL string
	now       func() time.Time
}

// Open opens (or creates) the blob file at path.
func Open(path string, maxBytes int64, publicURL string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open media db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create media bucket: %w", err)
	}
	return &Store{
		db:        db,
		maxBytes:  maxBytes,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

// MaxBytes returns the size cap. Zero or less means unlimited.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Put stores r under {uid}/{unixMillis}_{filename}. A declared size above the
// cap is rejected before anything is read.
func (s *Store) Put(ctx context.Context, uid, filename, mimeType string, r io.Reader, size int64) (*Object, error) {
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, ErrTooLarge
	}
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if uid == "" || strings.Contains(uid, "/") || name == "." || name == "/" {
		return nil, fmt.Errorf("invalid media name %q for user %q", filename, uid)
	}

	limit := s.maxBytes
	if limit <= 0 {
		limit = 1<<63 - 1
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	key := uid + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + name
	blob := &Blob{
		Key:      key,
		Filename: name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		StoredAt: now,
		Data:     data,
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		enc, err := encodeToBinary(blob)
		if err != nil {
			return err
		}
		return tx.Bucket(blobsBucket).Put([]byte(key), enc)
	})
	if err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}
	return &Object{
		Key:      key,
		URL:      s.URL(key),
		Filename: name,
		MimeType: mimeType,
		Size:     blob.Size,
	}, nil
}

// Get loads a blob by key.
func (s *Store) Get(key string) (*Blob, error) {
	var blob Blob
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(blobsBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return decodeBinary(data, &blob)
	})
	if err != nil {
		return nil, err
	}
	return &blob, nil
}

// Delete removes a blob. Deleting an unknown key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blobsBucket).Delete([]byte(key))
	})
}

// List returns the keys stored for uid in upload order.
func (s *Store) List(uid string) ([]string, error) {
	prefix := []byte(uid + "/")
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(blobsBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// URL returns the public address of key.
func (s *Store) URL(key string) string {
	uid, name, _ := strings.Cut(key, "/")
	return s.publicURL + "/media/" + url.PathEscape(uid) + "/" + url.PathEscape(name)
}

// KeyFromURL reverses URL for addresses this store handed out.
func (s *Store) KeyFromURL(u string) (string, bool) {
	rest, ok := strings.CutPrefix(u, s.publicURL+"/media/")
	if !ok {
		return "", false
	}
	uid, name, ok := strings.Cut(rest, "/")
	if !ok {
		return "", false
	}
	uid, err1 := url.PathUnescape(uid)
	name, err2 := url.PathUnescape(name)
	if err1 != nil || err2 != nil {
		return "", false
	}
	return uid + "/" + name, true
}

// Close closes the blob file.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeToBinary(data any) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(data)
	return buf.Bytes(), err
}

func decodeBinary(data []byte, target any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(target)
}
