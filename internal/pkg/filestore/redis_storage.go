package filestore

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisFileStore stages uploaded video files in Redis so the HTTP handler
// can hand off quickly and the analyzer reads the bytes later. Files are
// split into fixed-size chunks; large payloads are zlib-compressed before
// chunking. Everything expires after TTL, Redis is never long-term storage.
type RedisFileStore struct {
	client        *redis.Client
	chunkSize     int
	maxFileSize   int64
	compressAbove int64
	ttl           time.Duration
}

type FileMeta struct {
	FileName    string
	ContentType string
	Size        int64
	Chunks      int
	Compressed  bool
}

func NewRedisFileStore(client *redis.Client, chunkSize int, maxFileSizeMB, compressAboveMB int, ttl time.Duration) *RedisFileStore {
	return &RedisFileStore{
		client:        client,
		chunkSize:     chunkSize,
		maxFileSize:   int64(maxFileSizeMB) * 1024 * 1024,
		compressAbove: int64(compressAboveMB) * 1024 * 1024,
		ttl:           ttl,
	}
}

func metaKey(id uuid.UUID) string {
	return fmt.Sprintf("upload:%s:meta", id)
}

func chunkKey(id uuid.UUID, i int) string {
	return fmt.Sprintf("upload:%s:chunk:%d", id, i)
}

// ChunkCount returns how many chunks a payload of the given size occupies.
func (s *RedisFileStore) ChunkCount(size int) int {
	if size <= 0 {
		return 0
	}
	return (size + s.chunkSize - 1) / s.chunkSize
}

// Store stages a file and returns its handle. Rejects payloads over the
// size cap before touching Redis.
func (s *RedisFileStore) Store(ctx context.Context, fileName, contentType string, data []byte) (uuid.UUID, error) {
	if int64(len(data)) > s.maxFileSize {
		return uuid.Nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", fileName, s.maxFileSize)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}

	compressed := false
	payload := data
	if int64(len(data)) > s.compressAbove {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return uuid.Nil, err
		}
		if err := w.Close(); err != nil {
			return uuid.Nil, err
		}
		payload = buf.Bytes()
		compressed = true
	}

	chunks := s.ChunkCount(len(payload))

	pipe := s.client.TxPipeline()
	for i := 0; i < chunks; i++ {
		start := i * s.chunkSize
		end := start + s.chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		pipe.Set(ctx, chunkKey(id, i), payload[start:end], s.ttl)
	}
	pipe.HSet(ctx, metaKey(id), map[string]interface{}{
		"file_name":    fileName,
		"content_type": contentType,
		"size":         len(data),
		"chunks":       chunks,
		"compressed":   compressed,
	})
	pipe.Expire(ctx, metaKey(id), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to stage file in redis: %w", err)
	}

	return id, nil
}

// Load reassembles a staged file.
func (s *RedisFileStore) Load(ctx context.Context, id uuid.UUID) ([]byte, *FileMeta, error) {
	values, err := s.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, nil, err
	}
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("file %s not found or expired", id)
	}

	meta := &FileMeta{
		FileName:    values["file_name"],
		ContentType: values["content_type"],
		Compressed:  values["compressed"] == "1" || values["compressed"] == "true",
	}
	fmt.Sscanf(values["size"], "%d", &meta.Size)
	fmt.Sscanf(values["chunks"], "%d", &meta.Chunks)

	var buf bytes.Buffer
	for i := 0; i < meta.Chunks; i++ {
		chunk, err := s.client.Get(ctx, chunkKey(id, i)).Bytes()
		if err != nil {
			return nil, nil, fmt.Errorf("missing chunk %d of file %s: %w", i, id, err)
		}
		buf.Write(chunk)
	}

	payload := buf.Bytes()
	if meta.Compressed {
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, nil, err
		}
		defer r.Close()
		payload, err = io.ReadAll(r)
		if err != nil {
			return nil, nil, err
		}
	}

	return payload, meta, nil
}

// Delete drops all keys of a staged file.
func (s *RedisFileStore) Delete(ctx context.Context, id uuid.UUID) error {
	values, err := s.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return err
	}
	var chunks int
	fmt.Sscanf(values["chunks"], "%d", &chunks)

	keys := make([]string, 0, chunks+1)
	for i := 0; i < chunks; i++ {
		keys = append(keys, chunkKey(id, i))
	}
	keys = append(keys, metaKey(id))

	return s.client.Del(ctx, keys...).Err()
}
