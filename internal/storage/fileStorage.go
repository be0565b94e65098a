package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStorage is a MemoryStorage whose every committed mutation is appended to
// a JSON-lines file as the full record state. On start the file is replayed and
// the last line for each short code wins.
type FileStorage struct {
	mu     sync.Mutex
	mem    *MemoryStorage
	file   *os.File
	logger *zap.Logger
}

// NewFileStorage opens (or creates) the storage file at p and loads its records.
func NewFileStorage(p string, logger *zap.Logger) (*FileStorage, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(p), 0770); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0660)
	if err != nil {
		return nil, err
	}

	mem, _ := CreateMemoryStorage()
	fs := &FileStorage{
		mem:    mem,
		file:   file,
		logger: logger,
	}

	n, err := fs.load()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	logger.Info("file storage loaded", zap.String("path", p), zap.Int("lines", n))

	return fs, nil
}

func (fs *FileStorage) load() (int, error) {
	if _, err := fs.file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	var (
		lines  int
		offset int64
		torn   bool
	)
	reader := bufio.NewReader(fs.file)
	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return lines, fmt.Errorf("error reading file: %w", readErr)
		}

		// a final line without a newline is a write that was cut short
		torn = errors.Is(readErr, io.EOF) && len(line) > 0

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var r URLRecord
			if err := json.Unmarshal(trimmed, &r); err != nil {
				if !torn {
					return lines, fmt.Errorf("failed to parse JSON line %d: %w", lines+1, err)
				}
				fs.logger.Warn("dropping incomplete last line", zap.Int64("offset", offset), zap.Int("bytes", len(line)))
				if err := fs.file.Truncate(offset); err != nil {
					return lines, fmt.Errorf("truncate incomplete line: %w", err)
				}
				return lines, nil
			}
			fs.mem.restore(r)
			lines++
		}

		offset += int64(len(line))
		if readErr != nil {
			break
		}
	}

	if torn {
		// a complete record without its newline; end it so the next append starts a fresh line
		if _, err := fs.file.Write([]byte{'\n'}); err != nil {
			return lines, err
		}
	}

	return lines, nil
}

// appendRecord writes one line. A failed write is truncated away so the file
// never keeps a partial line.
func (fs *FileStorage) appendRecord(r URLRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}

	info, err := fs.file.Stat()
	if err != nil {
		return err
	}

	if _, err := fs.file.Write(append(b, '\n')); err != nil {
		if terr := fs.file.Truncate(info.Size()); terr != nil {
			fs.logger.Error("cannot truncate partial line", zap.Error(terr))
		}
		return err
	}
	return nil
}

func (fs *FileStorage) Write(ctx context.Context, record URLRecord) (*URLRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	r, err := fs.mem.Write(ctx, record)
	if err != nil {
		return nil, err
	}

	if err := fs.appendRecord(*r); err != nil {
		fs.mem.remove(r.Short)
		fs.logger.Error("cannot persist record", zap.String("short", r.Short), zap.Error(err))
		return nil, fmt.Errorf("file storage write: %w", err)
	}

	return r, nil
}

func (fs *FileStorage) FindByShort(ctx context.Context, short string) (*URLRecord, error) {
	return fs.mem.FindByShort(ctx, short)
}

func (fs *FileStorage) Exists(ctx context.Context, short string) (bool, error) {
	return fs.mem.Exists(ctx, short)
}

func (fs *FileStorage) UpdateOriginal(ctx context.Context, short string, original string) (*URLRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, _ := fs.mem.snapshot(short)

	r, err := fs.mem.UpdateOriginal(ctx, short, original)
	if err != nil {
		return nil, err
	}

	if err := fs.appendRecord(*r); err != nil {
		fs.mem.restore(prev)
		return nil, fmt.Errorf("file storage update: %w", err)
	}

	return r, nil
}

func (fs *FileStorage) Delete(ctx context.Context, short string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, _ := fs.mem.snapshot(short)

	if err := fs.mem.Delete(ctx, short); err != nil {
		return err
	}

	deleted := prev
	deleted.IsActive = false
	if err := fs.appendRecord(deleted); err != nil {
		fs.mem.restore(prev)
		return fmt.Errorf("file storage delete: %w", err)
	}

	return nil
}

func (fs *FileStorage) IncrementClicks(ctx context.Context, short string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, ok := fs.mem.snapshot(short)
	if !ok || !prev.IsActive {
		return nil
	}

	if err := fs.mem.IncrementClicks(ctx, short); err != nil {
		return err
	}

	next := prev
	next.Clicks++
	if err := fs.appendRecord(next); err != nil {
		fs.mem.restore(prev)
		return fmt.Errorf("file storage increment: %w", err)
	}

	return nil
}

func (fs *FileStorage) ReadActive(ctx context.Context) ([]URLRecord, error) {
	return fs.mem.ReadActive(ctx)
}

func (fs *FileStorage) PingContext(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, err := fs.file.Stat()
	return err
}

func (fs *FileStorage) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.file.Close()
}
