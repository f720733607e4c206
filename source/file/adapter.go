// Package file replays records from a JSON Lines file.
//
// Each line holds one core.Record in its JSON form. Lines that do not decode
// are reported in Batch.Invalid. The cursor is the byte
// offset of the next unread line, so a resumed job continues exactly where
// the last committed batch ended.
package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/source"
)

// Kind is the source kind served by this package.
const Kind = "file"

const defaultLimit = 100

// Adapter reads a JSON Lines file.
type Adapter struct {
	path   string
	source string
	logger *slog.Logger
}

var _ source.Adapter = (*Adapter)(nil)

// New creates an adapter for cfg.Path.
func New(cfg core.SourceConfig) (source.Adapter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: file source requires a path", core.ErrInvalidSourceConfig)
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", core.ErrInvalidSourceConfig, cfg.Path)
	}

	name := cfg.Params["source"]
	if name == "" {
		name = Kind
	}
	return &Adapter{
		path:   cfg.Path,
		source: name,
		logger: slog.Default().With("component", "file-source", "path", cfg.Path),
	}, nil
}

// FetchBatch reads up to limit records starting at the byte offset in cursor.
func (a *Adapter) FetchBatch(ctx context.Context, cursor core.Cursor, limit int) (*source.Batch, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	offset, err := decodeOffset(cursor)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(a.path)
	if err != nil {
		return nil, core.MarkFatal(err, "the replay file must stay in place until the job ends")
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, core.MarkTransientSource(err)
	}

	reader := bufio.NewReader(f)
	batch := &source.Batch{}
	for len(batch.Records)+len(batch.Invalid) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := reader.ReadBytes('\n')
		offset += int64(len(line))
		if len(bytes.TrimSpace(line)) > 0 {
			rec, err := a.parseLine(line, offset)
			if err != nil {
				batch.Invalid = append(batch.Invalid, err)
			} else {
				batch.Records = append(batch.Records, rec)
			}
		}
		if errors.Is(err, io.EOF) {
			batch.Next = encodeOffset(offset)
			return batch, nil
		}
		if err != nil {
			return nil, core.MarkTransientSource(err)
		}
	}

	// Peek so the last page is reported without an extra empty fetch
	_, err = reader.Peek(1)
	batch.HasMore = err == nil
	batch.Next = encodeOffset(offset)
	return batch, nil
}

func (a *Adapter) parseLine(line []byte, end int64) (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(line, &rec); err != nil {
		start := end - int64(len(line))
		a.logger.Warn("malformed line", "offset", start, "err", err)
		return core.Record{}, fmt.Errorf("%w: line at offset %d: %v", source.ErrMalformedEntry, start, err)
	}
	if rec.Source == "" {
		rec.Source = a.source
	}
	// Fingerprints are always derived, never trusted from input
	rec.Fingerprint = ""
	return rec, nil
}

func encodeOffset(offset int64) core.Cursor {
	return core.Cursor(strconv.FormatInt(offset, 10))
}

func decodeOffset(cursor core.Cursor) (int64, error) {
	if len(cursor) == 0 {
		return 0, nil
	}
	offset, err := strconv.ParseInt(string(cursor), 10, 64)
	if err != nil || offset < 0 {
		return 0, core.MarkFatal(fmt.Errorf("%w: %q", source.ErrInvalidCursor, cursor), "the checkpoint does not belong to a file source")
	}
	return offset, nil
}
