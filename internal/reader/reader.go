// Package reader is the upstream producer: it walks a directory of
// newline-delimited JSON journal files (optionally gzip-compressed), skips
// everything up to the sink's resume position and hands the remaining
// records to the sink in batches.
package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"el-shipper/internal/config"
	"el-shipper/internal/eventlog"

	json "github.com/goccy/go-json"
	gzip "github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// ShipFunc receives one batch of records to persist. It is the only
// coupling between the reader and the storage sink.
type ShipFunc func(ctx context.Context, records []eventlog.Record) error

// maxLineSize bounds a single journal line; event data blobs can be large.
const maxLineSize = 4 * 1024 * 1024

type Reader struct {
	dir   string
	batch int
}

func New(cfg config.Reader) *Reader {
	return &Reader{dir: cfg.JournalDir, batch: cfg.BatchSize}
}

// Run processes every journal file currently present, in file-name order,
// resuming after start. Records positioned at or before start are skipped;
// each collected batch is shipped before the next one is read.
func (r *Reader) Run(ctx context.Context, start eventlog.Position, ship ShipFunc) error {
	files, err := r.journalFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logrus.Infof("No journal files found | dir=%s", r.dir)
		return nil
	}

	batch := make([]eventlog.Record, 0, r.batch)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ship(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.readFile(ctx, path, start, &batch, flush)
		if err != nil {
			return fmt.Errorf("failed to process journal %s: %w", path, err)
		}
		logrus.Infof("Journal processed | file=%s records=%d", filepath.Base(path), n)
	}

	if err := flush(); err != nil {
		return err
	}

	logrus.Infof("Shipping finished | records=%d", total)
	return nil
}

// readFile decodes one journal file, appending surviving records to batch
// and flushing whenever the batch is full.
func (r *Reader) readFile(ctx context.Context, path string, start eventlog.Position, batch *[]eventlog.Record, flush func() error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, err
		}
		defer gz.Close()
		src = gz
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec eventlog.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// Non-fatal: skip malformed lines but keep a trace for diagnosis.
			logrus.Warnf("Skipping malformed journal line | file=%s err=%v", filepath.Base(path), err)
			continue
		}

		if shipped(rec, start) {
			continue
		}

		*batch = append(*batch, rec)
		n++
		if len(*batch) >= r.batch {
			if err := flush(); err != nil {
				return n, err
			}
		}
	}
	return n, scanner.Err()
}

// shipped reports whether the record lies at or before the resume position.
// Journal file names are lexicographically ordered by the log writer, so a
// plain string comparison is enough.
func shipped(rec eventlog.Record, start eventlog.Position) bool {
	if start.IsZero() {
		return false
	}
	if rec.FileName != start.FileName {
		return rec.FileName < start.FileName
	}
	return rec.EndPosition <= start.EndPosition
}

// journalFiles lists *.jsonl and *.jsonl.gz under the journal directory in
// name order.
func (r *Reader) journalFiles() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".jsonl.gz") {
			files = append(files, filepath.Join(r.dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}
