package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"el-shipper/internal/config"
	"el-shipper/internal/eventlog"

	json "github.com/goccy/go-json"
	gzip "github.com/klauspost/compress/gzip"
	"gotest.tools/v3/assert"
)

func journalRec(file string, pos int64, hour int) eventlog.Record {
	return eventlog.Record{
		DateTime:    time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC),
		Event:       "Session",
		FileName:    file,
		EndPosition: pos,
	}
}

func writeJournal(t *testing.T, dir, name string, compress bool, records ...eventlog.Record) {
	t.Helper()

	var lines []byte
	for _, r := range records {
		b, err := json.Marshal(r)
		assert.NilError(t, err)
		lines = append(lines, b...)
		lines = append(lines, '\n')
	}

	path := filepath.Join(dir, name)
	if compress {
		f, err := os.Create(path)
		assert.NilError(t, err)
		gz := gzip.NewWriter(f)
		_, err = gz.Write(lines)
		assert.NilError(t, err)
		assert.NilError(t, gz.Close())
		assert.NilError(t, f.Close())
		return
	}
	assert.NilError(t, os.WriteFile(path, lines, 0o644))
}

type collector struct {
	batches [][]eventlog.Record
}

func (c *collector) ship(_ context.Context, records []eventlog.Record) error {
	batch := append([]eventlog.Record(nil), records...)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *collector) ids() []string {
	var ids []string
	for _, b := range c.batches {
		for _, r := range b {
			ids = append(ids, r.DocumentID())
		}
	}
	return ids
}

func TestRunShipsEverythingFromScratch(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, "20240101.jsonl", false,
		journalRec("20240101000000.lgp", 1, 5),
		journalRec("20240101000000.lgp", 2, 5),
		journalRec("20240101000000.lgp", 3, 6),
	)
	writeJournal(t, dir, "20240102.jsonl.gz", true,
		journalRec("20240102000000.lgp", 1, 7),
		journalRec("20240102000000.lgp", 2, 8),
	)

	c := &collector{}
	r := New(config.Reader{JournalDir: dir, BatchSize: 2})
	assert.NilError(t, r.Run(context.Background(), eventlog.Position{}, c.ship))

	assert.DeepEqual(t, c.ids(), []string{
		"20240101000000.lgp_1_0",
		"20240101000000.lgp_2_0",
		"20240101000000.lgp_3_0",
		"20240102000000.lgp_1_0",
		"20240102000000.lgp_2_0",
	})
	// Batch size 2 over five records: two full batches plus the tail.
	assert.Equal(t, len(c.batches), 3)
}

func TestRunResumesAfterPosition(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, "20240101.jsonl", false,
		journalRec("20240101000000.lgp", 1, 5),
		journalRec("20240101000000.lgp", 2, 5),
		journalRec("20240101000000.lgp", 3, 6),
	)
	writeJournal(t, dir, "20240102.jsonl", false,
		journalRec("20240102000000.lgp", 1, 7),
	)

	c := &collector{}
	r := New(config.Reader{JournalDir: dir, BatchSize: 100})
	start := eventlog.Position{FileName: "20240101000000.lgp", EndPosition: 2}
	assert.NilError(t, r.Run(context.Background(), start, c.ship))

	assert.DeepEqual(t, c.ids(), []string{
		"20240101000000.lgp_3_0",
		"20240102000000.lgp_1_0",
	})
}

func TestRunSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, "20240101.jsonl", false,
		journalRec("20240101000000.lgp", 1, 5),
	)
	f, err := os.OpenFile(filepath.Join(dir, "20240101.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	assert.NilError(t, err)
	_, err = f.WriteString("{not json}\n")
	assert.NilError(t, err)
	assert.NilError(t, f.Close())

	c := &collector{}
	r := New(config.Reader{JournalDir: dir, BatchSize: 10})
	assert.NilError(t, r.Run(context.Background(), eventlog.Position{}, c.ship))

	assert.DeepEqual(t, c.ids(), []string{"20240101000000.lgp_1_0"})
}

func TestRunEmptyDirectory(t *testing.T) {
	c := &collector{}
	r := New(config.Reader{JournalDir: t.TempDir(), BatchSize: 10})
	assert.NilError(t, r.Run(context.Background(), eventlog.Position{}, c.ship))
	assert.Equal(t, len(c.batches), 0)
}

func TestRunStopsOnCancellation(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, "20240101.jsonl", false,
		journalRec("20240101000000.lgp", 1, 5),
		journalRec("20240101000000.lgp", 2, 5),
	)

	ctx, cancel := context.WithCancel(context.Background())
	r := New(config.Reader{JournalDir: dir, BatchSize: 1})

	err := r.Run(ctx, eventlog.Position{}, func(context.Context, []eventlog.Record) error {
		cancel()
		return nil
	})
	assert.Assert(t, errors.Is(err, context.Canceled))
}
