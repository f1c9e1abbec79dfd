package elastic

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// Write persists a batch of records, split into one bulk request per time
// bucket. Buckets are written in ascending key order. A transport failure
// reconnects through the pool and retries the same bucket (unbounded, until
// cancelled); per-document rejections are terminal and surface as a
// *PartialWriteError without any retry.
func (s *Store[T]) Write(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}

	for _, b := range partition(records, s.separation) {
		target := s.index + "-" + b.Key

		for {
			err := s.writeBulk(ctx, target, b.Records)
			if err == nil {
				logrus.Infof("Stored records | index=%s count=%d", target, len(b.Records))
				break
			}

			var partial *PartialWriteError
			if errors.As(err, &partial) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			logrus.Warnf("Bulk write failed, reconnecting | index=%s node=%s err=%v", target, s.activeHost(), err)
			if err := s.connect(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// writeBulk issues one bulk request. A returned *PartialWriteError means the
// transport round-trip succeeded but individual documents were rejected; any
// other error is transport-level and therefore retryable.
func (s *Store[T]) writeBulk(ctx context.Context, target string, records []T) error {
	var buf bytes.Buffer
	for _, r := range records {
		meta, err := json.Marshal(map[string]interface{}{
			"index": map[string]interface{}{"_id": r.DocumentID()},
		})
		if err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", r.DocumentID(), err)
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(target),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk returned %s", res.Status())
	}

	var br struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}

	perr := &PartialWriteError{Index: target}
	for _, item := range br.Items {
		for _, op := range item {
			if op.Error == nil {
				continue
			}
			reason := op.Error.Type
			if op.Error.Reason != "" {
				reason = op.Error.Reason
			}
			logrus.Errorf("Document rejected | index=%s id=%s status=%d reason=%s", target, op.ID, op.Status, reason)
			perr.Items = append(perr.Items, ItemError{ID: op.ID, Status: op.Status, Reason: reason})
		}
	}
	return perr
}
