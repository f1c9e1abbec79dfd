package elastic

import (
	"context"
	"fmt"
	"time"

	"el-shipper/internal/eventlog"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// ReadResumePosition looks up the most recently stored record across all
// logical indices of this shipper and returns its resume markers. A zero
// Position means the backend holds nothing yet and reading should start from
// the beginning of the first journal file.
//
// Query failures trigger a full failover reconnect and the query is retried;
// the loop is unbounded and ends only on success or cancellation. When
// failover re-selects the node that just failed (single-node pool, or the
// wrap-around found nothing healthier) the retry waits for the configured
// retry timeout first, so an unreachable backend is not hammered in a tight
// loop.
func (s *Store[T]) ReadResumePosition(ctx context.Context) (eventlog.Position, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return eventlog.Position{}, err
	}

	for {
		pos, err := s.searchLastPosition(ctx)
		if err == nil {
			return pos, nil
		}
		if ctx.Err() != nil {
			return eventlog.Position{}, ctx.Err()
		}

		logrus.Warnf("Resume position query failed | index=%s node=%s err=%v", s.index, s.activeHost(), err)

		failed := s.active
		if err := s.connect(ctx); err != nil {
			return eventlog.Position{}, err
		}
		if s.active == failed {
			select {
			case <-ctx.Done():
				return eventlog.Position{}, ctx.Err()
			case <-time.After(s.retryTimeout):
			}
		}
	}
}

func (s *Store[T]) searchLastPosition(ctx context.Context) (eventlog.Position, error) {
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index+"-*"),
		s.client.Search.WithSize(1),
		s.client.Search.WithSort("dateTime:desc"),
	)
	if err != nil {
		return eventlog.Position{}, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return eventlog.Position{}, fmt.Errorf("search returned %s", res.Status())
	}

	var sr struct {
		Hits struct {
			Hits []struct {
				Source struct {
					FileName       string `json:"fileName"`
					EndPosition    int64  `json:"endPosition"`
					LgfEndPosition int64  `json:"lgfEndPosition"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return eventlog.Position{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	if len(sr.Hits.Hits) == 0 {
		return eventlog.Position{}, nil
	}

	src := sr.Hits.Hits[0].Source
	return eventlog.Position{
		FileName:       src.FileName,
		EndPosition:    src.EndPosition,
		LgfEndPosition: src.LgfEndPosition,
	}, nil
}
