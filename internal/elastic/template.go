package elastic

import (
	"bytes"
	"context"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// templateName is the fixed name of the index template every shipper
// instance ensures on the cluster.
const templateName = "el-logs"

// templateBody covers every logical index produced by any shipper instance
// (the "*-el-*" pattern) with the record field mapping and best-effort
// compression.
var templateBody = map[string]interface{}{
	"index_patterns": []string{"*-el-*"},
	"template": map[string]interface{}{
		"settings": map[string]interface{}{
			"index": map[string]interface{}{
				"codec": "best_compression",
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"dateTime":            map[string]string{"type": "date"},
				"severity":            map[string]string{"type": "keyword"},
				"server":              map[string]string{"type": "keyword"},
				"fileName":            map[string]string{"type": "keyword"},
				"metadata":            map[string]string{"type": "keyword"},
				"data":                map[string]string{"type": "text"},
				"transactionDateTime": map[string]string{"type": "date"},
				"transactionStatus":   map[string]string{"type": "keyword"},
				"session":             map[string]string{"type": "long"},
				"mainPort":            map[string]string{"type": "integer"},
				"transactionNumber":   map[string]string{"type": "long"},
				"addPort":             map[string]string{"type": "integer"},
				"computer":            map[string]string{"type": "keyword"},
				"application":         map[string]string{"type": "keyword"},
				"endPosition":         map[string]string{"type": "long"},
				"userUuid":            map[string]string{"type": "keyword"},
				"comment":             map[string]string{"type": "text"},
				"connection":          map[string]string{"type": "long"},
				"event":               map[string]string{"type": "keyword"},
				"metadataUuid":        map[string]string{"type": "keyword"},
				"dataPresentation":    map[string]string{"type": "text"},
				"user":                map[string]string{"type": "keyword"},
			},
		},
	},
}

// ensureTemplate creates the index template if it does not exist yet. Any
// outcome other than "present" or "absent" leaves the backend's schema state
// unknown, which aborts the connection attempt with a SchemaError.
func (s *Store[T]) ensureTemplate(ctx context.Context) error {
	res, err := s.client.Indices.GetIndexTemplate(
		s.client.Indices.GetIndexTemplate.WithName(templateName),
		s.client.Indices.GetIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &SchemaError{Op: "check", Err: err}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		// fall through to creation
	case res.IsError():
		return &SchemaError{Op: "check", Status: res.Status()}
	default:
		return nil
	}

	body, err := json.Marshal(templateBody)
	if err != nil {
		return &SchemaError{Op: "create", Err: err}
	}

	put, err := s.client.Indices.PutIndexTemplate(
		templateName,
		bytes.NewReader(body),
		s.client.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &SchemaError{Op: "create", Err: err}
	}
	defer put.Body.Close()

	if put.IsError() {
		return &SchemaError{Op: "create", Status: put.Status()}
	}

	logrus.Infof("Created index template | name=%s node=%s", templateName, s.activeHost())
	return nil
}
