// Package search keeps an Elasticsearch copy of the user directory for
// free-text lookup. It is fed by user lifecycle events and is never read for
// authorization decisions.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-auth-service/internal/application"
	"github.com/oksasatya/go-user-auth-service/pkg/helpers"
)

const (
	defaultSize    = 10
	maxSize        = 50
	requestTimeout = 3 * time.Second
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":         {"type": "long"},
      "username":   {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "role":       {"type": "keyword"},
      "status":     {"type": "keyword"},
      "version":    {"type": "integer"},
      "updated_at": {"type": "date"}
    }
  }
}`

type UserDocument struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func documentFromEvent(ev application.UserEvent) UserDocument {
	return UserDocument{
		ID:        ev.UserID,
		Username:  ev.Username,
		Role:      ev.Role,
		Status:    ev.Status,
		Version:   ev.Version,
		UpdatedAt: ev.OccurredAt,
	}
}

type UserIndex struct {
	ES     *elasticsearch.Client
	Index  string
	Logger logrus.FieldLogger
}

func NewUserIndex(es *elasticsearch.Client, index string, logger logrus.FieldLogger) *UserIndex {
	return &UserIndex{ES: es, Index: index, Logger: logger}
}

var _ application.UserSearcher = (*UserIndex)(nil)

// EnsureIndex creates the index with its mapping when it is missing.
func (x *UserIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := x.ES.Indices.Exists([]string{x.Index}, x.ES.Indices.Exists.WithContext(c))
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	res, err = x.ES.Indices.Create(x.Index,
		x.ES.Indices.Create.WithContext(c),
		x.ES.Indices.Create.WithBody(strings.NewReader(indexMapping)))
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && !strings.Contains(readBody(res), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s: %s", x.Index, res.Status())
	}
	return nil
}

// IndexUser writes the document with external versioning so a replayed or
// reordered event never overwrites a newer one.
func (x *UserIndex) IndexUser(ctx context.Context, doc UserDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	version := doc.Version
	req := esapi.IndexRequest{
		Index:       x.Index,
		DocumentID:  strconv.FormatInt(doc.ID, 10),
		Body:        bytes.NewReader(b),
		Version:     &version,
		VersionType: "external_gte",
		Refresh:     "false",
	}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.ES)
	if err != nil {
		helpers.LogError(x.Logger, "es index failed", err, logrus.Fields{"user_id": doc.ID})
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode == http.StatusConflict {
		x.logger().WithField("user_id", doc.ID).Debug("es index skipped, newer version stored")
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("es index user %d: %s", doc.ID, res.Status())
	}
	return nil
}

// DeleteUser removes the document. A missing document is not an error.
func (x *UserIndex) DeleteUser(ctx context.Context, id int64) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := x.ES.Delete(x.Index, strconv.FormatInt(id, 10), x.ES.Delete.WithContext(c))
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("es delete user %d: %s", id, res.Status())
	}
	return nil
}

// Apply mirrors one lifecycle event into the index.
func (x *UserIndex) Apply(ctx context.Context, ev application.UserEvent) error {
	switch ev.Type {
	case application.UserCreated, application.UserUpdated:
		return x.IndexUser(ctx, documentFromEvent(ev))
	case application.UserDeleted:
		return x.DeleteUser(ctx, ev.UserID)
	}
	return fmt.Errorf("unknown user event type %q", ev.Type)
}

// SearchUsers performs a multi_match query on username.
func (x *UserIndex) SearchUsers(ctx context.Context, q string, size int) ([]application.UserDTO, error) {
	if size <= 0 || size > maxSize {
		size = defaultSize
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"username^2", "role", "status"},
				"fuzziness": "AUTO",
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.ES.Search(
		x.ES.Search.WithContext(c),
		x.ES.Search.WithIndex(x.Index),
		x.ES.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source UserDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]application.UserDTO, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		d := h.Source
		out = append(out, application.UserDTO{ID: d.ID, Username: d.Username, Role: d.Role, Status: d.Status})
	}
	return out, nil
}

func (x *UserIndex) logger() logrus.FieldLogger {
	if x.Logger == nil {
		return helpers.NewNopLogger()
	}
	return x.Logger
}

func readBody(res *esapi.Response) string {
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(res.Body)
	return buf.String()
}
