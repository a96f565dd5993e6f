package records

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/org/creditledger/pkg/models"
)

// Ledger key layout.
const (
	IndexKey        = "record_keys"
	recordKeyPrefix = "record_"
)

const (
	payloadPrefix = "FHE-"
	blobSchema    = 1
	idSuffixLen   = 7
	base36        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// RecordKey is the ledger key of the blob for id.
func RecordKey(id string) string {
	return recordKeyPrefix + id
}

// PayloadSource is the plaintext a record payload encodes.
type PayloadSource struct {
	Category      models.Category `json:"category"`
	Description   string          `json:"description"`
	SensitiveInfo string          `json:"sensitiveInfo"`
}

// EncodePayload produces "FHE-" + base64(JSON(src)).
func EncodePayload(src PayloadSource) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(src); err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	raw := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return payloadPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePayload reverses EncodePayload.
func DecodePayload(payload string) (PayloadSource, error) {
	var src PayloadSource
	body, ok := strings.CutPrefix(payload, payloadPrefix)
	if !ok {
		return src, fmt.Errorf("%w: payload lacks %q prefix", ErrDecodeFault, payloadPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return src, fmt.Errorf("%w: payload base64: %v", ErrDecodeFault, err)
	}
	if err := json.Unmarshal(raw, &src); err != nil {
		return src, fmt.Errorf("%w: payload json: %v", ErrDecodeFault, err)
	}
	return src, nil
}

// recordBlob is the JSON stored at record_<id>. Pointers distinguish absent
// fields from zero values.
type recordBlob struct {
	Data      *string `json:"data"`
	Timestamp *int64  `json:"timestamp"`
	Owner     *string `json:"owner"`
	Category  *string `json:"category"`
	Status    string  `json:"status,omitempty"`
	Schema    int     `json:"schema,omitempty"`
}

func encodeBlob(r models.Record) ([]byte, error) {
	category := string(r.Category)
	return json.Marshal(recordBlob{
		Data:      &r.Payload,
		Timestamp: &r.CreatedAt,
		Owner:     &r.Owner,
		Category:  &category,
		Status:    string(r.Status),
	})
}

func decodeBlob(id string, raw []byte) (models.Record, error) {
	var b recordBlob
	if err := json.Unmarshal(raw, &b); err != nil {
		return models.Record{}, fmt.Errorf("%w: %v", ErrDecodeFault, err)
	}
	if b.Schema > blobSchema {
		return models.Record{}, fmt.Errorf("%w: unsupported schema %d", ErrDecodeFault, b.Schema)
	}
	switch {
	case b.Data == nil:
		return models.Record{}, fmt.Errorf("%w: missing data", ErrDecodeFault)
	case b.Timestamp == nil:
		return models.Record{}, fmt.Errorf("%w: missing timestamp", ErrDecodeFault)
	case b.Owner == nil:
		return models.Record{}, fmt.Errorf("%w: missing owner", ErrDecodeFault)
	case b.Category == nil:
		return models.Record{}, fmt.Errorf("%w: missing category", ErrDecodeFault)
	}
	status := models.Status(b.Status)
	if status == "" {
		status = models.StatusPending
	}
	if !status.Valid() {
		return models.Record{}, fmt.Errorf("%w: unknown status %q", ErrDecodeFault, b.Status)
	}
	return models.Record{
		ID:        id,
		Payload:   *b.Data,
		CreatedAt: *b.Timestamp,
		Owner:     *b.Owner,
		Category:  models.Category(*b.Category),
		Status:    status,
	}, nil
}

// withStatus rewrites only the status field of a stored blob, leaving any
// other fields as they were.
func withStatus(raw []byte, status models.Status) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFault, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: empty record", ErrDecodeFault)
	}
	s, _ := json.Marshal(string(status))
	fields["status"] = s
	return json.Marshal(fields)
}

func encodeIndex(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// decodeIndex parses the key index. Empty input is an empty index.
func decodeIndex(raw []byte) ([]string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: index: %v", ErrDecodeFault, err)
	}
	return ids, nil
}

// NewID returns "<unix millis>-<7 base36 chars>".
func NewID(now time.Time) string {
	suffix := make([]byte, idSuffixLen)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(suffix)
}
