package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// PayloadStore is the sheet surface the webhook sink writes through.
type PayloadStore interface {
	ReadAll(ctx context.Context) ([][]string, error)
	WriteHeader(ctx context.Context, names []string) error
	AppendAfterLast(ctx context.Context, rows [][]string) error
}

// WebhookSink appends inbound webhook payloads to a passthrough sheet.
// The sheet is schemaless: the first payload's keys, sorted, define the
// header, and every later payload is flattened into that column order.
// Keys missing from a later payload render as empty cells; keys the
// header does not know are dropped.
type WebhookSink struct {
	store PayloadStore

	mu     sync.Mutex
	header []string // cached after first resolution
}

// NewWebhookSink creates a sink over the given passthrough sheet.
func NewWebhookSink(store PayloadStore) *WebhookSink {
	return &WebhookSink{store: store}
}

// Append records one payload as a sheet row.
func (s *WebhookSink) Append(ctx context.Context, payload map[string]interface{}) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty payload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.resolveHeader(ctx, payload)
	if err != nil {
		return err
	}

	row := make([]string, len(header))
	for i, key := range header {
		val, ok := payload[key]
		if !ok {
			continue
		}
		row[i] = renderCell(val)
	}
	return s.store.AppendAfterLast(ctx, [][]string{row})
}

// resolveHeader returns the sheet's header, creating it from the
// payload's sorted keys when the sheet is still empty.
func (s *WebhookSink) resolveHeader(ctx context.Context, payload map[string]interface{}) ([]string, error) {
	if s.header != nil {
		return s.header, nil
	}

	all, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read passthrough sheet: %w", err)
	}
	if len(all) > 0 && len(all[0]) > 0 {
		s.header = all[0]
		return s.header, nil
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if err := s.store.WriteHeader(ctx, keys); err != nil {
		return nil, fmt.Errorf("write passthrough header: %w", err)
	}
	s.header = keys
	return s.header, nil
}

// renderCell flattens a payload value to cell text. Nested objects and
// arrays are kept as JSON so no information is lost.
func renderCell(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
