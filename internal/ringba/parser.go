package ringba

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// The insights endpoint has shipped several response shapes over time:
// the current {"report":{"records":[...]}} envelope, a legacy
// {"groups":[...]} envelope, and a bare record array. Each shape gets its
// own normalization function, selected by a structural probe, instead of
// inline fallbacks in the merge logic.

type reportEnvelope struct {
	Report *struct {
		Records []json.RawMessage `json:"records"`
	} `json:"report"`
}

type groupsEnvelope struct {
	Groups []json.RawMessage `json:"groups"`
}

// parseInsightsResponse normalizes an insights response body into flat
// payout records, all dated bucketDate. Records lacking a publisher name
// are dropped — those are rollup/total rows.
func parseInsightsResponse(body []byte, bucketDate string) ([]PayoutRecord, error) {
	raws, err := probeRecords(body)
	if err != nil {
		return nil, err
	}

	records := make([]PayoutRecord, 0, len(raws))
	for _, raw := range raws {
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		rec, ok := normalizeRecord(fields, bucketDate)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// probeRecords detects the response shape and returns its raw record set.
func probeRecords(body []byte) ([]json.RawMessage, error) {
	var report reportEnvelope
	if err := json.Unmarshal(body, &report); err == nil && report.Report != nil {
		return report.Report.Records, nil
	}

	var groups groupsEnvelope
	if err := json.Unmarshal(body, &groups); err == nil && groups.Groups != nil {
		return groups.Groups, nil
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	return nil, fmt.Errorf("unrecognized insights response shape: %s", truncate(body, 200))
}

// normalizeRecord flattens one raw record. Returns false for rollup rows
// (no publisher key).
func normalizeRecord(fields map[string]interface{}, bucketDate string) (PayoutRecord, bool) {
	publisher := stringField(fields, "publisherName", "Publisher")
	if publisher == "" {
		return PayoutRecord{}, false
	}

	return PayoutRecord{
		Date:           bucketDate,
		Publisher:      publisher,
		Campaign:       stringField(fields, "campaignName", "Campaign"),
		Target:         stringField(fields, "targetName", "Target"),
		Payout:         decimalField(fields, "payoutAmount", "Payout"),
		CompletedCalls: intField(fields, "completedCalls", "Completed Calls"),
		PaidCalls:      intField(fields, "payoutCount", "Paid Calls"),
	}, true
}

// MergeByKey collapses records sharing a grouping key by summing their
// numeric fields, preserving first-seen order. Applied to every fetch
// result and to the cumulative hourly summation.
func MergeByKey(records []PayoutRecord) []PayoutRecord {
	merged := make([]PayoutRecord, 0, len(records))
	index := make(map[string]int, len(records))

	for _, rec := range records {
		key := rec.Key()
		if i, ok := index[key]; ok {
			merged[i].Payout = merged[i].Payout.Add(rec.Payout)
			merged[i].CompletedCalls += rec.CompletedCalls
			merged[i].PaidCalls += rec.PaidCalls
			continue
		}
		index[key] = len(merged)
		merged = append(merged, rec)
	}
	return merged
}

func stringField(fields map[string]interface{}, names ...string) string {
	for _, name := range names {
		if v, ok := fields[name]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// decimalField coerces a numeric field that may arrive as a JSON number
// or a formatted string like "$1,234.56".
func decimalField(fields map[string]interface{}, names ...string) decimal.Decimal {
	for _, name := range names {
		v, ok := fields[name]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			return decimal.NewFromFloat(val)
		case string:
			cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(val)
			if d, err := decimal.NewFromString(cleaned); err == nil {
				return d
			}
		}
	}
	return decimal.Zero
}

func intField(fields map[string]interface{}, names ...string) int {
	for _, name := range names {
		v, ok := fields[name]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			return int(val)
		case string:
			cleaned := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
			if d, err := decimal.NewFromString(cleaned); err == nil {
				return int(d.IntPart())
			}
		}
	}
	return 0
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
