package ringba

import (
	"github.com/shopspring/decimal"
)

// Dimension is a grouping dimension for an insights request.
type Dimension string

const (
	DimensionPublisher Dimension = "publisherName"
	DimensionCampaign  Dimension = "campaignName"
	DimensionTarget    Dimension = "targetName"
)

// displayNames maps API column names to the labels used in the sheet.
var displayNames = map[Dimension]string{
	DimensionPublisher: "Publisher",
	DimensionCampaign:  "Campaign",
	DimensionTarget:    "Target",
}

// DisplayName returns the human-readable label for a dimension.
func (d Dimension) DisplayName() string {
	if name, ok := displayNames[d]; ok {
		return name
	}
	return string(d)
}

// PayoutRecord is one normalized aggregation row from the insights API.
// Date is the reporting date of the fetched bucket (all records from one
// fetch share it); Target is empty unless the target dimension was requested.
type PayoutRecord struct {
	Date           string
	Publisher      string
	Campaign       string
	Target         string
	Payout         decimal.Decimal
	CompletedCalls int
	PaidCalls      int
}

// Key returns the grouping key of the record. Records sharing a key within
// one result set are summed, never last-wins.
func (r PayoutRecord) Key() string {
	return r.Publisher + "\x00" + r.Campaign + "\x00" + r.Target
}

// Config holds Ringba API client configuration
type Config struct {
	APIToken       string
	AccountID      string
	BaseURL        string
	ReportTimezone string
}

// insightsRequest is the request body for POST /v2/{account}/insights.
type insightsRequest struct {
	ReportStart        string          `json:"reportStart"`
	ReportEnd          string          `json:"reportEnd"`
	GroupByColumns     []groupByColumn `json:"groupByColumns"`
	ValueColumns       []valueColumn   `json:"valueColumns"`
	OrderByColumns     []orderByColumn `json:"orderByColumns"`
	FormatTimespans    bool            `json:"formatTimespans"`
	FormatPercentages  bool            `json:"formatPercentages"`
	GenerateRollups    bool            `json:"generateRollups"`
	MaxResultsPerGroup int             `json:"maxResultsPerGroup"`
	Filters            []interface{}   `json:"filters"`
	FormatTimeZone     string          `json:"formatTimeZone"`
}

type groupByColumn struct {
	Column      string `json:"column"`
	DisplayName string `json:"displayName"`
}

type valueColumn struct {
	Column            string  `json:"column"`
	AggregateFunction *string `json:"aggregateFunction"`
}

type orderByColumn struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}
