package series

import (
	"encoding/json"
	"time"

	"datasetbuilder/internal/binance"
	"datasetbuilder/models"
)

const OpenInterestName = "open_interest"

// OpenInterest is the 5 minute open interest history.
type OpenInterest struct{ base }

func NewOpenInterest(outputDir string) *OpenInterest {
	return &OpenInterest{base{
		def: models.Definition{
			Name:         OpenInterestName,
			Path:         datasetPath(outputDir, OpenInterestName),
			LookbackDays: models.DefaultLookbackDays,
			Window:       24 * time.Hour,
			Limit:        500,
			Period:       "5m",
		},
		endpoint: "/futures/data/openInterestHist",
		fields: []FieldSpec{
			{Column: "sum_open_interest", Places: 8, Rounding: RoundUp},
			{Column: "sum_open_interest_value", Places: 8, Rounding: RoundUp},
		},
	}}
}

func (a *OpenInterest) Map(raw json.RawMessage) (models.Record, error) {
	var entry binance.RawOpenInterest
	if err := a.decode(raw, &entry); err != nil {
		return models.Record{}, err
	}
	return a.record(entry.Timestamp, entry.SumOpenInterest, entry.SumOpenInterestValue)
}
