package series

import (
	"encoding/json"
	"time"

	"datasetbuilder/internal/binance"
	"datasetbuilder/models"
)

const LongShortRatioName = "long_short_ratio"

// LongShortRatio is the global long/short account ratio.
type LongShortRatio struct{ base }

func NewLongShortRatio(outputDir string) *LongShortRatio {
	return &LongShortRatio{base{
		def: models.Definition{
			Name:         LongShortRatioName,
			Path:         datasetPath(outputDir, LongShortRatioName),
			LookbackDays: models.DefaultLookbackDays,
			Window:       24 * time.Hour,
			Limit:        500,
			Period:       "5m",
		},
		endpoint: "/futures/data/globalLongShortAccountRatio",
		fields: []FieldSpec{
			{Column: "long_account", Places: 4, Rounding: RoundUp},
			{Column: "short_account", Places: 4, Rounding: RoundUp},
			{Column: "long_short_ratio", Places: 4, Rounding: RoundUp},
		},
	}}
}

func (a *LongShortRatio) Map(raw json.RawMessage) (models.Record, error) {
	var entry binance.RawLongShortRatio
	if err := a.decode(raw, &entry); err != nil {
		return models.Record{}, err
	}
	return a.record(entry.Timestamp, entry.LongAccount, entry.ShortAccount, entry.LongShortRatio)
}
