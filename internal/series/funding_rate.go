package series

import (
	"encoding/json"
	"time"

	"datasetbuilder/internal/binance"
	"datasetbuilder/models"
)

// FundingRateGenesis is the first funding event of Binance USDⓈ-M futures.
const FundingRateGenesis int64 = 1568102400000

const FundingRateName = "funding_rate"

type FundingRate struct{ base }

func NewFundingRate(outputDir string) *FundingRate {
	return &FundingRate{base{
		def: models.Definition{
			Name:    FundingRateName,
			Path:    datasetPath(outputDir, FundingRateName),
			Genesis: FundingRateGenesis,
			Window:  200 * 24 * time.Hour,
			Limit:   1000,
		},
		endpoint: "/fapi/v1/fundingRate",
		fields: []FieldSpec{
			{Column: "funding_rate", Places: 8, Rounding: RoundUp},
		},
	}}
}

func (a *FundingRate) Map(raw json.RawMessage) (models.Record, error) {
	var entry binance.RawFundingRate
	if err := a.decode(raw, &entry); err != nil {
		return models.Record{}, err
	}
	return a.record(entry.FundingTime, entry.FundingRate)
}
