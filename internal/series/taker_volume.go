package series

import (
	"encoding/json"
	"time"

	"datasetbuilder/internal/binance"
	"datasetbuilder/models"
)

const TakerVolumeName = "taker_buy_sell_volume"

// TakerVolume is the taker buy/sell volume history.
type TakerVolume struct{ base }

func NewTakerVolume(outputDir string) *TakerVolume {
	return &TakerVolume{base{
		def: models.Definition{
			Name:         TakerVolumeName,
			Path:         datasetPath(outputDir, TakerVolumeName),
			LookbackDays: models.DefaultLookbackDays,
			Window:       24 * time.Hour,
			Limit:        500,
			Period:       "5m",
		},
		endpoint: "/futures/data/takerlongshortRatio",
		fields: []FieldSpec{
			{Column: "buy_vol", Places: 4, Rounding: RoundUp},
			{Column: "sell_vol", Places: 4, Rounding: RoundUp},
			{Column: "buy_sell_ratio", Places: 4, Rounding: RoundUp},
		},
	}}
}

func (a *TakerVolume) Map(raw json.RawMessage) (models.Record, error) {
	var entry binance.RawTakerVolume
	if err := a.decode(raw, &entry); err != nil {
		return models.Record{}, err
	}
	return a.record(entry.Timestamp, entry.BuyVol, entry.SellVol, entry.BuySellRatio)
}
