package binance

// RawFundingRate is one entry of /fapi/v1/fundingRate.
type RawFundingRate struct {
	Symbol      string `json:"symbol"`
	FundingTime int64  `json:"fundingTime"`
	FundingRate string `json:"fundingRate"`
	MarkPrice   string `json:"markPrice,omitempty"`
}

// RawOpenInterest is one entry of /futures/data/openInterestHist.
type RawOpenInterest struct {
	Symbol               string `json:"symbol"`
	SumOpenInterest      string `json:"sumOpenInterest"`
	SumOpenInterestValue string `json:"sumOpenInterestValue"`
	Timestamp            int64  `json:"timestamp"`
}

// RawLongShortRatio is one entry of /futures/data/globalLongShortAccountRatio.
type RawLongShortRatio struct {
	Symbol         string `json:"symbol"`
	LongShortRatio string `json:"longShortRatio"`
	LongAccount    string `json:"longAccount"`
	ShortAccount   string `json:"shortAccount"`
	Timestamp      int64  `json:"timestamp"`
}

// RawTakerVolume is one entry of /futures/data/takerlongshortRatio.
type RawTakerVolume struct {
	BuySellRatio string `json:"buySellRatio"`
	BuyVol       string `json:"buyVol"`
	SellVol      string `json:"sellVol"`
	Timestamp    int64  `json:"timestamp"`
}
