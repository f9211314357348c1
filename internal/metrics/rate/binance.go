package rate

import (
	"context"

	futures "github.com/adshao/go-binance/v2/futures"
)

// FetchRequestWeightLimit queries Binance exchangeInfo endpoint to retrieve the
// REQUEST_WEIGHT per minute limit. It returns 0 if the limit cannot be
// determined.
func FetchRequestWeightLimit(ctx context.Context, client *futures.Client) (int64, error) {
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, err
	}
	return requestWeightLimit(info.RateLimits), nil
}

func requestWeightLimit(limits []futures.RateLimit) int64 {
	for _, rl := range limits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			return rl.Limit
		}
	}
	return 0
}
