package redis

import "fmt"

// TradeRateLimitContactKey 下单限流键：按联系方式。
func TradeRateLimitContactKey(contact string) string {
	return fmt.Sprintf("card_shop:rate_limit:trade:contact:%s", contact)
}

// TradeRateLimitIPKey 下单限流键：无法识别联系方式时按 IP 降级。
func TradeRateLimitIPKey(ip string) string {
	return fmt.Sprintf("card_shop:rate_limit:trade:ip:%s", ip)
}
