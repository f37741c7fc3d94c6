package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

// TradeReq 与 POST /api/order/trade 的 JSON 表单一致。
type TradeReq struct {
	Contact     string `json:"contact"`
	Num         int    `json:"num"`
	PayID       uint   `json:"pay_id"`
	CommodityID uint   `json:"commodity_id"`
	Voucher     string `json:"voucher,omitempty"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	commodityID := flag.Uint("commodity", 1, "commodity id (price 0 for the free-claim test)")
	payID := flag.Uint("pay", 1, "enabled pay id")

	// 超卖测试参数：200 个联系方式并发领取免费卡密
	nUsers := flag.Int("users", 200, "distinct contacts")
	concurrency := flag.Int("c", 50, "max concurrency")
	sameContact := flag.Int("same", 50, "requests from one contact for the rate limit test, 0 to skip")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	// 1) 不超卖测试：不同联系方式并发，成功数不应超过库存
	fmt.Printf("start oversell test: commodity=%d users=%d concurrency=%d\n", *commodityID, *nUsers, *concurrency)
	results := run(client, *baseURL, *nUsers, *concurrency, func(idx int) TradeReq {
		return TradeReq{
			Contact:     fmt.Sprintf("load%06d@example.com", idx),
			Num:         1,
			PayID:       *payID,
			CommodityID: *commodityID,
		}
	})
	printSummary("oversell", results)
	checkSecrets(client, *baseURL, results)

	// 2) 限流测试：同一联系方式重复下单（超过 trade.rate_limit 后应出现 429）
	if *sameContact > 0 {
		fmt.Printf("\nstart rate limit test: same contact, %d requests\n", *sameContact)
		results2 := run(client, *baseURL, *sameContact, *sameContact, func(int) TradeReq {
			return TradeReq{
				Contact:     "same-contact@example.com",
				Num:         1,
				PayID:       *payID,
				CommodityID: *commodityID,
			}
		})
		printSummary("rate_limit", results2)
	}
}

func run(client *http.Client, baseURL string, total, concurrency int, build func(idx int) TradeReq) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = tradeOnce(client, baseURL, build(idx))
		}(i)
	}

	wg.Wait()
	return results
}

func tradeOnce(client *http.Client, baseURL string, req TradeReq) Result {
	b, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest(http.MethodPost, baseURL+"/api/order/trade", bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(body)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 404, 409, 429, 500, 503} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// checkSecrets 逐个查询成功订单的卡密，校验没有一张卡被发给两个订单。
func checkSecrets(client *http.Client, baseURL string, results []Result) {
	owners := map[string]int{}
	settled := 0
	for _, r := range results {
		if r.Err != nil || r.Status != http.StatusOK {
			continue
		}
		var trade struct {
			Data struct {
				TradeNo string `json:"tradeNo"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(r.Body), &trade); err != nil || trade.Data.TradeNo == "" {
			continue
		}
		secret, err := querySecret(client, baseURL, trade.Data.TradeNo)
		if err != nil {
			fmt.Println("  query err:", err)
			continue
		}
		settled++
		owners[secret]++
	}
	dup := 0
	for _, n := range owners {
		if n > 1 {
			dup++
		}
	}
	fmt.Printf("  settled orders -> %d, secrets delivered twice -> %d\n", settled, dup)
}

func querySecret(client *http.Client, baseURL, tradeNo string) (string, error) {
	resp, err := client.Get(baseURL + "/api/order/query?tradeNo=" + url.QueryEscape(tradeNo))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Data struct {
			Secret string `json:"secret"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return "", err
	}
	return out.Data.Secret, nil
}
