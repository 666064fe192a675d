package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   []byte
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	username := flag.String("user", "admin", "admin username")
	password := flag.String("pass", "", "admin password")
	menuItem := flag.Uint("item", 1, "menu item id to order")
	openStore := flag.Bool("open", true, "open the store before the test")

	// 并发下单：orders 个顾客同时下单
	nOrders := flag.Int("orders", 200, "number of orders")
	concurrency := flag.Int("c", 50, "max concurrency")
	// 状态竞争：racers 个请求同时把同一订单从 received 推到 confirmed
	racers := flag.Int("racers", 20, "concurrent status updates against one order")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	token, err := login(client, *baseURL, *username, *password)
	if err != nil {
		panic(fmt.Sprintf("login failed: %v", err))
	}
	auth := map[string]string{"Authorization": "Bearer " + token}

	if *openStore {
		r := do(client, http.MethodPost, *baseURL+"/api/admin/store/open", nil, auth)
		fmt.Printf("open store -> %d\n", r.Status)
	}

	// 1) 并发下单：全部成功时订单号应两两不同
	fmt.Printf("start order test: orders=%d concurrency=%d item=%d\n", *nOrders, *concurrency, *menuItem)
	results := runOrders(client, *baseURL, uint(*menuItem), *nOrders, *concurrency)
	printSummary("create_order", results)
	checkUniqueNumbers(results)

	// 2) 状态竞争：恰好一个 200，其余 409 或 400
	var target uint
	for _, r := range results {
		if r.Status == http.StatusCreated {
			target = orderID(r.Body)
			break
		}
	}
	if target == 0 {
		fmt.Println("no order created, skip transition race")
		return
	}
	fmt.Printf("\nstart transition race: order=%d racers=%d\n", target, *racers)
	race := runRace(client, *baseURL, target, *racers, auth)
	printSummary("transition_race", race)
}

func login(client *http.Client, baseURL, username, password string) (string, error) {
	r := do(client, http.MethodPost, baseURL+"/api/admin/login",
		map[string]string{"username": username, "password": password}, nil)
	if r.Err != nil {
		return "", r.Err
	}
	if r.Status != http.StatusOK {
		return "", fmt.Errorf("status=%d body=%s", r.Status, string(r.Body))
	}
	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return "", err
	}
	return out.Data.Token, nil
}

func runOrders(client *http.Client, baseURL string, itemID uint, n, concurrency int) []Result {
	type Item struct {
		MenuItemID uint `json:"menu_item_id"`
		Quantity   int  `json:"quantity"`
	}
	type Req struct {
		LineUserID string `json:"line_user_id"`
		Items      []Item `json:"items"`
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			req := Req{
				LineUserID: fmt.Sprintf("Uloadtest%06d", idx),
				Items:      []Item{{MenuItemID: itemID, Quantity: 1 + idx%3}},
			}
			results[idx] = do(client, http.MethodPost, baseURL+"/api/orders", req, nil)
		}(i)
	}

	wg.Wait()
	return results
}

func runRace(client *http.Client, baseURL string, orderID uint, n int, headers map[string]string) []Result {
	url := fmt.Sprintf("%s/api/admin/orders/%d/status", baseURL, orderID)
	body := map[string]string{"status": "confirmed", "notes": "loadtest"}

	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			results[idx] = do(client, http.MethodPut, url, body, headers)
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

func do(client *http.Client, method, url string, body any, headers map[string]string) Result {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return Result{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: b}
}

func orderID(body []byte) uint {
	var out struct {
		Data struct {
			OrderID     uint   `json:"order_id"`
			OrderNumber string `json:"order_number"`
		} `json:"data"`
	}
	_ = json.Unmarshal(body, &out)
	return out.Data.OrderID
}

// checkUniqueNumbers 订单号重复即说明唯一性兜底失效。
func checkUniqueNumbers(results []Result) {
	seen := map[string]int{}
	for _, r := range results {
		if r.Status != http.StatusCreated {
			continue
		}
		var out struct {
			Data struct {
				OrderNumber string `json:"order_number"`
			} `json:"data"`
		}
		if json.Unmarshal(r.Body, &out) == nil && out.Data.OrderNumber != "" {
			seen[out.Data.OrderNumber]++
		}
	}
	dups := 0
	for _, n := range seen {
		if n > 1 {
			dups++
		}
	}
	fmt.Printf("  distinct order numbers -> %d, duplicated -> %d\n", len(seen), dups)
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
	codes := make([]int, 0, len(count))
	for code := range count {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range codes {
		fmt.Printf("  %d -> %d\n", code, count[code])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
