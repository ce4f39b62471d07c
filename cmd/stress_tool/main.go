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
	"course_market/internal/pkg/config"
	"course_market/pkg/utils"

	"github.com/google/uuid"
)

var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

// 下单压测：多个用户同时购买同一门课程，每个用户并发提交多次，
// 按业务码统计结果，订单号冲突与限流都会体现在这里
func main() {
	baseURL := flag.String("base", "http://localhost:8080/api/v1", "API base url")
	courseID := flag.String("course", "", "paid course id")
	gateway := flag.String("gateway", "alipay", "payment gateway")
	users := flag.Int("users", 1000, "concurrent users")
	perUser := flag.Int("per-user", 2, "orders submitted by each user")
	flag.Parse()

	if *courseID == "" {
		fmt.Println("-course is required")
		return
	}

	// 用服务端同一份 JWT 密钥签发测试用户的 token
	config.LoadConfig()

	tokens := make([]string, *users)
	for i := range tokens {
		token, _, err := utils.GenerateToken(uuid.NewString(), utils.RoleStudent)
		if err != nil {
			fmt.Printf("签发 token 失败: %v\n", err)
			return
		}
		tokens[i] = token
	}

	total := *users * *perUser
	fmt.Printf("开始压测：%d 个用户购买课程 %s，每人提交 %d 次...\n", *users, *courseID, *perUser)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = make(map[int]int)
	)

	start := time.Now()
	for _, token := range tokens {
		for j := 0; j < *perUser; j++ {
			wg.Add(1)
			go func(token string) {
				defer wg.Done()
				code := createOrder(*baseURL, token, *courseID, *gateway)
				mu.Lock()
				counts[code]++
				mu.Unlock()
			}(token)
		}
	}
	wg.Wait()

	duration := time.Since(start)
	qps := float64(total) / duration.Seconds()

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("总请求数: %d\n", total)
	fmt.Printf("QPS: %.2f\n", qps)

	codes := make([]int, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		label := "业务码"
		if code < 0 {
			label = "请求失败"
		}
		fmt.Printf("%s %d: %d\n", label, code, counts[code])
	}
	fmt.Println("--------------------------------------------------")
}

// createOrder 返回业务码，网络或解析失败返回 -1
func createOrder(baseURL, token, courseID, gateway string) int {
	body, _ := json.Marshal(map[string]string{
		"courseId":       courseID,
		"paymentGateway": gateway,
	})
	req, err := http.NewRequest(http.MethodPost, baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return -1
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return -1
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return -1
	}

	var result struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return -1
	}
	return result.Code
}
