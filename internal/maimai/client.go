// 包 maimai 是 maimai DX 玩家数据 API 的客户端：
// - FetchOne/FetchBatch/Health 三个接口，批量最多 10 个好友码
// - 会话过期（"Session expired"）与非 200 响应按配置退避重试
// - 单个好友码的失败以错误返回，调用方保留原有字段不变
package maimai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"bamaco-content/internal/fetch"
)

// DefaultBaseURL 为公开的数据服务地址。
const DefaultBaseURL = "https://maimai-data-get.onrender.com"

// MaxBatch 为单次批量请求的好友码上限。
const MaxBatch = 10

var (
	ErrInvalidFriendCode = errors.New("invalid friend code")
	ErrBatchSize         = errors.New("batch must contain 1..10 friend codes")
)

// APIError 表示服务端返回 success=false。
type APIError struct {
	FriendCode string
	Message    string
}

func (e *APIError) Error() string {
	if e.FriendCode == "" {
		return "maimai api: " + e.Message
	}
	return fmt.Sprintf("maimai api %s: %s", e.FriendCode, e.Message)
}

// Player 为 API 返回的玩家数据。
type Player struct {
	FriendCode string
	IGN        string
	Rating     int
	Trophy     string
	IconURL    string
}

// Result 为批量请求中单个好友码的结果。
type Result struct {
	Player Player
	Err    error
}

// Health 为 /health 的响应。
type Health struct {
	Status string `json:"status"`
}

// Options 为客户端参数。SessionWait 为会话过期后的等待，RetryWait 为其他失败的等待。
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	Retry       int
	RetryWait   time.Duration
	SessionWait time.Duration
	Strict      bool // 仅接受 15 位好友码
	ProxyHTTP   string
	ProxyHTTPS  string
	UserAgent   string
}

// Client 为 API 客户端，可并发使用。
type Client struct {
	http   *fetch.Client
	strict bool
}

// New 创建客户端。
func New(o Options) (*Client, error) {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Timeout <= 0 {
		// 服务冷启动较慢
		o.Timeout = 60 * time.Second
	}
	if o.RetryWait <= 0 {
		o.RetryWait = 2 * time.Second
	}
	if o.SessionWait <= 0 {
		o.SessionWait = 5 * time.Second
	}
	maxWait := o.SessionWait
	if o.RetryWait > maxWait {
		maxWait = o.RetryWait
	}
	cl, err := fetch.New(fetch.Options{
		BaseURL:      strings.TrimRight(o.BaseURL, "/"),
		ProxyHTTP:    o.ProxyHTTP,
		ProxyHTTPS:   o.ProxyHTTPS,
		Timeout:      o.Timeout,
		Retry:        o.Retry,
		RetryWait:    o.RetryWait,
		RetryMaxWait: maxWait,
		UserAgent:    o.UserAgent,
		RetryIf:      []resty.RetryConditionFunc{sessionExpired},
		RetryAfter: func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			if sessionExpired(resp, nil) {
				return o.SessionWait, nil
			}
			return o.RetryWait, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new maimai client: %w", err)
	}
	return &Client{http: cl, strict: o.Strict}, nil
}

func sessionExpired(resp *resty.Response, _ error) bool {
	if resp == nil || resp.StatusCode() != 200 {
		return false
	}
	return strings.Contains(string(resp.Body()), "Session expired")
}

// ValidFriendCode 宽松校验：全数字且不少于 10 位。
func ValidFriendCode(code string) bool {
	return len(code) >= 10 && allDigits(code)
}

// CanonicalFriendCode 严格校验：恰好 15 位数字。
func CanonicalFriendCode(code string) bool {
	return len(code) == 15 && allDigits(code)
}

// CleanFriendCode 去掉好友码中的空白与连字符。
func CleanFriendCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(code))
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (c *Client) check(code string) error {
	ok := ValidFriendCode(code)
	if c.strict {
		ok = CanonicalFriendCode(code)
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidFriendCode, code)
	}
	return nil
}

// playerResponse 为单个玩家的响应体；rating 可能是数字或字符串。
type playerResponse struct {
	Success    bool    `json:"success"`
	IGN        string  `json:"ign"`
	Rating     flexInt `json:"rating"`
	Trophy     string  `json:"trophy"`
	IconURL    string  `json:"icon_url"`
	FriendCode string  `json:"friend_code"`
	Error      string  `json:"error"`
}

type batchResponse struct {
	Success bool             `json:"success"`
	Error   string           `json:"error"`
	Results []playerResponse `json:"results"`
}

type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, _ := strconv.Atoi(s[:end])
	*n = flexInt(v)
	return nil
}

func (r playerResponse) player(code string) Player {
	if r.FriendCode != "" {
		code = r.FriendCode
	}
	return Player{
		FriendCode: code,
		IGN:        r.IGN,
		Rating:     int(r.Rating),
		Trophy:     r.Trophy,
		IconURL:    r.IconURL,
	}
}

// FetchOne 获取单个玩家数据。
func (c *Client) FetchOne(ctx context.Context, code string) (Player, error) {
	if err := c.check(code); err != nil {
		return Player{}, err
	}
	resp, err := c.http.R(ctx).Get("/api/player/" + code)
	if err != nil {
		return Player{}, fmt.Errorf("fetch player %s: %w", code, err)
	}
	if err := fetch.Check(resp); err != nil {
		return Player{}, fmt.Errorf("fetch player %s: %w", code, err)
	}
	var pr playerResponse
	if err := json.Unmarshal(resp.Body(), &pr); err != nil {
		return Player{}, fmt.Errorf("decode player %s: %w", code, err)
	}
	if !pr.Success {
		return Player{}, &APIError{FriendCode: code, Message: pr.Error}
	}
	return pr.player(code), nil
}

// FetchBatch 批量获取，codes 数量须在 1..10。格式不合法的好友码不会发送，
// 直接在结果中标记为 ErrInvalidFriendCode。
func (c *Client) FetchBatch(ctx context.Context, codes []string) (map[string]Result, error) {
	if len(codes) == 0 || len(codes) > MaxBatch {
		return nil, fmt.Errorf("%w: got %d", ErrBatchSize, len(codes))
	}
	out := make(map[string]Result, len(codes))
	valid := make([]string, 0, len(codes))
	for _, code := range codes {
		if err := c.check(code); err != nil {
			out[code] = Result{Err: err}
			continue
		}
		valid = append(valid, code)
	}
	if len(valid) == 0 {
		return out, nil
	}
	resp, err := c.http.R(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string][]string{"friend_codes": valid}).
		Post("/api/batch")
	if err != nil {
		return nil, fmt.Errorf("fetch batch: %w", err)
	}
	if err := fetch.Check(resp); err != nil {
		return nil, fmt.Errorf("fetch batch: %w", err)
	}
	var br batchResponse
	if err := json.Unmarshal(resp.Body(), &br); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if !br.Success {
		return nil, &APIError{Message: br.Error}
	}
	for i, r := range br.Results {
		code := r.FriendCode
		if code == "" && i < len(valid) {
			code = valid[i]
		}
		if r.Success {
			out[code] = Result{Player: r.player(code)}
		} else {
			out[code] = Result{Err: &APIError{FriendCode: code, Message: r.Error}}
		}
	}
	for _, code := range valid {
		if _, ok := out[code]; !ok {
			out[code] = Result{Err: &APIError{FriendCode: code, Message: "missing from batch response"}}
		}
	}
	return out, nil
}

// Health 查询服务状态；非 2xx 返回错误。
func (c *Client) Health(ctx context.Context) (Health, error) {
	resp, err := c.http.R(ctx).Get("/health")
	if err != nil {
		return Health{}, fmt.Errorf("health: %w", err)
	}
	if err := fetch.Check(resp); err != nil {
		return Health{}, fmt.Errorf("health: %w", err)
	}
	var h Health
	if err := json.Unmarshal(resp.Body(), &h); err != nil {
		return Health{}, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}
