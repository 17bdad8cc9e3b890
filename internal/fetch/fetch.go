// 包 fetch 封装 HTTP 客户端（代理/超时/重试），供统计 API 与订阅导入使用。
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent 可通过环境变量 BAMACO_UA 覆盖。
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// Client 为带重试的 HTTP 客户端。
type Client struct {
	r *resty.Client
}

// Options 为客户端构造参数。
type Options struct {
	BaseURL    string
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
	// RetryWait/RetryMaxWait 为退避上下限，默认 300ms/10s
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	UserAgent    string
	// RetryIf 追加的重试条件；网络错误、429 与 5xx 总会重试
	RetryIf []resty.RetryConditionFunc
	// RetryAfter 自定义单次等待，返回 0 时使用默认退避
	RetryAfter resty.RetryAfterFunc
}

// StatusError 表示非 2xx 响应。
type StatusError struct {
	Method string
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http status: %s", e.Method, e.URL, e.Status)
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	var proxyHTTP, proxyHTTPS *url.URL
	var err error
	if opts.ProxyHTTP != "" {
		if proxyHTTP, err = url.Parse(opts.ProxyHTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy %s: %w", opts.ProxyHTTP, err)
		}
	}
	if opts.ProxyHTTPS != "" {
		if proxyHTTPS, err = url.Parse(opts.ProxyHTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy %s: %w", opts.ProxyHTTPS, err)
		}
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && proxyHTTPS != nil {
				return proxyHTTPS, nil
			}
			if req.URL.Scheme == "http" && proxyHTTP != nil {
				return proxyHTTP, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 300 * time.Millisecond
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 10 * time.Second
	}
	ua := opts.UserAgent
	if v := os.Getenv("BAMACO_UA"); v != "" {
		ua = v
	}
	if ua == "" {
		ua = DefaultUserAgent
	}

	r := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", ua).
		SetRetryCount(opts.Retry).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		AddRetryCondition(retryable)
	for _, cond := range opts.RetryIf {
		r.AddRetryCondition(cond)
	}
	if opts.RetryAfter != nil {
		r.SetRetryAfter(opts.RetryAfter)
	}
	if opts.BaseURL != "" {
		r.SetBaseURL(opts.BaseURL)
	}
	return &Client{r: r}, nil
}

// retryable 网络错误、429 与 5xx 需要重试。
func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// R 返回绑定 ctx 的请求。
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.r.R().SetContext(ctx)
}

// Get 请求 url 并返回响应体；非 2xx 返回 *StatusError。
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.R(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if err := Check(resp); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Check 将非 2xx 响应转换为 *StatusError。
func Check(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return &StatusError{
		Method: resp.Request.Method,
		URL:    resp.Request.URL,
		Code:   resp.StatusCode(),
		Status: resp.Status(),
	}
}
