// 包 feeds 从外部订阅导入文章：
// - Discover：按常见路径与 HTML <link rel="alternate"> 发现订阅地址
// - Parse：使用 gofeed 解析 RSS/Atom/JSON Feed 并归一化为条目
// - Importer：把条目转换为文章记录，经 generate 写成文章文档
package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bamaco-content/internal/fetch"
	"bamaco-content/internal/logx"
)

// ErrNoFeed 表示站点上没有发现订阅。
var ErrNoFeed = errors.New("no feed discovered")

var candidatePaths = []string{
	"index.xml", "atom.xml", "rss.xml", "feed.xml", "feed",
	"/feed", "/index.xml", "/atom.xml", "/rss.xml", "/rss", "/?feed=rss2",
	"/index.json", "/feed.json",
}

// Discover 依次探测候选地址，均失败时解析站点首页的 <link> 声明。
func Discover(ctx context.Context, cl *fetch.Client, site string) (string, error) {
	seen := map[string]bool{}
	for _, p := range candidatePaths {
		u := joinURL(site, p)
		if !strings.HasPrefix(p, "/") {
			u = joinURLDir(site, p)
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		logx.Debugf("探测候选订阅：%s", u)
		if probe(ctx, cl, u) {
			return u, nil
		}
	}

	body, err := cl.Get(ctx, site)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", site, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", site, err)
	}
	var found string
	doc.Find(`link[rel~="alternate"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.ToLower(s.AttrOr("type", ""))
		href := s.AttrOr("href", "")
		if href != "" && (strings.Contains(t, "rss") || strings.Contains(t, "atom") || strings.Contains(t, "json")) {
			found = joinURL(site, href)
			return false
		}
		return true
	})
	if found != "" && probe(ctx, cl, found) {
		logx.Debugf("从 <link> 发现订阅：%s", found)
		return found, nil
	}
	return "", fmt.Errorf("%w for %s", ErrNoFeed, site)
}

// probe 根据 Content-Type 与内容开头判断 URL 是否为订阅。
func probe(ctx context.Context, cl *fetch.Client, feedURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	resp, err := cl.R(ctx).Get(feedURL)
	if err != nil || fetch.Check(resp) != nil {
		return false
	}
	head := resp.Body()
	if len(head) > 2048 {
		head = head[:2048]
	}
	lb := strings.ToLower(string(head))
	ct := strings.ToLower(resp.Header().Get("Content-Type"))
	switch {
	case strings.Contains(ct, "json"):
		return strings.Contains(lb, "jsonfeed.org/version")
	case strings.Contains(ct, "rss"), strings.Contains(ct, "atom"), strings.Contains(ct, "xml"):
		return true
	}
	return strings.Contains(lb, "<rss") || strings.Contains(lb, "<feed") || strings.Contains(lb, "<rdf") ||
		strings.Contains(lb, "jsonfeed.org/version")
}

// joinURL 将 ref 按站点根解析为绝对 URL。
func joinURL(base, ref string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return base + ref
	}
	return u.ResolveReference(ru).String()
}

// joinURLDir 将 base 视为目录拼接 ref（https://host/blog + index.xml → /blog/index.xml）。
func joinURLDir(base, ref string) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimSuffix(base, "/") + "/" + ref
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return joinURL(u.String(), ref)
}
