package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"bamaco-content/internal/extract"
	"bamaco-content/internal/fetch"
	"bamaco-content/internal/generate"
	"bamaco-content/internal/logx"
	"bamaco-content/internal/model"
)

// Item 为归一化后的订阅条目。
type Item struct {
	Title      string
	Link       string
	Author     string
	Content    string
	Summary    string
	Categories []string
	Image      string
	Published  time.Time
}

// Parse 抓取并解析订阅，最多返回 max 条（0 表示不限制）。
func Parse(ctx context.Context, cl *fetch.Client, feedURL string, max int) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 25*time.Second)
	defer cancel()
	body, err := cl.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := Item{
			Title:      strings.TrimSpace(it.Title),
			Link:       strings.TrimSpace(it.Link),
			Author:     authorName(it),
			Content:    strings.TrimSpace(it.Content),
			Summary:    strings.TrimSpace(it.Description),
			Categories: it.Categories,
			Published:  pickTime(it.PublishedParsed, it.UpdatedParsed),
		}
		if it.Image != nil {
			item.Image = it.Image.URL
		}
		items = append(items, item)
		if max > 0 && len(items) >= max {
			break
		}
	}
	return items, nil
}

func pickTime(a, b *time.Time) time.Time {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return time.Time{}
}

func authorName(it *gofeed.Item) string {
	if it.Author != nil {
		if it.Author.Name != "" {
			return it.Author.Name
		}
		return it.Author.Email
	}
	for _, a := range it.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// Importer 把订阅条目写成文章文档。
type Importer struct {
	Writer *generate.Writer
	// Dir 为文章目录，Template 为文章模板内容（为空时生成兜底文档）
	Dir      string
	Template string
	// Author/Category 为条目缺失作者或分类时的默认值
	Author    string
	Category  string
	Overwrite bool
}

// ImportResult 为一次导入的结果。
type ImportResult struct {
	Written []string
	Exists  []string
	Skipped []model.Skip
}

// Import 将 items 逐条写入 Dir。已存在的文档默认保留，Overwrite 为真时在原文档上替换对象。
func (im *Importer) Import(ctx context.Context, items []Item) (ImportResult, error) {
	var res ImportResult
	w := im.Writer
	if w == nil {
		w = generate.NewWriter()
	}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if it.Title == "" {
			res.Skipped = append(res.Skipped, model.Skip{Kind: model.KindArticle, Path: it.Link, Reason: "missing title"})
			continue
		}
		path := filepath.Join(im.Dir, Filename(it)+".html")
		if !im.Overwrite {
			if _, err := os.Stat(path); err == nil {
				res.Exists = append(res.Exists, path)
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return res, fmt.Errorf("stat %s: %w", path, err)
			}
		}
		a := im.Article(it)
		a.ID = extract.IDFromFilename(path)
		if _, err := w.Save(path, model.KindArticle, generate.ArticleObject(a), im.Template); err != nil {
			logx.Warnf("写入文章失败：%s 错误=%v", path, err)
			res.Skipped = append(res.Skipped, model.Skip{Kind: model.KindArticle, Path: path, Reason: err.Error()})
			continue
		}
		logx.Infof("导入文章：%s", path)
		res.Written = append(res.Written, path)
	}
	return res, nil
}

// Article 将条目转换为文章记录。
func (im *Importer) Article(it Item) model.Article {
	content := it.Content
	if content == "" {
		content = it.Summary
	}
	author := it.Author
	if author == "" {
		author = im.Author
	}
	category := im.Category
	if len(it.Categories) > 0 {
		category = it.Categories[0]
	}
	a := model.Article{
		Title:         it.Title,
		Author:        author,
		AuthorID:      extract.NormalizeKey(author),
		Category:      category,
		Content:       content,
		Tags:          it.Categories,
		ReadingTime:   generate.ReadingTime(content),
		FeaturedImage: it.Image,
	}
	if !it.Published.IsZero() {
		a.Date = it.Published.Format("January 2, 2006")
	}
	a.Excerpt = extract.Excerpt(content, it.Summary)
	return a
}

// Filename 由标题生成文件名主干；标题不含可用字符时由链接派生稳定名字。
func Filename(it Item) string {
	if name := generate.SafeName(it.Title); name != "" {
		return name
	}
	key := it.Link
	if key == "" {
		key = it.Title
	}
	return "article_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()[:8]
}
