// 包 aggregate 负责主流程编排：
// - 并发扫描各类文档目录并提取记录（结果保持文件名顺序）
// - 过滤无效记录，排序玩家与文章
// - 调用 link 推导公会成员与文章作者，汇总为 data.json 结构
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bamaco-content/internal/config"
	"bamaco-content/internal/export"
	"bamaco-content/internal/extract"
	"bamaco-content/internal/link"
	"bamaco-content/internal/logx"
	"bamaco-content/internal/maimai"
	"bamaco-content/internal/model"
)

// Doc 为单个文档的提取结果。
type Doc[T any] struct {
	Path   string
	Record T
	Err    error
}

// Scan 扫描 dir 下的 .html 文件（跳过模板文件），以最多 workers 个并发提取。
// 目录不存在时返回空结果；单个文档失败只记录在 Doc.Err 中。
func Scan[T any](ctx context.Context, dir, template string, workers int, fn func(src, path string) (T, error)) ([]Doc[T], error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logx.Debugf("目录不存在，跳过：%s", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".html") {
			continue
		}
		if template != "" && strings.EqualFold(name, template) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}

	docs := make([]Doc[T], len(paths))
	sem := make(chan struct{}, max(1, workers))
	var wg sync.WaitGroup
	for i, p := range paths {
		if ctx.Err() != nil {
			docs[i] = Doc[T]{Path: p, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p string) {
			defer wg.Done()
			defer func() { <-sem }()
			docs[i] = Doc[T]{Path: p}
			b, err := os.ReadFile(p)
			if err != nil {
				docs[i].Err = fmt.Errorf("read %s: %w", p, err)
				return
			}
			docs[i].Record, docs[i].Err = fn(string(b), p)
		}(i, p)
	}
	wg.Wait()
	return docs, ctx.Err()
}

// Runner 聚合执行器，持有配置与提取器。
type Runner struct {
	cfg *config.Config
	ex  *extract.Extractor
	now func() time.Time
}

// New 创建 Runner；ex 为空时使用内置旧版页面预设。
func New(cfg *config.Config, ex *extract.Extractor) *Runner {
	if ex == nil {
		ex = &extract.Extractor{}
	}
	return &Runner{cfg: cfg, ex: ex, now: time.Now}
}

// Players 扫描玩家目录，返回有效的玩家文档。
func (r *Runner) Players(ctx context.Context, rep *model.Report) ([]Doc[model.Player], error) {
	docs, err := Scan(ctx, r.cfg.Dir(model.KindPlayer), r.cfg.Template(model.KindPlayer), r.cfg.Concurrency.Extract, r.ex.Player)
	out := keep(docs, model.KindPlayer, rep, func(p model.Player) string {
		if p.IGN == "" {
			return "missing ign"
		}
		return ""
	})
	for _, d := range out {
		code := d.Record.FriendCode
		switch {
		case code == "":
		case !maimai.ValidFriendCode(code):
			rep.Warn(model.KindPlayer, d.Path, fmt.Sprintf("invalid friend code %q", code))
		case r.cfg.Maimai.StrictCodes && !maimai.CanonicalFriendCode(code):
			rep.Warn(model.KindPlayer, d.Path, fmt.Sprintf("friend code %q is not 15 digits", code))
		}
	}
	return out, err
}

// Guilds 扫描公会目录，返回有效的公会文档。
func (r *Runner) Guilds(ctx context.Context, rep *model.Report) ([]Doc[model.Guild], error) {
	docs, err := Scan(ctx, r.cfg.Dir(model.KindGuild), r.cfg.Template(model.KindGuild), r.cfg.Concurrency.Extract, r.ex.Guild)
	return keep(docs, model.KindGuild, rep, func(g model.Guild) string {
		if g.Name == "" {
			return "missing name"
		}
		return ""
	}), err
}

// Articles 扫描文章目录，返回有效的文章文档。
func (r *Runner) Articles(ctx context.Context, rep *model.Report) ([]Doc[model.Article], error) {
	docs, err := Scan(ctx, r.cfg.Dir(model.KindArticle), r.cfg.Template(model.KindArticle), r.cfg.Concurrency.Extract, r.ex.Article)
	out := keep(docs, model.KindArticle, rep, func(a model.Article) string {
		if a.Title == "" {
			return "missing title"
		}
		return ""
	})
	for _, d := range out {
		if !d.Record.DateParsed {
			rep.Warn(model.KindArticle, d.Path, fmt.Sprintf("unparseable date %q", d.Record.Date))
		}
	}
	return out, err
}

// keep 记录失败与无效文档，返回其余文档（顺序不变）。
func keep[T any](docs []Doc[T], kind model.Kind, rep *model.Report, invalid func(T) string) []Doc[T] {
	rep.Scanned[kind] += len(docs)
	out := make([]Doc[T], 0, len(docs))
	for _, d := range docs {
		if d.Err != nil {
			logx.Warnf("跳过文档：%s 错误=%v", d.Path, d.Err)
			rep.Skip(kind, d.Path, d.Err.Error())
			continue
		}
		if reason := invalid(d.Record); reason != "" {
			logx.Debugf("排除无效记录：%s 原因=%s", d.Path, reason)
			rep.Exclude(kind, d.Path, reason)
			continue
		}
		out = append(out, d)
	}
	return out
}

// Build 执行一轮完整聚合，返回导出结构与运行报告。
func (r *Runner) Build(ctx context.Context) (model.Export, *model.Report, error) {
	rep := model.NewReport(uuid.NewString())
	log := logx.With("run", rep.RunID)
	now := r.now()

	pdocs, err := r.Players(ctx, rep)
	if err != nil {
		return model.Export{}, rep, err
	}
	gdocs, err := r.Guilds(ctx, rep)
	if err != nil {
		return model.Export{}, rep, err
	}
	adocs, err := r.Articles(ctx, rep)
	if err != nil {
		return model.Export{}, rep, err
	}

	players := records(pdocs)
	sort.SliceStable(players, func(i, j int) bool { return players[i].Rating > players[j].Rating })
	guilds := records(gdocs)
	articles := records(adocs)
	SortArticles(articles, now, r.cfg.Articles.UnparsedDates == "oldest")
	duplicates(rep, model.KindPlayer, pdocs, func(p model.Player) string { return p.ID })
	duplicates(rep, model.KindGuild, gdocs, func(g model.Guild) string { return g.ID })
	duplicates(rep, model.KindArticle, adocs, func(a model.Article) string { return a.ID })

	res := link.Link(players, guilds, articles)
	rep.Conflicts = res.Conflicts
	rep.Unlinked = res.Unlinked
	for _, id := range res.Orphans {
		rep.Warn(model.KindPlayer, id, "guildId does not match any guild")
	}
	for _, c := range res.Conflicts {
		log.Warn("作者键冲突，相关文章不归属任何玩家", "key", c.Key, "players", strings.Join(c.Players, ","))
	}

	out := model.Export{Players: players, Guilds: guilds, Articles: articles, UpdatedAt: now}
	export.Summarize(&out, r.cfg.Articles.Featured, r.cfg.Articles.Latest)
	log.Info("聚合完成",
		"players", len(players), "guilds", len(guilds), "articles", len(articles),
		"skipped", len(rep.Skipped), "excluded", len(rep.Excluded))
	return out, rep, nil
}

// SortArticles 按发布日期倒序稳定排序。无法解析的日期视为 now，oldest 为真时排到最后。
func SortArticles(list []model.Article, now time.Time, oldest bool) {
	key := func(a model.Article) time.Time {
		if a.DateParsed {
			return a.Published
		}
		if oldest {
			return time.Time{}
		}
		return now
	}
	sort.SliceStable(list, func(i, j int) bool { return key(list[i]).After(key(list[j])) })
}

func records[T any](docs []Doc[T]) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Record)
	}
	return out
}

func duplicates[T any](rep *model.Report, kind model.Kind, docs []Doc[T], id func(T) string) {
	seen := map[string]string{}
	for _, d := range docs {
		k := id(d.Record)
		if first, ok := seen[k]; ok {
			rep.Warn(kind, d.Path, fmt.Sprintf("duplicate id %q (also in %s)", k, first))
			continue
		}
		seen[k] = d.Path
	}
}

// Lookup 按 id 查找某类文档的路径。
func (r *Runner) Lookup(ctx context.Context, kind model.Kind, id string) (string, error) {
	rep := model.NewReport("")
	var path string
	var err error
	switch kind {
	case model.KindPlayer:
		var docs []Doc[model.Player]
		docs, err = r.Players(ctx, rep)
		path = find(docs, id, func(p model.Player) string { return p.ID })
	case model.KindGuild:
		var docs []Doc[model.Guild]
		docs, err = r.Guilds(ctx, rep)
		path = find(docs, id, func(g model.Guild) string { return g.ID })
	case model.KindArticle:
		var docs []Doc[model.Article]
		docs, err = r.Articles(ctx, rep)
		path = find(docs, id, func(a model.Article) string { return a.ID })
	default:
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("%s %q: %w", kind, id, fs.ErrNotExist)
	}
	return path, nil
}

func find[T any](docs []Doc[T], id string, key func(T) string) string {
	for _, d := range docs {
		if key(d.Record) == id {
			return d.Path
		}
	}
	return ""
}
