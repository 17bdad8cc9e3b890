// 包 refresh 实现每日统计刷新：
// - 从玩家文档读取好友码，按批次（≤10）请求统计 API
// - 仅改写 ign/rating/title/avatarImage 字段，内容不变时不写文件
// - 单个好友码失败只记录在报告中，对应文档保持原样
package refresh

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"bamaco-content/internal/aggregate"
	"bamaco-content/internal/generate"
	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/logx"
	"bamaco-content/internal/maimai"
	"bamaco-content/internal/model"
	"bamaco-content/internal/store"
)

// Fetcher 批量获取玩家统计，*maimai.Client 满足该接口。
type Fetcher interface {
	FetchBatch(ctx context.Context, codes []string) (map[string]maimai.Result, error)
}

// Recorder 记录评分历史，*store.SQLite 满足该接口。
type Recorder interface {
	RecordRatings(ctx context.Context, points []store.RatingPoint) error
}

// Refresher 持有刷新所需的依赖。Store 可为空。
type Refresher struct {
	Runner    *aggregate.Runner
	API       Fetcher
	Writer    *generate.Writer
	Store     Recorder
	BatchSize int
}

type target struct {
	path string
	id   string
}

// Run 执行一轮刷新。只有扫描本身失败时才返回错误。
func (r *Refresher) Run(ctx context.Context) (model.RefreshReport, error) {
	rep := model.RefreshReport{RunID: uuid.NewString()}
	log := logx.With("run", rep.RunID)

	scan := model.NewReport(rep.RunID)
	docs, err := r.Runner.Players(ctx, scan)
	if err != nil {
		return rep, fmt.Errorf("scan players: %w", err)
	}
	rep.Skipped = append(rep.Skipped, scan.Skipped...)
	rep.Skipped = append(rep.Skipped, scan.Excluded...)

	byCode := map[string][]target{}
	var codes []string
	for _, d := range docs {
		code := maimai.CleanFriendCode(d.Record.FriendCode)
		if !maimai.ValidFriendCode(code) {
			rep.Skipped = append(rep.Skipped, model.Skip{Kind: model.KindPlayer, Path: d.Path, Reason: "invalid or missing friend code"})
			continue
		}
		if _, ok := byCode[code]; !ok {
			codes = append(codes, code)
		}
		byCode[code] = append(byCode[code], target{path: d.Path, id: d.Record.ID})
	}
	rep.Total = len(codes)
	log.Info("开始刷新统计", "codes", len(codes), "skipped", len(rep.Skipped))

	size := r.BatchSize
	if size <= 0 || size > maimai.MaxBatch {
		size = maimai.MaxBatch
	}
	w := r.Writer
	if w == nil {
		w = generate.NewWriter()
	}
	var points []store.RatingPoint
	for start := 0; start < len(codes); start += size {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		batch := codes[start:min(start+size, len(codes))]
		log.Debug("请求批次", "from", start, "size", len(batch))
		results, err := r.API.FetchBatch(ctx, batch)
		if err != nil {
			log.Warn("批次失败", "err", err)
			for _, code := range batch {
				for _, t := range byCode[code] {
					rep.Errors = append(rep.Errors, model.RefreshError{FriendCode: code, Path: t.path, Error: err.Error()})
				}
			}
			continue
		}
		for _, code := range batch {
			res, ok := results[code]
			if !ok {
				res = maimai.Result{Err: fmt.Errorf("no result for %s", code)}
			}
			for _, t := range byCode[code] {
				if res.Err != nil {
					rep.Errors = append(rep.Errors, model.RefreshError{FriendCode: code, Path: t.path, Error: res.Err.Error()})
					continue
				}
				changed, err := w.PatchFile(t.path, model.KindPlayer, Updates(res.Player))
				if err != nil {
					rep.Errors = append(rep.Errors, model.RefreshError{FriendCode: code, Path: t.path, Error: err.Error()})
					continue
				}
				if len(changed) > 0 {
					log.Info("已更新", "path", t.path, "fields", changed)
					rep.Updated = append(rep.Updated, t.path)
				} else {
					rep.Unchanged = append(rep.Unchanged, t.path)
				}
				if res.Player.Rating > 0 {
					points = append(points, store.RatingPoint{RunID: rep.RunID, FriendCode: code, PlayerID: t.id, Rating: res.Player.Rating})
				}
			}
		}
	}
	sort.Strings(rep.Updated)
	sort.Strings(rep.Unchanged)

	if r.Store != nil && len(points) > 0 {
		if err := r.Store.RecordRatings(ctx, points); err != nil {
			log.Warn("写入评分历史失败", "err", err)
		}
	}
	log.Info("刷新完成", "updated", len(rep.Updated), "unchanged", len(rep.Unchanged), "errors", len(rep.Errors))
	return rep, nil
}

// Updates 由 API 数据生成字段更新；空值不覆盖文档中的已有内容。
func Updates(p maimai.Player) jsobj.Fields {
	var f jsobj.Fields
	if p.IGN != "" {
		f = append(f, jsobj.KV{Key: "ign", Value: p.IGN})
	}
	if p.Rating > 0 {
		f = append(f, jsobj.KV{Key: "rating", Value: p.Rating})
	}
	if p.Trophy != "" {
		f = append(f, jsobj.KV{Key: "title", Value: p.Trophy})
	}
	if p.IconURL != "" {
		f = append(f, jsobj.KV{Key: "avatarImage", Value: p.IconURL})
	}
	return f
}
