// 包 link 在聚合后推导实体之间的关系，只修改内存中的记录：
// - 公会成员：按 player.guildId == guild.id 收集成员投影，memberCount 以实际人数为准
// - 文章作者：作者键与玩家 ign/姓名的归一化键匹配；同一键对应多个玩家时不归属并报告冲突
// - 未匹配的作者给出最相近玩家的建议（Jaro-Winkler）
package link

import (
	"sort"

	"github.com/antzucaro/matchr"

	"bamaco-content/internal/extract"
	"bamaco-content/internal/model"
)

// SuggestThreshold 为给出作者建议的最低相似度。
const SuggestThreshold = 0.85

// Result 为链接阶段的诊断信息。
type Result struct {
	Conflicts []model.AuthorConflict
	Unlinked  []model.UnlinkedAuthor
	// Orphans 为 guildId 指向不存在公会的玩家 id
	Orphans []string
}

// Link 依次计算公会成员与文章作者。players 应已按 rating 排序，articles 已按日期排序。
func Link(players []model.Player, guilds []model.Guild, articles []model.Article) Result {
	var res Result
	res.Orphans = Members(guilds, players)
	res.Conflicts, res.Unlinked = Authors(players, articles)
	return res
}

// Members 为每个公会挂上成员投影并覆盖 memberCount，返回孤立玩家。
func Members(guilds []model.Guild, players []model.Player) []string {
	known := make(map[string]int, len(guilds))
	for i := range guilds {
		known[guilds[i].ID] = i
		guilds[i].Members = []model.GuildMember{}
	}
	var orphans []string
	for _, p := range players {
		if p.GuildID == "" {
			continue
		}
		i, ok := known[p.GuildID]
		if !ok {
			orphans = append(orphans, p.ID)
			continue
		}
		guilds[i].Members = append(guilds[i].Members, model.GuildMember{
			ID:     p.ID,
			Name:   p.Name,
			IGN:    p.IGN,
			Role:   p.Role,
			Rating: p.Rating,
			Rank:   p.Rank,
		})
	}
	for i := range guilds {
		guilds[i].MemberCount = len(guilds[i].Members)
	}
	return orphans
}

// Authors 将文章摘要挂到唯一匹配的玩家名下（按 articles 顺序）。
func Authors(players []model.Player, articles []model.Article) ([]model.AuthorConflict, []model.UnlinkedAuthor) {
	owners := map[string][]int{}
	for i, p := range players {
		players[i].Articles = nil
		seen := map[string]bool{}
		for _, k := range []string{extract.NormalizeKey(p.IGN), extract.NormalizeKey(p.Name)} {
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			owners[k] = append(owners[k], i)
		}
	}

	var conflicts []model.AuthorConflict
	for k, idx := range owners {
		if len(idx) < 2 {
			continue
		}
		ids := make([]string, 0, len(idx))
		for _, i := range idx {
			ids = append(ids, players[i].ID)
		}
		conflicts = append(conflicts, model.AuthorConflict{Key: k, Players: ids})
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Key < conflicts[j].Key })

	var unlinked []model.UnlinkedAuthor
	for _, a := range articles {
		key := a.AuthorID
		if key == "" {
			continue
		}
		idx := owners[key]
		switch len(idx) {
		case 1:
			p := &players[idx[0]]
			p.Articles = append(p.Articles, model.ArticleSummary{
				ID:       a.ID,
				Title:    a.Title,
				Excerpt:  a.Excerpt,
				Category: a.Category,
				Date:     a.Date,
			})
		case 0:
			u := model.UnlinkedAuthor{ArticleID: a.ID, Author: a.Author}
			u.Suggestion, u.Similarity = suggest(key, players)
			unlinked = append(unlinked, u)
		}
	}
	return conflicts, unlinked
}

// suggest 返回与作者键最相近的玩家 id，低于阈值时为空。
func suggest(key string, players []model.Player) (string, float64) {
	best, bestID := 0.0, ""
	for _, p := range players {
		for _, k := range []string{extract.NormalizeKey(p.IGN), extract.NormalizeKey(p.Name)} {
			if k == "" {
				continue
			}
			if s := matchr.JaroWinkler(key, k, false); s > best {
				best, bestID = s, p.ID
			}
		}
	}
	if best < SuggestThreshold {
		return "", 0
	}
	return bestID, best
}
