package aggregate

import (
	"sync"

	"bamaco-content/internal/model"
)

// SimpleBuffer 保存最近一次聚合结果，供服务端按 id 读取，避免每次请求重扫目录。
type SimpleBuffer struct {
	mu       sync.RWMutex
	data     model.Export
	players  map[string]int
	guilds   map[string]int
	articles map[string]int
}

func NewSimpleBuffer() *SimpleBuffer {
	return &SimpleBuffer{
		players:  map[string]int{},
		guilds:   map[string]int{},
		articles: map[string]int{},
	}
}

// Set 替换快照并重建 id 索引；重复 id 以第一次出现为准。
func (b *SimpleBuffer) Set(e model.Export) {
	players := make(map[string]int, len(e.Players))
	for i, p := range e.Players {
		if _, ok := players[p.ID]; !ok {
			players[p.ID] = i
		}
	}
	guilds := make(map[string]int, len(e.Guilds))
	for i, g := range e.Guilds {
		if _, ok := guilds[g.ID]; !ok {
			guilds[g.ID] = i
		}
	}
	articles := make(map[string]int, len(e.Articles))
	for i, a := range e.Articles {
		if _, ok := articles[a.ID]; !ok {
			articles[a.ID] = i
		}
	}
	b.mu.Lock()
	b.data, b.players, b.guilds, b.articles = e, players, guilds, articles
	b.mu.Unlock()
}

// Snapshot 返回当前快照。切片与快照共享，调用方不得修改。
func (b *SimpleBuffer) Snapshot() model.Export {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data
}

// Get 按类别与 id 返回记录。
func (b *SimpleBuffer) Get(kind model.Kind, id string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch kind {
	case model.KindPlayer:
		if i, ok := b.players[id]; ok {
			return b.data.Players[i], true
		}
	case model.KindGuild:
		if i, ok := b.guilds[id]; ok {
			return b.data.Guilds[i], true
		}
	case model.KindArticle:
		if i, ok := b.articles[id]; ok {
			return b.data.Articles[i], true
		}
	}
	return nil, false
}
