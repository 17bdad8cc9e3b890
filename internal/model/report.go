package model

import "time"

// Skip 记录一个被跳过的文档及原因。
type Skip struct {
	Kind   Kind   `json:"kind"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// AuthorConflict 表示多个玩家归一化后得到同一作者键。
type AuthorConflict struct {
	Key     string   `json:"key"`
	Players []string `json:"players"`
}

// UnlinkedAuthor 表示文章作者未匹配到任何玩家，Suggestion 为最相近的玩家 id。
type UnlinkedAuthor struct {
	ArticleID  string  `json:"articleId"`
	Author     string  `json:"author"`
	Suggestion string  `json:"suggestion,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// Report 为一次聚合运行的结果汇总，替代进程级的跳过列表。
type Report struct {
	RunID     string           `json:"runId"`
	StartedAt time.Time        `json:"startedAt"`
	Scanned   map[Kind]int     `json:"scanned"`
	Skipped   []Skip           `json:"skipped"`
	Excluded  []Skip           `json:"excluded"`
	Warnings  []Skip           `json:"warnings"`
	Conflicts []AuthorConflict `json:"conflicts"`
	Unlinked  []UnlinkedAuthor `json:"unlinked"`
}

// NewReport 创建空报告。
func NewReport(runID string) *Report {
	return &Report{RunID: runID, StartedAt: time.Now(), Scanned: map[Kind]int{}}
}

func (r *Report) Skip(kind Kind, path, reason string) {
	r.Skipped = append(r.Skipped, Skip{Kind: kind, Path: path, Reason: reason})
}

func (r *Report) Exclude(kind Kind, path, reason string) {
	r.Excluded = append(r.Excluded, Skip{Kind: kind, Path: path, Reason: reason})
}

func (r *Report) Warn(kind Kind, path, reason string) {
	r.Warnings = append(r.Warnings, Skip{Kind: kind, Path: path, Reason: reason})
}

// RefreshError 为单个好友码的刷新失败。
type RefreshError struct {
	FriendCode string `json:"friendCode"`
	Path       string `json:"path,omitempty"`
	Error      string `json:"error"`
}

// RefreshReport 为一次统计刷新的结果。
type RefreshReport struct {
	RunID     string         `json:"runId"`
	Total     int            `json:"total"`
	Updated   []string       `json:"updated"`
	Unchanged []string       `json:"unchanged"`
	Skipped   []Skip         `json:"skipped"`
	Errors    []RefreshError `json:"errors"`
}
