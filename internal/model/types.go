// 包 model 定义内容管线的数据模型（玩家/公会/文章/成就）以及导出结构与运行报告。
package model

import "time"

// Kind 表示文档的实体类别。
type Kind string

const (
	KindPlayer  Kind = "players"
	KindGuild   Kind = "guilds"
	KindArticle Kind = "articles"
)

// Achievement 为玩家或公会名下的成就，三个字段缺一即丢弃。
type Achievement struct {
	Icon        string `json:"icon"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ArticleSummary 为挂在玩家下的文章摘要（由链接阶段推导）。
type ArticleSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Category string `json:"category"`
	Date     string `json:"date"`
}

// Player 对应 PLAYER_INFO。
type Player struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	IGN         string           `json:"ign"`
	FriendCode  string           `json:"maimaiFriendCode"`
	Nickname    string           `json:"nickname"`
	Motto       string           `json:"motto"`
	Age         int              `json:"age"`
	Rating      int              `json:"rating"`
	Role        string           `json:"role"`
	Rank        string           `json:"rank"`
	Joined      string           `json:"joined"`
	Bio         string           `json:"bio"`
	Avatar      string           `json:"avatarImage,omitempty"`
	GuildID     string           `json:"guildId"`
	Achievement []Achievement    `json:"achievements"`
	Articles    []ArticleSummary `json:"articles,omitempty"`
}

// GuildMember 为公会成员投影。
type GuildMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IGN    string `json:"ign"`
	Role   string `json:"role"`
	Rating int    `json:"rating"`
	Rank   string `json:"rank"`
}

// Guild 对应 GUILD_INFO；Members 与 MemberCount 只在聚合时推导。
type Guild struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Motto       string        `json:"motto"`
	MemberCount int           `json:"memberCount"`
	Level       int           `json:"level"`
	Established string        `json:"established"`
	Description string        `json:"description"`
	Logo        string        `json:"guildLogo,omitempty"`
	Achievement []Achievement `json:"achievements"`
	Members     []GuildMember `json:"members"`
}

// Article 对应 ARTICLE_INFO。Published 仅用于排序，不导出。
type Article struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Excerpt       string    `json:"excerpt"`
	Category      string    `json:"category"`
	Author        string    `json:"author"`
	AuthorID      string    `json:"authorId"`
	Date          string    `json:"date"`
	Content       string    `json:"content"`
	Tags          []string  `json:"tags,omitempty"`
	ReadingTime   int       `json:"readingTime,omitempty"`
	FeaturedImage string    `json:"featuredImage,omitempty"`
	Published     time.Time `json:"-"`
	DateParsed    bool      `json:"-"`
}

// Export 为 data.json 顶层结构，字段顺序即输出顺序。
type Export struct {
	Players   []Player  `json:"players"`
	Guilds    []Guild   `json:"guilds"`
	Articles  []Article `json:"articles"`
	Featured  []string  `json:"featured"`
	Latest    []string  `json:"latest"`
	UpdatedAt time.Time `json:"updatedAt"`
}
