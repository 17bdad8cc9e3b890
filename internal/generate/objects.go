// 包 generate 将记录序列化为内嵌对象并写回 HTML 文档：
// - PlayerObject/GuildObject/ArticleObject 生成有序字段（带分节注释）
// - Render 在模板或原文档中替换对象区间，其余字节原样保留；无模板时生成兜底文档
// - Patch 只改写指定字段；Writer 负责同一路径串行、先写临时文件再替换
package generate

import (
	"strings"

	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/model"
)

func section(title string) jsobj.KV { return jsobj.KV{Comment: title} }

// PlayerObject 生成 PLAYER_INFO 字段。role 写回 title 键；articles 由链接阶段推导，
// 这里只保留空数组占位。
func PlayerObject(p model.Player) jsobj.Fields {
	return jsobj.Fields{
		section("Basic Information"),
		{Key: "name", Value: p.Name, Comment: "Full player name"},
		{Key: "ign", Value: p.IGN, Comment: "In-Game Name"},
		{Key: "nickname", Value: p.Nickname, Comment: "Preferred nickname"},
		{Key: "title", Value: p.Role, Comment: "Role or title"},
		section("Profile Image (optional)"),
		{Key: "avatarImage", Value: p.Avatar, Comment: "URL or path to avatar image"},
		section("MaiMai Information"),
		{Key: "maimaiFriendCode", Value: p.FriendCode, Comment: "Friend code format"},
		{Key: "rating", Value: p.Rating, Comment: "MaiMai rating"},
		{Key: "rank", Value: p.Rank},
		section("Profile Details"),
		{Key: "age", Value: p.Age},
		{Key: "motto", Value: p.Motto},
		{Key: "joined", Value: p.Joined, Comment: "Join date"},
		{Key: "bio", Value: p.Bio},
		section("Guild Information"),
		{Key: "guildId", Value: p.GuildID},
		section("Achievements"),
		{Key: "achievements", Value: achievementFields(p.Achievement)},
		section("Published Articles (generated on build)"),
		{Key: "articles", Value: []jsobj.Fields{}},
	}
}

// GuildObject 生成 GUILD_INFO 字段。memberCount 会在聚合时按成员数重算。
func GuildObject(g model.Guild) jsobj.Fields {
	return jsobj.Fields{
		{Key: "id", Value: g.ID},
		section("Basic Information"),
		{Key: "name", Value: g.Name},
		{Key: "motto", Value: g.Motto},
		section("Stats"),
		{Key: "memberCount", Value: g.MemberCount, Comment: "recalculated on build"},
		{Key: "level", Value: g.Level},
		{Key: "established", Value: g.Established},
		section("Description"),
		{Key: "description", Value: textValue(g.Description)},
		section("Image (optional)"),
		{Key: "guildLogo", Value: g.Logo},
		section("Achievements"),
		{Key: "achievements", Value: achievementFields(g.Achievement)},
	}
}

// ArticleObject 生成 ARTICLE_INFO 字段，正文与摘要使用反引号字符串。
func ArticleObject(a model.Article) jsobj.Fields {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return jsobj.Fields{
		{Key: "id", Value: a.ID},
		{Key: "title", Value: a.Title},
		{Key: "author", Value: a.Author},
		{Key: "date", Value: a.Date},
		{Key: "category", Value: a.Category},
		{Key: "excerpt", Value: jsobj.Template(a.Excerpt)},
		{Key: "content", Value: jsobj.Template(a.Content)},
		{Key: "tags", Value: tags},
		{Key: "readingTime", Value: a.ReadingTime},
		{Key: "featuredImage", Value: a.FeaturedImage},
	}
}

// ReadingTime 按每分钟 200 词估算阅读时长，至少 1 分钟。
func ReadingTime(content string) int {
	n := (len(strings.Fields(content)) + 100) / 200
	if n < 1 {
		return 1
	}
	return n
}

func achievementFields(list []model.Achievement) []jsobj.Fields {
	out := make([]jsobj.Fields, 0, len(list))
	for _, a := range list {
		out = append(out, jsobj.Fields{
			{Key: "icon", Value: a.Icon},
			{Key: "name", Value: a.Name},
			{Key: "description", Value: a.Description},
		})
	}
	return out
}

// textValue 多行文本使用反引号，单行保持普通字符串。
func textValue(s string) any {
	if strings.Contains(s, "\n") {
		return jsobj.Template(s)
	}
	return s
}
