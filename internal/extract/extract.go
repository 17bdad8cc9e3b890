// 包 extract 从 HTML 文档中提取玩家/公会/文章记录：
// - 优先解析内嵌对象（PLAYER_INFO/GUILD_INFO/ARTICLE_INFO）
// - 公会与文章页缺少内嵌对象时，按 rules 预设的选择器从旧版页面结构回退提取
// - 派生字段：id（文件名）、摘要、作者键、解析后的日期
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/model"
	"bamaco-content/internal/rules"
)

// 内嵌对象的变量名。
const (
	PlayerMarker  = "PLAYER_INFO"
	GuildMarker   = "GUILD_INFO"
	ArticleMarker = "ARTICLE_INFO"
)

// ErrNoRecord 表示文档中没有可识别的记录（缺少内嵌对象或对象无法解析）。
var ErrNoRecord = errors.New("no record")

// Marker 返回实体类别对应的变量名。
func Marker(kind model.Kind) string {
	switch kind {
	case model.KindPlayer:
		return PlayerMarker
	case model.KindGuild:
		return GuildMarker
	case model.KindArticle:
		return ArticleMarker
	}
	return ""
}

// Extractor 持有旧版页面的选择器预设。零值可用（使用内置预设）。
type Extractor struct {
	Legacy rules.Preset
}

// New 创建提取器。
func New(legacy rules.Preset) *Extractor {
	return &Extractor{Legacy: legacy}
}

var std = New(rules.Default())

// Player 使用内置预设提取玩家。
func Player(src, filename string) (model.Player, error) { return std.Player(src, filename) }

// Guild 使用内置预设提取公会。
func Guild(src, filename string) (model.Guild, error) { return std.Guild(src, filename) }

// Article 使用内置预设提取文章。
func Article(src, filename string) (model.Article, error) { return std.Article(src, filename) }

// IDFromFilename 取文件名主干并将 '-' 替换为 '_'。
func IDFromFilename(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(stem, "-", "_")
}

// NormalizeKey 将名字归一化为作者键：小写，空白串替换为下划线。
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// find 定位内嵌对象；缺失与语法错误都包装为 ErrNoRecord。
func find(src, marker string) (*jsobj.Object, error) {
	obj, err := jsobj.Find(src, marker)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoRecord, err)
	}
	return obj, nil
}

// Player 从 PLAYER_INFO 提取玩家。role 取自 title 字段，文章列表由链接阶段生成。
func (e *Extractor) Player(src, filename string) (model.Player, error) {
	obj, err := find(src, PlayerMarker)
	if err != nil {
		return model.Player{}, err
	}
	p := model.Player{
		ID:          IDFromFilename(filename),
		Name:        obj.String("name"),
		IGN:         obj.String("ign"),
		FriendCode:  obj.String("maimaiFriendCode"),
		Nickname:    obj.String("nickname"),
		Motto:       obj.String("motto"),
		Age:         obj.Int("age"),
		Rating:      obj.Int("rating"),
		Role:        firstOf(obj, "title", "role"),
		Rank:        obj.String("rank"),
		Joined:      obj.String("joined"),
		Bio:         obj.String("bio"),
		Avatar:      firstOf(obj, "avatarImage", "avatar"),
		GuildID:     obj.String("guildId"),
		Achievement: achievements(obj),
	}
	return p, nil
}

// Guild 从 GUILD_INFO 提取公会；没有内嵌对象时回退到旧版页面结构。
// memberCount 按原值读入，聚合时会被实际成员数覆盖。
func (e *Extractor) Guild(src, filename string) (model.Guild, error) {
	obj, err := jsobj.Find(src, GuildMarker)
	if errors.Is(err, jsobj.ErrMarkerNotFound) {
		return e.legacyGuild(src, filename)
	}
	if err != nil {
		return model.Guild{}, fmt.Errorf("%w: %w", ErrNoRecord, err)
	}
	id := obj.String("id")
	if id == "" {
		id = IDFromFilename(filename)
	}
	g := model.Guild{
		ID:          id,
		Name:        obj.String("name"),
		Motto:       obj.String("motto"),
		MemberCount: obj.Int("memberCount"),
		Level:       obj.Int("level"),
		Established: obj.String("established"),
		Description: obj.String("description"),
		Logo:        firstOf(obj, "guildLogo", "logo"),
		Achievement: achievements(obj),
	}
	return g, nil
}

// Article 从 ARTICLE_INFO 提取文章，id 优先取对象中的显式值；没有内嵌对象时回退到旧版页面结构。
func (e *Extractor) Article(src, filename string) (model.Article, error) {
	obj, err := jsobj.Find(src, ArticleMarker)
	if errors.Is(err, jsobj.ErrMarkerNotFound) {
		return e.legacyArticle(src, filename)
	}
	if err != nil {
		return model.Article{}, fmt.Errorf("%w: %w", ErrNoRecord, err)
	}
	id := obj.String("id")
	if id == "" {
		id = IDFromFilename(filename)
	}
	content := strings.TrimSpace(obj.String("content"))
	a := model.Article{
		ID:            id,
		Title:         obj.String("title"),
		Category:      obj.String("category"),
		Author:        obj.String("author"),
		Date:          obj.String("date"),
		Content:       content,
		Tags:          obj.Strings("tags"),
		ReadingTime:   obj.Int("readingTime"),
		FeaturedImage: obj.String("featuredImage"),
	}
	a.Excerpt = Excerpt(content, obj.String("excerpt"))
	a.AuthorID = NormalizeKey(a.Author)
	if a.AuthorID == "" {
		a.AuthorID = obj.String("authorId")
	}
	a.Published, a.DateParsed = ParseDate(a.Date)
	return a, nil
}

func firstOf(obj *jsobj.Object, keys ...string) string {
	for _, k := range keys {
		if obj.Has(k) {
			return obj.String(k)
		}
	}
	return ""
}

// achievements 提取成就列表；缺少 icon/name/description 任一字段的条目直接丢弃。
func achievements(obj *jsobj.Object) []model.Achievement {
	out := []model.Achievement{}
	for _, o := range obj.Objects("achievements") {
		v, ok := o.Require("icon", "name", "description")
		if !ok {
			continue
		}
		out = append(out, model.Achievement{Icon: v[0], Name: v[1], Description: v[2]})
	}
	return out
}
