package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bamaco-content/internal/model"
	"bamaco-content/internal/rules"
)

// legacyGuild 按选择器预设从旧版公会页提取。页面标题为空视为没有记录。
func (e *Extractor) legacyGuild(src, filename string) (model.Guild, error) {
	gp := e.preset().Guild
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return model.Guild{}, fmt.Errorf("%w: parse guild html: %w", ErrNoRecord, err)
	}
	root := doc.Selection
	name := getVal(root, gp.Name)
	// <title>公会名 - 站点名</title>
	if i := strings.Index(name, " - "); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if name == "" {
		return model.Guild{}, fmt.Errorf("%w: %s not found and no legacy markup", ErrNoRecord, GuildMarker)
	}
	stats := map[string]string{}
	root.Find(gp.StatLabel).Each(func(_ int, s *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(s.Text()))
		if v := s.NextFiltered(gp.StatValue); v.Length() > 0 {
			stats[label] = strings.TrimSpace(v.Text())
		}
	})
	g := model.Guild{
		ID:          IDFromFilename(filename),
		Name:        name,
		Motto:       getVal(root, gp.Motto),
		MemberCount: atoi(stats["members"]),
		Level:       atoi(stats["level"]),
		Established: stats["established"],
		Description: getVal(root, gp.Description),
		Logo:        getVal(root, gp.Logo),
		Achievement: []model.Achievement{},
	}
	root.Find(gp.Achievement).Each(func(_ int, s *goquery.Selection) {
		a := model.Achievement{
			Icon:        getVal(s, gp.Icon),
			Name:        getVal(s, gp.AchName),
			Description: getVal(s, gp.AchDescription),
		}
		if a.Icon == "" || a.Name == "" || a.Description == "" {
			return
		}
		g.Achievement = append(g.Achievement, a)
	})
	return g, nil
}

// legacyArticle 按选择器预设从旧版文章页提取。没有标题视为没有记录。
func (e *Extractor) legacyArticle(src, filename string) (model.Article, error) {
	ap := e.preset().Article
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return model.Article{}, fmt.Errorf("%w: parse article html: %w", ErrNoRecord, err)
	}
	root := doc.Selection
	title := getVal(root, ap.Title)
	if title == "" {
		return model.Article{}, fmt.Errorf("%w: %s not found and no legacy markup", ErrNoRecord, ArticleMarker)
	}
	author := getVal(root, ap.Author)
	if ap.AuthorPrefix != "" {
		author = strings.TrimSpace(strings.TrimPrefix(author, ap.AuthorPrefix))
	}
	var content string
	if sel := root.Find(ap.Content).First(); sel.Length() > 0 {
		content, _ = sel.Html()
		content = strings.TrimSpace(content)
	}
	a := model.Article{
		ID:       IDFromFilename(filename),
		Title:    title,
		Category: getVal(root, ap.Category),
		Author:   author,
		AuthorID: NormalizeKey(author),
		Date:     getVal(root, ap.Date),
		Content:  content,
	}
	a.Excerpt = Excerpt(content, "")
	a.Published, a.DateParsed = ParseDate(a.Date)
	return a, nil
}

func (e *Extractor) preset() rules.Preset {
	p := e.Legacy
	if p.Guild == nil || p.Article == nil {
		def := rules.Default()
		if p.Guild == nil {
			p.Guild = def.Guild
		}
		if p.Article == nil {
			p.Article = def.Article
		}
	}
	return p
}

// getVal 解析表达式并支持使用 "||" 作为回退分隔，例如："img@src||@src" 或 "h1.article-title||h1"。
func getVal(scope *goquery.Selection, expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	for _, p := range strings.Split(expr, "||") {
		if v := getValSingle(scope, strings.TrimSpace(p)); v != "" {
			return v
		}
	}
	return ""
}

// getValSingle 解析单个表达式：文本或 属性 读取。
func getValSingle(scope *goquery.Selection, expr string) string {
	if expr == "" {
		return ""
	}
	if expr == "." {
		return strings.TrimSpace(scope.Text())
	}
	if at := strings.LastIndex(expr, "@"); at != -1 {
		sel := strings.TrimSpace(expr[:at])
		attr := strings.TrimSpace(expr[at+1:])
		if sel == "" {
			val, _ := scope.Attr(attr)
			return strings.TrimSpace(val)
		}
		val, _ := scope.Find(sel).First().Attr(attr)
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(scope.Find(expr).First().Text())
}

// atoi 取前导数字，失败为 0。
func atoi(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
