// 包 profile 处理玩家资料申请（issue 正文 → 玩家文档）。
//
// 标题含 [PROFILE-UPDATE] 时为更新，否则为新建。IGN/评分/称号/头像以统计 API 为准；
// 更新时保留管理员维护的字段（rating/rank/title/guildId）。
package profile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"

	"bamaco-content/internal/extract"
	"bamaco-content/internal/generate"
	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/logx"
	"bamaco-content/internal/maimai"
	"bamaco-content/internal/model"
)

// UpdateMarker 出现在标题中表示更新已有资料。
const UpdateMarker = "[PROFILE-UPDATE]"

var (
	ErrNoIGN    = errors.New("no IGN in request")
	ErrExists   = errors.New("profile already exists")
	ErrNotFound = errors.New("profile not found")
)

// Request 为解析后的申请内容。
type Request struct {
	Update      bool
	EditKey     string
	Fingerprint string
	IGN         string
	FullName    string
	Nickname    string
	Age         string
	FriendCode  string
	Motto       string
	Bio         string
}

var (
	reEditKey     = regexp.MustCompile("\\*\\*Edit Key:\\*\\*\\s*`([^`]+)`")
	reFingerprint = regexp.MustCompile("\\*\\*Device Fingerprint:\\*\\*\\s*`([^`]+)`")
)

func line(body, label string) string {
	re := regexp.MustCompile(`(?m)\*\*` + regexp.QuoteMeta(label) + `:\*\*[ \t]*(.+)$`)
	if m := re.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Parse 解析 issue 标题与正文。缺少 IGN 时返回 ErrNoIGN。
func Parse(title, body string) (Request, error) {
	r := Request{
		Update:     strings.Contains(title, UpdateMarker),
		IGN:        line(body, "IGN"),
		FullName:   line(body, "Full Name"),
		Nickname:   line(body, "Nickname"),
		Age:        line(body, "Age"),
		FriendCode: line(body, "Friend Code"),
		Motto:      line(body, "Motto"),
		Bio:        line(body, "Bio"),
	}
	if m := reEditKey.FindStringSubmatch(body); m != nil {
		r.EditKey = strings.TrimSpace(m[1])
	}
	if m := reFingerprint.FindStringSubmatch(body); m != nil {
		r.Fingerprint = strings.TrimSpace(m[1])
	}
	if r.IGN == "" {
		return r, ErrNoIGN
	}
	return r, nil
}

// Fetcher 获取单个玩家统计，*maimai.Client 满足该接口。
type Fetcher interface {
	FetchOne(ctx context.Context, code string) (maimai.Player, error)
}

// Processor 将申请写成玩家文档。
type Processor struct {
	API    Fetcher
	Writer *generate.Writer
	// Dir 为玩家目录，Template 为玩家模板内容（为空时生成兜底文档）
	Dir      string
	Template string
	Now      func() time.Time
}

var (
	reUnsafe = regexp.MustCompile(`[^\w\s-]`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// Filename 由 IGN 生成文件名主干：去掉特殊字符，空白转连字符，小写。
func Filename(ign string) string {
	s := reUnsafe.ReplaceAllString(ign, "")
	s = reSpaces.ReplaceAllString(s, "-")
	return strings.ToLower(strings.Trim(s, "-"))
}

// admin 为管理员维护的字段。
type admin struct {
	Rating  int
	Rank    string
	Title   string
	GuildID string
}

// Process 处理一条申请，返回写入的文档路径。
func (p *Processor) Process(ctx context.Context, req Request) (string, error) {
	code := maimai.CleanFriendCode(req.FriendCode)
	if !maimai.ValidFriendCode(code) {
		return "", fmt.Errorf("%w: %q", maimai.ErrInvalidFriendCode, req.FriendCode)
	}
	stats, err := p.API.FetchOne(ctx, code)
	if err != nil {
		return "", fmt.Errorf("fetch stats for %s: %w", code, err)
	}
	ign := stats.IGN
	if ign == "" {
		ign = req.IGN
	}
	name := Filename(ign)
	if name == "" {
		name = "player"
	}
	path := filepath.Join(p.Dir, name+".html")
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	w := p.Writer
	if w == nil {
		w = generate.NewWriter()
	}

	_, err = w.Update(path, func(old string, exists bool) (string, error) {
		switch {
		case req.Update && !exists:
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		case !req.Update && exists:
			return "", fmt.Errorf("%w: %s", ErrExists, path)
		}
		var prev model.Player
		base := p.Template
		if exists {
			base = old
			var perr error
			if prev, perr = extract.Player(old, path); perr != nil {
				return "", fmt.Errorf("read existing profile %s: %w", path, perr)
			}
		}
		player, err := build(req, stats, prev, code, now())
		if err != nil {
			return "", err
		}
		player.ID = extract.IDFromFilename(path)
		out, err := generate.Render(model.KindPlayer, generate.PlayerObject(player), base)
		if err != nil {
			return "", err
		}
		return withEditKey(out, req.EditKey), nil
	})
	if err != nil {
		return "", err
	}
	if req.Update {
		logx.Infof("资料已更新：%s", path)
	} else {
		logx.Infof("资料已创建：%s", path)
	}
	return path, nil
}

// build 合并申请、API 数据与已有资料。prev 为零值表示新建。
func build(req Request, stats maimai.Player, prev model.Player, code string, now time.Time) (model.Player, error) {
	keep := admin{Rating: prev.Rating, Rank: prev.Rank, Title: prev.Role, GuildID: prev.GuildID}
	title := stats.Trophy
	if title == "" {
		title = "Community Member"
	}
	// 已有值优先，缺失的字段取默认值
	if err := mergo.Merge(&keep, admin{Rating: stats.Rating, Rank: "Unranked", Title: title}); err != nil {
		return model.Player{}, fmt.Errorf("merge admin fields: %w", err)
	}

	ign := stats.IGN
	if ign == "" {
		ign = req.IGN
	}
	age, _ := strconv.Atoi(strings.TrimSpace(req.Age))
	p := model.Player{
		Name:       req.FullName,
		IGN:        ign,
		Nickname:   req.Nickname,
		FriendCode: code,
		Age:        age,
		Motto:      req.Motto,
		Bio:        req.Bio,
		Avatar:     stats.IconURL,
		Rating:     keep.Rating,
		Rank:       keep.Rank,
		Role:       keep.Title,
		GuildID:    keep.GuildID,
	}
	err := mergo.Merge(&p, model.Player{
		Name:        "REDACTED",
		Nickname:    ign,
		Motto:       "Unknown",
		Bio:         "No bio provided",
		Joined:      now.Format("Jan 2006"),
		Avatar:      prev.Avatar,
		Achievement: prev.Achievement,
	})
	if err != nil {
		return model.Player{}, fmt.Errorf("merge profile defaults: %w", err)
	}
	if prev.Joined != "" {
		p.Joined = prev.Joined
	}
	if p.Achievement == nil {
		p.Achievement = []model.Achievement{}
	}
	return p, nil
}

// withEditKey 在 </body> 前注入保存编辑密钥的脚本；已注入过时不重复。
func withEditKey(doc, key string) string {
	if key == "" || strings.Contains(doc, "profileEditKey") {
		return doc
	}
	i := strings.LastIndex(doc, "</body>")
	if i < 0 {
		return doc
	}
	script := "    <script>\n      localStorage.setItem('profileEditKey', " + jsobj.Quote(key, '\'') + ");\n    </script>\n  "
	return doc[:i] + script + doc[i:]
}
