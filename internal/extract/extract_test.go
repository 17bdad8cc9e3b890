package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"bamaco-content/internal/model"
	"bamaco-content/internal/rules"
)

const playerHTML = `<!doctype html><html><head><title>JDC - BAMACO</title></head><body>
<script>
  const PLAYER_INFO = {
    name: 'Juan Dela Cruz',
    ign: 'JDC',
    maimaiFriendCode: '101680566000997',
    nickname: "Juanito",
    motto: 'Full combo or bust',
    age: '21',
    rating: 15234,
    title: 'Guild Master',
    rank: 'Diamond',
    joined: 'Jan 2024',
    bio: 'Plays {every} day',
    guildId: 'bamaco_elite',
    achievements: [
      { icon: '🏆', name: 'Champion', description: 'Won the {cup}' },
      { icon: '⭐', name: 'Partial' },
      { icon: '🎵', name: 'AP', description: 'All perfect' },
    ],
  };
</script></body></html>`

func TestPlayer_Fields(t *testing.T) {
	p, err := Player(playerHTML, "players/juan-dela-cruz.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := model.Player{
		ID:         "juan_dela_cruz",
		Name:       "Juan Dela Cruz",
		IGN:        "JDC",
		FriendCode: "101680566000997",
		Nickname:   "Juanito",
		Motto:      "Full combo or bust",
		Age:        21,
		Rating:     15234,
		Role:       "Guild Master",
		Rank:       "Diamond",
		Joined:     "Jan 2024",
		Bio:        "Plays {every} day",
		GuildID:    "bamaco_elite",
		Achievement: []model.Achievement{
			{Icon: "🏆", Name: "Champion", Description: "Won the {cup}"},
			{Icon: "🎵", Name: "AP", Description: "All perfect"},
		},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("player mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayer_MissingFieldsAreZero(t *testing.T) {
	p, err := Player(`<script>const PLAYER_INFO = { ign: 'x' };</script>`, "x.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if p.Name != "" || p.Rating != 0 || len(p.Achievement) != 0 {
		t.Fatalf("unexpected defaults: %#v", p)
	}
}

func TestPlayer_NoRecord(t *testing.T) {
	for _, src := range []string{
		"<html><body>nothing here</body></html>",
		"<script>const PLAYER_INFO = { ign: 'x' </script>",
	} {
		_, err := Player(src, "a.html")
		if !errors.Is(err, ErrNoRecord) {
			t.Fatalf("want ErrNoRecord, got %v", err)
		}
	}
}

func TestGuild_ExplicitIDAndFilenameFallback(t *testing.T) {
	g, err := Guild(`<script>const GUILD_INFO = { id: 'elite', name: 'Elite', memberCount: '99', level: 5 };</script>`, "elite-guild.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if g.ID != "elite" || g.MemberCount != 99 || g.Level != 5 {
		t.Fatalf("unexpected guild: %#v", g)
	}
	g, err = Guild(`<script>const GUILD_INFO = { name: 'Elite' };</script>`, "elite-guild.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if g.ID != "elite_guild" {
		t.Fatalf("want filename id, got %q", g.ID)
	}
}

func TestGuild_LegacyMarkup(t *testing.T) {
	src := `<!doctype html><html><head><title>Rhythm Knights - BAMACO</title></head><body>
<p class="profile-role">Tap with honor</p>
<div class="stats">
  <span class="stat-label">Members</span> <span class="stat-value">12</span>
  <span class="stat-label">Level</span> <span class="stat-value">7</span>
  <span class="stat-label">Established</span> <span class="stat-value">March 2023</span>
</div>
<section>
  <h3 class="section-title">About the Guild</h3>
  <div class="card"><p>We play every Friday.</p></div>
</section>
<section>
  <h3 class="section-title">Achievements</h3>
  <div class="achievement-badge">
    <div class="achievement-icon">🏅</div>
    <div class="achievement-name">Regional</div>
    <div class="achievement-description">Top 3 in region</div>
  </div>
  <div class="achievement-badge"><div class="achievement-icon">❓</div></div>
</section>
</body></html>`
	g, err := Guild(src, "rhythm-knights.html")
	if err != nil {
		t.Fatalf("legacy: %v", err)
	}
	want := model.Guild{
		ID:          "rhythm_knights",
		Name:        "Rhythm Knights",
		Motto:       "Tap with honor",
		MemberCount: 12,
		Level:       7,
		Established: "March 2023",
		Description: "We play every Friday.",
		Achievement: []model.Achievement{{Icon: "🏅", Name: "Regional", Description: "Top 3 in region"}},
	}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Fatalf("guild mismatch (-want +got):\n%s", diff)
	}
}

func TestGuild_LegacyCustomPreset(t *testing.T) {
	rl := &rules.Rules{Presets: map[string]rules.Preset{
		"default": {Guild: &rules.GuildPage{Name: "h1.guild-name"}},
	}}
	ex := New(rl.GetPreset(""))
	g, err := ex.Guild(`<html><body><h1 class="guild-name">Custom</h1><p class="profile-role">m</p></body></html>`, "c.html")
	if err != nil {
		t.Fatalf("legacy: %v", err)
	}
	// unset selectors fall back to the built-in preset
	if g.Name != "Custom" || g.Motto != "m" {
		t.Fatalf("unexpected guild: %#v", g)
	}
}

func TestArticle_ExcerptTruncation(t *testing.T) {
	para := strings.Repeat("a", 250)
	src := "<script>\nconst ARTICLE_INFO = {\n  title: 'Long',\n  author: 'Juan Dela Cruz',\n  date: 'March 5, 2024',\n  category: 'Guide',\n  content: `\n<p>" + para + "</p>\n<p>second</p>\n`,\n};\n</script>"
	a, err := Article(src, "long-read.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if n := len([]rune(a.Excerpt)); n != 200 {
		t.Fatalf("excerpt length=%d want=200", n)
	}
	if !strings.HasSuffix(a.Excerpt, "...") {
		t.Fatalf("excerpt should end with ellipsis: %q", a.Excerpt)
	}
	if a.AuthorID != "juan_dela_cruz" || a.ID != "long_read" {
		t.Fatalf("unexpected ids: %q %q", a.AuthorID, a.ID)
	}
	if !a.DateParsed || a.Published.Month() != 3 || a.Published.Day() != 5 {
		t.Fatalf("date not parsed: %v", a.Published)
	}
	if !strings.Contains(a.Content, "<p>second</p>") || strings.HasPrefix(a.Content, "\n") {
		t.Fatalf("content not captured verbatim: %q", a.Content)
	}
}

func TestArticle_ExcerptStripsMarkup(t *testing.T) {
	src := "<script>const ARTICLE_INFO = { title: 'T', content: `<h2>Intro</h2>\n<p>Hit <strong>every</strong>\n note &amp; win</p>` };</script>"
	a, err := Article(src, "t.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if a.Excerpt != "Hit every note & win" {
		t.Fatalf("excerpt=%q", a.Excerpt)
	}
}

func TestArticle_Legacy(t *testing.T) {
	src := `<html><body>
<h1 class="article-title">Tips for Beginners</h1>
<div class="article-category">Guide</div>
<span class="article-author">By Juan Dela Cruz</span>
<span class="article-date">Feb 10, 2024</span>
<div class="article-content"><p>Start slow.</p><p>Then speed up.</p></div>
</body></html>`
	a, err := Article(src, "tips.html")
	if err != nil {
		t.Fatalf("legacy: %v", err)
	}
	if a.Title != "Tips for Beginners" || a.Author != "Juan Dela Cruz" || a.Excerpt != "Start slow." {
		t.Fatalf("unexpected article: %#v", a)
	}
	if !a.DateParsed {
		t.Fatalf("date should parse")
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]bool{
		"Jan 5, 2024":     true,
		"January 5, 2024": true,
		"2024-01-05":      true,
		"someday":         false,
		"":                false,
	}
	for in, ok := range cases {
		if _, got := ParseDate(in); got != ok {
			t.Fatalf("ParseDate(%q)=%v want %v", in, got, ok)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	if got := NormalizeKey("  Juan  Dela Cruz "); got != "juan_dela_cruz" {
		t.Fatalf("got %q", got)
	}
}
