package generate

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"bamaco-content/internal/extract"
	"bamaco-content/internal/jsobj"
	"bamaco-content/internal/model"
)

const playerTemplate = `<!DOCTYPE html>
<html lang="en">
<head><title>Player Profile - BAMACO</title></head>
<body>
  <main id="profile"></main>
  <script src="../script.js"></script>
  <script>
      // Edit the object below
      const PLAYER_INFO = {
        name: 'Template Name',
        ign: 'TEMPLATE',
        achievements: [
          { icon: '🏆', name: 'Nested', description: 'has } brace' },
        ],
      };
      renderPlayerProfile(PLAYER_INFO);
  </script>
</body>
</html>
`

func samplePlayer() model.Player {
	return model.Player{
		ID:         "kai",
		Name:       "Kai O'Brien",
		IGN:        "KAI",
		FriendCode: "101680566000997",
		Nickname:   `The "Quick"`,
		Motto:      `Back\slash`,
		Age:        19,
		Rating:     14890,
		Role:       "Member",
		Rank:       "S+",
		Joined:     "June 2024",
		Bio:        "Line one\nLine two </script>",
		Avatar:     "../assets/kai.png",
		GuildID:    "elite",
		Achievement: []model.Achievement{
			{Icon: "🏆", Name: "First", Description: "Cleared {everything}"},
			{Icon: "🎵", Name: "Second", Description: "It's done"},
		},
	}
}

func TestRender_PlayerRoundTrip(t *testing.T) {
	want := samplePlayer()
	doc, err := Render(model.KindPlayer, PlayerObject(want), playerTemplate)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got, err := extract.Player(doc, "kai.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	// markup outside the object is preserved
	if !strings.HasPrefix(doc, playerTemplate[:strings.Index(playerTemplate, "{")]) {
		t.Fatalf("prefix changed")
	}
	if !strings.HasSuffix(doc, "};\n      renderPlayerProfile(PLAYER_INFO);\n  </script>\n</body>\n</html>\n") {
		t.Fatalf("suffix changed:\n%s", doc)
	}
	if strings.Contains(doc, "Nested") {
		t.Fatalf("template object not fully replaced")
	}
}

func TestRender_Idempotent(t *testing.T) {
	f := PlayerObject(samplePlayer())
	once, err := Render(model.KindPlayer, f, playerTemplate)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	twice, err := Render(model.KindPlayer, f, once)
	if err != nil {
		t.Fatalf("render again: %v", err)
	}
	if once != twice {
		t.Fatalf("second render differs:\n%s\n---\n%s", once, twice)
	}
}

func TestRender_FallbackDocument(t *testing.T) {
	g := model.Guild{
		ID:          "elite",
		Name:        "Elite <Guild>",
		Motto:       "Tap",
		MemberCount: 0,
		Level:       3,
		Established: "2023",
		Description: "Multi\nline `desc` ${notvar}",
		Achievement: []model.Achievement{},
	}
	doc, err := Render(model.KindGuild, GuildObject(g), "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(doc, "<title>Elite &lt;Guild&gt; - BAMACO</title>") {
		t.Fatalf("title not escaped:\n%s", doc)
	}
	got, err := extract.Guild(doc, "whatever.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if diff := cmp.Diff(g, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("guild mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_ArticleRoundTrip(t *testing.T) {
	a := model.Article{
		ID:          "tips",
		Title:       "Tips & Tricks",
		Author:      "Juan Dela Cruz",
		Date:        "2024-03-05",
		Category:    "Guide",
		Content:     "<p>Use `backticks` and ${braces}</p>\n<p>Second</p>",
		Tags:        []string{"guide", "beginner"},
		ReadingTime: 3,
	}
	doc, err := Render(model.KindArticle, ArticleObject(a), "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got, err := extract.Article(doc, "tips.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Content != a.Content || got.Title != a.Title || got.ReadingTime != 3 {
		t.Fatalf("unexpected article: %#v", got)
	}
	if diff := cmp.Diff(a.Tags, got.Tags); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
	if got.Excerpt != "Use `backticks` and ${braces}" {
		t.Fatalf("excerpt=%q", got.Excerpt)
	}
}

func TestRender_GuildRoundTrip(t *testing.T) {
	want := model.Guild{
		ID:          "rhythm_masters",
		Name:        `The "Rhythm" Masters`,
		Motto:       "Don't stop",
		MemberCount: 12,
		Level:       4,
		Established: "Jan 2023",
		Description: "Line one with 'quotes' and \"doubles\".\nLine two costs ${5}.\n\tIndented `code` line.",
		Logo:        "../images/rm.png",
		Achievement: []model.Achievement{
			{Icon: "🏆", Name: "Closing } brace", Description: "Won {twice} in a row}"},
			{Icon: "⭐", Name: "Second", Description: "It's ${fine}"},
		},
	}
	doc, err := Render(model.KindGuild, GuildObject(want), "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got, err := extract.Guild(doc, "other-name.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	again, err := Render(model.KindGuild, GuildObject(got), doc)
	if err != nil {
		t.Fatalf("render again: %v", err)
	}
	if again != doc {
		t.Fatalf("second render differs:\n%s\n---\n%s", doc, again)
	}
}

func TestRender_ArticleExplicitIDSurvivesRename(t *testing.T) {
	a := model.Article{ID: "my_post", Title: "My Post", Content: "<p>Hi</p>"}
	doc, err := Render(model.KindArticle, ArticleObject(a), "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got, err := extract.Article(doc, "other-name.html")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.ID != "my_post" {
		t.Fatalf("id=%q want my_post", got.ID)
	}
}

func TestRender_TemplateWithoutMarker(t *testing.T) {
	_, err := Render(model.KindPlayer, PlayerObject(samplePlayer()), "<html></html>")
	if !IsTemplateMissing(err) {
		t.Fatalf("want marker-missing error, got %v", err)
	}
}

func TestWriter_SavePatchAndUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kai.html")
	w := NewWriter()

	wrote, err := w.Save(path, model.KindPlayer, PlayerObject(samplePlayer()), playerTemplate)
	if err != nil || !wrote {
		t.Fatalf("save: wrote=%v err=%v", wrote, err)
	}
	wrote, err = w.Save(path, model.KindPlayer, PlayerObject(samplePlayer()), playerTemplate)
	if err != nil || wrote {
		t.Fatalf("unchanged save should not write: wrote=%v err=%v", wrote, err)
	}

	before, _ := os.ReadFile(path)
	changed, err := w.PatchFile(path, model.KindPlayer, jsobj.Fields{{Key: "rating", Value: 15000}, {Key: "bio", Value: "Line one\nLine two </script>"}})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if len(changed) != 1 || changed[0] != "rating" {
		t.Fatalf("changed=%v", changed)
	}
	after, _ := os.ReadFile(path)
	if strings.Replace(string(before), "rating: 14890,", "rating: 15000,", 1) != string(after) {
		t.Fatalf("patch touched more than the rating span")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestWriter_PatchMissingFile(t *testing.T) {
	_, err := NewWriter().PatchFile(filepath.Join(t.TempDir(), "nope.html"), model.KindPlayer, jsobj.Fields{{Key: "rating", Value: 1}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriter_ConcurrentUpdatesSerialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.txt")
	w := NewWriter()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Update(path, func(old string, _ bool) (string, error) {
				return old + "x", nil
			})
		}()
	}
	wg.Wait()
	b, _ := os.ReadFile(path)
	if len(b) != 20 {
		t.Fatalf("lost updates: %q", b)
	}
}

func TestSafeName(t *testing.T) {
	if got := SafeName("Kai O'Brien-2"); got != "kai_obrien2" {
		t.Fatalf("got %q", got)
	}
}
