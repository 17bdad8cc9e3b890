package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"bamaco-content/internal/extract"
	"bamaco-content/internal/maimai"
	"bamaco-content/internal/model"
)

const issueBody = "### Player Profile Request\n\n" +
	"**Edit Key:** `ek-123`\n" +
	"**Device Fingerprint:** `fp-9`\n" +
	"**IGN:** jdc\n" +
	"**Full Name:** Juan Dela Cruz\n" +
	"**Nickname:** Juanito\n" +
	"**Age:** 21\n" +
	"**Friend Code:** 1016-8056-6000-997\n" +
	"**Motto:** Full combo or bust\n" +
	"**Bio:** Plays every day\n"

type stub struct {
	p   maimai.Player
	err error
}

func (s stub) FetchOne(context.Context, string) (maimai.Player, error) { return s.p, s.err }

func TestParse(t *testing.T) {
	r, err := Parse("[PROFILE-UPDATE] jdc", issueBody)
	require.NoError(t, err)
	want := Request{
		Update: true, EditKey: "ek-123", Fingerprint: "fp-9", IGN: "jdc",
		FullName: "Juan Dela Cruz", Nickname: "Juanito", Age: "21",
		FriendCode: "1016-8056-6000-997", Motto: "Full combo or bust", Bio: "Plays every day",
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Fatalf("request (-want +got):\n%s", diff)
	}

	_, err = Parse("New profile", "**Bio:** nothing else")
	require.ErrorIs(t, err, ErrNoIGN)
}

func TestFilename(t *testing.T) {
	require.Equal(t, "juan-dela-cruz", Filename("  Juan Dela Cruz! "))
	require.Equal(t, "a_b-c", Filename("A_B   C"))
}

func newProcessor(t *testing.T, s stub) *Processor {
	t.Helper()
	return &Processor{
		API: s,
		Dir: t.TempDir(),
		Now: func() time.Time { return time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) },
	}
}

func read(t *testing.T, path string) (string, model.Player) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	p, err := extract.Player(string(b), path)
	require.NoError(t, err)
	return string(b), p
}

func TestProcess_CreateUsesAPIData(t *testing.T) {
	pr := newProcessor(t, stub{p: maimai.Player{IGN: "JDC", Rating: 15234, Trophy: "Champion", IconURL: "https://img/jdc.png"}})
	req, err := Parse("New profile", issueBody)
	require.NoError(t, err)

	path, err := pr.Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(pr.Dir, "jdc.html"), path)

	doc, p := read(t, path)
	require.Equal(t, "JDC", p.IGN)
	require.Equal(t, 15234, p.Rating)
	require.Equal(t, "Champion", p.Role)
	require.Equal(t, "Unranked", p.Rank)
	require.Equal(t, "101680566000997", p.FriendCode)
	require.Equal(t, 21, p.Age)
	require.Equal(t, "Jan 2026", p.Joined)
	require.Equal(t, "https://img/jdc.png", p.Avatar)
	require.Contains(t, doc, "localStorage.setItem('profileEditKey', 'ek-123')")

	// 重复创建被拒绝
	_, err = pr.Process(context.Background(), req)
	require.ErrorIs(t, err, ErrExists)
}

func TestProcess_UpdatePreservesAdminFields(t *testing.T) {
	pr := newProcessor(t, stub{p: maimai.Player{IGN: "JDC", Rating: 15000}})
	existing := `<html><body><script>
const PLAYER_INFO = {
  name: 'Old Name',
  ign: 'JDC',
  title: 'Guild Master',
  rating: 14000,
  rank: 'Diamond',
  joined: 'Mar 2024',
  guildId: 'bamaco_elite',
  achievements: [{ icon: '🏆', name: 'Champion', description: 'Won' }],
};
</script></body></html>`
	path := filepath.Join(pr.Dir, "jdc.html")
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	req, err := Parse("[PROFILE-UPDATE] JDC", issueBody)
	require.NoError(t, err)
	_, err = pr.Process(context.Background(), req)
	require.NoError(t, err)

	doc, p := read(t, path)
	require.Equal(t, 14000, p.Rating)
	require.Equal(t, "Diamond", p.Rank)
	require.Equal(t, "Guild Master", p.Role)
	require.Equal(t, "bamaco_elite", p.GuildID)
	require.Equal(t, "Mar 2024", p.Joined)
	require.Equal(t, "Juan Dela Cruz", p.Name)
	require.Len(t, p.Achievement, 1)
	require.Equal(t, 1, strings.Count(doc, "profileEditKey"))

	// 再次处理同一更新不会重复注入
	_, err = pr.Process(context.Background(), req)
	require.NoError(t, err)
	doc, _ = read(t, path)
	require.Equal(t, 1, strings.Count(doc, "profileEditKey"))
}

func TestProcess_UpdateMissingProfile(t *testing.T) {
	pr := newProcessor(t, stub{p: maimai.Player{IGN: "Nobody"}})
	req, err := Parse("[PROFILE-UPDATE]", issueBody)
	require.NoError(t, err)
	_, err = pr.Process(context.Background(), req)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProcess_RejectsBadCodeAndAPIFailure(t *testing.T) {
	pr := newProcessor(t, stub{err: errors.New("Player not found")})
	_, err := pr.Process(context.Background(), Request{IGN: "x", FriendCode: "12ab"})
	require.ErrorIs(t, err, maimai.ErrInvalidFriendCode)

	_, err = pr.Process(context.Background(), Request{IGN: "x", FriendCode: "101680566000997"})
	require.Error(t, err)
	entries, _ := os.ReadDir(pr.Dir)
	require.Empty(t, entries)
}

func TestBuild_MergesDefaultsUnderExistingValues(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	prev := model.Player{Rating: 14000, Rank: "Diamond", Role: "Guild Master", GuildID: "elite", Joined: "Mar 2024"}
	p, err := build(Request{IGN: "JDC"}, maimai.Player{Rating: 15000}, prev, "101680566000997", now)
	require.NoError(t, err)
	require.Equal(t, 14000, p.Rating)
	require.Equal(t, "Diamond", p.Rank)
	require.Equal(t, "Guild Master", p.Role)
	require.Equal(t, "Mar 2024", p.Joined)
	require.Equal(t, "REDACTED", p.Name)
	require.Equal(t, "JDC", p.Nickname)

	p, err = build(Request{IGN: "NEW", FullName: "New Player"}, maimai.Player{Rating: 9000, Trophy: "Rookie"}, model.Player{}, "101680566000998", now)
	require.NoError(t, err)
	require.Equal(t, 9000, p.Rating)
	require.Equal(t, "Unranked", p.Rank)
	require.Equal(t, "Rookie", p.Role)
	require.Equal(t, "May 2024", p.Joined)
	require.NotNil(t, p.Achievement)
}
