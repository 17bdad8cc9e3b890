package link

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"bamaco-content/internal/model"
)

func TestMembers_OverridesAuthoredCount(t *testing.T) {
	guilds := []model.Guild{
		{ID: "elite", Name: "Elite", MemberCount: 99},
		{ID: "casual", Name: "Casual", MemberCount: 5},
	}
	players := []model.Player{
		{ID: "a", IGN: "A", Rating: 3200, GuildID: "casual", Role: "Leader", Rank: "S"},
		{ID: "b", IGN: "B", Rating: 2100, GuildID: "casual"},
		{ID: "c", IGN: "C", Rating: 1500, GuildID: "ghost"},
	}
	orphans := Members(guilds, players)
	if guilds[0].MemberCount != 0 || len(guilds[0].Members) != 0 || guilds[0].Members == nil {
		t.Fatalf("elite should have zero members: %+v", guilds[0])
	}
	want := []model.GuildMember{
		{ID: "a", IGN: "A", Role: "Leader", Rating: 3200, Rank: "S"},
		{ID: "b", IGN: "B", Rating: 2100},
	}
	if diff := cmp.Diff(want, guilds[1].Members); diff != "" {
		t.Fatalf("members (-want +got):\n%s", diff)
	}
	if guilds[1].MemberCount != 2 {
		t.Fatalf("memberCount=%d", guilds[1].MemberCount)
	}
	if len(orphans) != 1 || orphans[0] != "c" {
		t.Fatalf("orphans=%v", orphans)
	}
}

func TestAuthors_MatchByIGNOrName(t *testing.T) {
	players := []model.Player{
		{ID: "jdc", Name: "Juan Dela Cruz", IGN: "JDC"},
		{ID: "kai", Name: "Kai", IGN: "Quick Kai"},
	}
	articles := []model.Article{
		{ID: "new", Title: "New", AuthorID: "juan_dela_cruz", Date: "Mar 1, 2024"},
		{ID: "old", Title: "Old", AuthorID: "jdc", Date: "Jan 1, 2024"},
		{ID: "k", Title: "K", AuthorID: "quick_kai"},
	}
	conflicts, unlinked := Authors(players, articles)
	if len(conflicts) != 0 || len(unlinked) != 0 {
		t.Fatalf("unexpected diagnostics: %v %v", conflicts, unlinked)
	}
	if len(players[0].Articles) != 2 || players[0].Articles[0].ID != "new" {
		t.Fatalf("jdc articles=%+v", players[0].Articles)
	}
	if len(players[1].Articles) != 1 {
		t.Fatalf("kai articles=%+v", players[1].Articles)
	}
}

func TestAuthors_AmbiguousKeyAttachesToNobody(t *testing.T) {
	players := []model.Player{
		{ID: "p1", Name: "Alex Tan", IGN: "AT"},
		{ID: "p2", Name: "Someone", IGN: "Alex Tan"},
	}
	articles := []model.Article{{ID: "x", Title: "X", AuthorID: "alex_tan"}}
	conflicts, unlinked := Authors(players, articles)
	want := []model.AuthorConflict{{Key: "alex_tan", Players: []string{"p1", "p2"}}}
	if diff := cmp.Diff(want, conflicts); diff != "" {
		t.Fatalf("conflicts (-want +got):\n%s", diff)
	}
	if len(unlinked) != 0 {
		t.Fatalf("ambiguous article is not unlinked: %v", unlinked)
	}
	if players[0].Articles != nil || players[1].Articles != nil {
		t.Fatalf("ambiguous article should not be attached")
	}
}

func TestAuthors_UnlinkedSuggestion(t *testing.T) {
	players := []model.Player{{ID: "jdc", Name: "Juan Dela Cruz", IGN: "JDC"}}
	articles := []model.Article{
		{ID: "typo", Title: "T", Author: "Juan Dela Crux", AuthorID: "juan_dela_crux"},
		{ID: "far", Title: "F", Author: "Zed", AuthorID: "zed"},
	}
	_, unlinked := Authors(players, articles)
	if len(unlinked) != 2 {
		t.Fatalf("unlinked=%v", unlinked)
	}
	if unlinked[0].Suggestion != "jdc" || unlinked[0].Similarity < SuggestThreshold {
		t.Fatalf("expected suggestion for typo: %+v", unlinked[0])
	}
	if unlinked[1].Suggestion != "" {
		t.Fatalf("no suggestion expected for distant author: %+v", unlinked[1])
	}
}
