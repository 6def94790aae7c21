package match_test

import (
	"testing"

	"frcvideos/internal/match"
)

func TestNames(t *testing.T) {
	cases := []struct {
		key      string
		playoffs match.PlayoffsType
		want     string
	}{
		{"2023gadal_qm12", match.DoubleElimination, "Qualification 12"},
		{"2023gadal_sf5m1", match.DoubleElimination, "Playoff 5"},
		{"2023gadal_sf13m2", match.DoubleElimination, "Playoff 13 Match 2"},
		{"2023gadal_f1m2", match.DoubleElimination, "Final 2"},
		{"2019cmptx_qf3m2", match.BestOf3, "Quarterfinal 3 Match 2"},
		{"2019cmptx_sf1m1", match.BestOf3, "Semifinal 1 Match 1"},
		{"2019cmptx_f1m3", match.BestOf3, "Final 3"},
	}
	for _, tc := range cases {
		key := mustParse(t, tc.key, tc.playoffs)
		if got := key.Name(); got != tc.want {
			t.Fatalf("%s Name() = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestVideoFileName(t *testing.T) {
	key := mustParse(t, "2023gadal_qm7", match.DoubleElimination)
	if got := key.VideoFileName(".mp4"); got != "Qualification 7.mp4" {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := key.VideoFileName("mkv"); got != "Qualification 7.mkv" {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := key.VideoFileName(""); got != "Qualification 7" {
		t.Fatalf("unexpected file name %q", got)
	}
}
