package match

import (
	"fmt"
	"strings"
)

// Name returns the human-readable match name used in video titles and file
// names.
func (k MatchKey) Name() string {
	switch k.CompLevel {
	case Qualification:
		return fmt.Sprintf("Qualification %d", k.MatchNumber)
	case Final:
		return fmt.Sprintf("Final %d", k.MatchNumber)
	}
	if k.PlayoffsType == DoubleElimination {
		if k.MatchNumber > 1 {
			return fmt.Sprintf("Playoff %d Match %d", k.SetNumber, k.MatchNumber)
		}
		return fmt.Sprintf("Playoff %d", k.SetNumber)
	}
	level := "Semifinal"
	if k.CompLevel == Quarterfinal {
		level = "Quarterfinal"
	}
	return fmt.Sprintf("%s %d Match %d", level, k.SetNumber, k.MatchNumber)
}

// VideoFileName returns the rename target for a recording of this match,
// keeping the original extension.
func (k MatchKey) VideoFileName(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return k.Name()
	}
	return k.Name() + "." + ext
}
