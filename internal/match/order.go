package match

// IsAfter reports whether k is played after other within the same event.
func (k MatchKey) IsAfter(other MatchKey) bool {
	return Compare(k, other) > 0
}

// Compare orders two keys of one event, returning -1, 0 or 1.
func Compare(a, b MatchKey) int {
	ka, kb := a.sortKey(), b.sortKey()
	for i := 0; i < len(ka) && i < len(kb); i++ {
		switch {
		case ka[i] < kb[i]:
			return -1
		case ka[i] > kb[i]:
			return 1
		}
	}
	switch {
	case len(ka) < len(kb):
		return -1
	case len(ka) > len(kb):
		return 1
	}
	return 0
}

// sortKey flattens a key into a lexicographically comparable tuple. The first
// element separates qualifications, non-final playoffs and finals.
func (k MatchKey) sortKey() []int {
	switch k.CompLevel {
	case Qualification:
		return []int{0, k.MatchNumber}
	case Final:
		return []int{2, k.MatchNumber, k.SetNumber}
	}
	if k.PlayoffsType == DoubleElimination {
		if k.CompLevel == Semifinal {
			round, err := DoubleElimRound(float64(k.SetNumber))
			if err != nil {
				round = 6
			}
			return []int{1, round, k.MatchNumber, k.SetNumber}
		}
		return []int{1, 0, k.SetNumber, k.MatchNumber}
	}
	return []int{1, k.SetNumber, k.MatchNumber, k.CompLevel.rank()}
}
