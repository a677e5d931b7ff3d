package encoder

import "rsc.io/qr/coding"

// Penalty weights from ISO/IEC 18004 section 7.8.3.
const (
	penaltyRun     = 3  // N1, plus one per module beyond five
	penaltyBlock   = 3  // N2, per 2x2 block
	penaltyFinder  = 40 // N3, per finder-like pattern
	penaltyBalance = 10 // N4, per 5% deviation from half dark
)

// penalty scores a masked symbol; lower is better.
func penalty(c *coding.Code) int {
	n := c.Size
	dark := c.Black

	score := 0

	// Rule 1: runs of five or more same-coloured modules, rows then columns.
	for i := 0; i < n; i++ {
		score += runPenalty(n, func(j int) bool { return dark(j, i) })
		score += runPenalty(n, func(j int) bool { return dark(i, j) })
	}

	// Rule 2: 2x2 blocks of one colour.
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			v := dark(x, y)
			if dark(x+1, y) == v && dark(x, y+1) == v && dark(x+1, y+1) == v {
				score += penaltyBlock
			}
		}
	}

	// Rule 3: 1:1:3:1:1 finder-like pattern with four light modules on
	// either side.
	for i := 0; i < n; i++ {
		score += finderPenalty(n, func(j int) bool { return dark(j, i) })
		score += finderPenalty(n, func(j int) bool { return dark(i, j) })
	}

	// Rule 4: proportion of dark modules.
	total, darkCount := n*n, 0
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if dark(x, y) {
				darkCount++
			}
		}
	}
	score += balancePenalty(darkCount, total)

	return score
}

// balancePenalty scores each full 5% step the dark share is away from 50%.
func balancePenalty(darkCount, total int) int {
	diff := darkCount*100 - total*50
	if diff < 0 {
		diff = -diff
	}
	return diff / (total * 5) * penaltyBalance
}

func runPenalty(n int, at func(int) bool) int {
	score, run := 0, 1
	for j := 1; j <= n; j++ {
		if j < n && at(j) == at(j-1) {
			run++
			continue
		}
		if run >= 5 {
			score += penaltyRun + run - 5
		}
		run = 1
	}
	return score
}

var (
	finderLeading  = [11]bool{true, false, true, true, true, false, true, false, false, false, false}
	finderTrailing = [11]bool{false, false, false, false, true, false, true, true, true, false, true}
)

func finderPenalty(n int, at func(int) bool) int {
	score := 0
	for j := 0; j+11 <= n; j++ {
		if matches(at, j, finderLeading) {
			score += penaltyFinder
		}
		if matches(at, j, finderTrailing) {
			score += penaltyFinder
		}
	}
	return score
}

func matches(at func(int) bool, start int, pattern [11]bool) bool {
	for k, want := range pattern {
		if at(start+k) != want {
			return false
		}
	}
	return true
}
