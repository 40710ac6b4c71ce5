// Package progress implements the gamification progression manager:
// cumulative XP with a derived level, interview/module counters, a
// running average score, achievements, and badges.
package progress

// levelTier is one row of the fixed level table. MaxXP is the exclusive
// upper bound of cumulative XP for the tier; the last tier is unbounded.
type levelTier struct {
	Name  string
	MaxXP int
}

// levelTable maps cumulative XP to levels. Level is always recomputed
// from XP; it is never trusted from a persisted record.
var levelTable = []levelTier{
	{"Rookie", 100},
	{"Learner", 250},
	{"Candidate", 500},
	{"Contender", 1000},
	{"Performer", 2000},
	{"Achiever", 3500},
	{"Specialist", 5500},
	{"Expert", 8000},
	{"Master", 11500},
	{"Legend", 0}, // unbounded
}

// LevelForXP derives the level number (1-based), tier name, and XP
// remaining to the next tier from cumulative XP. The last tier reports
// zero XP-to-next.
func LevelForXP(totalXP int) (level int, name string, xpToNext int) {
	for i, tier := range levelTable {
		if i == len(levelTable)-1 || totalXP < tier.MaxXP {
			level = i + 1
			name = tier.Name
			if i < len(levelTable)-1 {
				xpToNext = tier.MaxXP - totalXP
			}
			return level, name, xpToNext
		}
	}
	// Unreachable: the last tier is unbounded.
	last := len(levelTable) - 1
	return last + 1, levelTable[last].Name, 0
}
