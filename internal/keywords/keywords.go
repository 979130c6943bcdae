// Package keywords builds the search vocabulary and the ordered list of
// (forum, keyword) search tasks a collection run works through.
package keywords

import "strings"

// DefaultForums are the subreddits searched when no override is given.
var DefaultForums = []string{
	"baseball", "mlb", "fantasybaseball",
	"nyyankees", "Mets", "redsox", "orioles", "raysbaseball",
	"phillies", "Braves", "Nats", "letsgofish",
	"Dodgers", "SFGiants", "Padres", "azdiamondbacks", "ColoradoRockies",
	"Astros", "TexasRangers", "Mariners", "OaklandAthletics", "angelsbaseball",
	"minnesotatwins", "kansascityroyals", "clevelandguardians", "ChWhiteSox", "motorcitykitties",
	"chicubs", "cardinals", "Brewers", "bucs", "reds",
}

// Task is one search unit: a keyword searched within one forum.
type Task struct {
	Forum   string
	Keyword string
}

// Index returns the search keywords for a run. A non-empty override is used
// verbatim. Otherwise every alias in table order is returned once, compared
// case-insensitively, keeping the casing of its first occurrence.
func Index(table Table, override []string) []string {
	if len(override) > 0 {
		return clone(override)
	}

	seen := make(map[string]struct{})
	var kws []string
	for _, team := range table {
		for _, alias := range team.Aliases {
			lower := strings.ToLower(alias)
			if _, ok := seen[lower]; ok {
				continue
			}
			seen[lower] = struct{}{}
			kws = append(kws, alias)
		}
	}
	return kws
}

// Forums returns override when non-empty, otherwise DefaultForums. The result
// is always a copy.
func Forums(override []string) []string {
	if len(override) > 0 {
		return clone(override)
	}
	return clone(DefaultForums)
}

// Tasks expands forums and keywords into search tasks, forum outer and
// keyword inner, so all of a forum's tasks run back to back.
func Tasks(forums, keywords []string) []Task {
	tasks := make([]Task, 0, len(forums)*len(keywords))
	for _, forum := range forums {
		for _, kw := range keywords {
			tasks = append(tasks, Task{Forum: forum, Keyword: kw})
		}
	}
	return tasks
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
