package keywords

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyTable    = errors.New("team table has no teams")
	ErrEmptyCode     = errors.New("team code is empty")
	ErrDuplicateCode = errors.New("duplicate team code")
)

// Team maps a team code to the names fans use for it.
type Team struct {
	Code    string   `yaml:"code"`
	Aliases []string `yaml:"aliases"`
}

// Table is an ordered team alias table. Order matters: it decides which
// casing of a shared alias wins in Index.
type Table []Team

// DefaultTeams is the built-in MLB alias table.
var DefaultTeams = Table{
	{Code: "NYY", Aliases: []string{"Yankees", "NYY", "NY Yankees", "Bronx Bombers"}},
	{Code: "NYM", Aliases: []string{"Mets", "NYM", "NY Mets", "Amazins"}},
	{Code: "BOS", Aliases: []string{"Red Sox", "BOS", "BoSox", "Sox (Boston)"}},
	{Code: "BAL", Aliases: []string{"Orioles", "BAL", "O's", "Birdland"}},
	{Code: "TBR", Aliases: []string{"Rays", "Tampa Bay Rays", "TBR"}},
	{Code: "TOR", Aliases: []string{"Blue Jays", "Jays", "TOR"}},
	{Code: "PHI", Aliases: []string{"Phillies", "PHI", "Phils"}},
	{Code: "ATL", Aliases: []string{"Braves", "ATL", "Atlanta Braves"}},
	{Code: "MIA", Aliases: []string{"Marlins", "MIA", "Miami Marlins", "Fish"}},
	{Code: "WSN", Aliases: []string{"Nationals", "Nats", "WSH", "WSN"}},
	{Code: "CHC", Aliases: []string{"Cubs", "CHC", "Chicago Cubs", "Cubbies"}},
	{Code: "STL", Aliases: []string{"Cardinals", "STL", "Cards", "Redbirds"}},
	{Code: "MIL", Aliases: []string{"Brewers", "MIL", "Crew", "Brew Crew"}},
	{Code: "PIT", Aliases: []string{"Pirates", "PIT", "Bucs", "Buccos"}},
	{Code: "CIN", Aliases: []string{"Reds", "CIN", "Cincinnati Reds", "Redlegs"}},
	{Code: "LAD", Aliases: []string{"Dodgers", "LAD", "LA Dodgers", "Blue Crew"}},
	{Code: "SFG", Aliases: []string{"Giants", "SFG", "SF Giants"}},
	{Code: "SDP", Aliases: []string{"Padres", "SDP", "Friars"}},
	{Code: "ARI", Aliases: []string{"Diamondbacks", "D-backs", "ARI", "Snakes"}},
	{Code: "COL", Aliases: []string{"Rockies", "COL", "Colorado Rockies", "Rox"}},
	{Code: "HOU", Aliases: []string{"Astros", "HOU", "Houston Astros", "Stros"}},
	{Code: "TEX", Aliases: []string{"Rangers", "TEX", "Texas Rangers"}},
	{Code: "SEA", Aliases: []string{"Mariners", "SEA", "Ms", "M's"}},
	{Code: "OAK", Aliases: []string{"Athletics", "A's", "OAK", "Oakland A's"}},
	{Code: "LAA", Aliases: []string{"Angels", "LAA", "LA Angels", "Halos"}},
	{Code: "MIN", Aliases: []string{"Twins", "MIN", "Minnesota Twins"}},
	{Code: "KCR", Aliases: []string{"Royals", "KCR", "KC Royals"}},
	{Code: "CLE", Aliases: []string{"Guardians", "CLE", "Cleveland Guardians"}},
	{Code: "CHW", Aliases: []string{"White Sox", "CHW", "ChiSox", "Sox (Chicago)"}},
	{Code: "DET", Aliases: []string{"Tigers", "DET", "Detroit Tigers"}},
}

// Validate reports empty or repeated team codes.
func (t Table) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTable
	}
	seen := make(map[string]struct{}, len(t))
	for i, team := range t {
		code := strings.TrimSpace(team.Code)
		if code == "" {
			return fmt.Errorf("%w: team[%d]", ErrEmptyCode, i)
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, code)
		}
		seen[code] = struct{}{}
	}
	return nil
}

// LoadTable reads a YAML team table in list form:
//
//	- code: NYY
//	  aliases: [Yankees, NYY, Bronx Bombers]
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read team table: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse team table: %w", err)
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid team table %s: %w", path, err)
	}
	return table, nil
}
