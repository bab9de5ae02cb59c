package matcher

import "strings"

// Team alias data per sport key. Abbreviation and city aliases expand the
// short forms prediction-market titles favor ("BOS", "Toronto") into the
// canonical names bookmakers quote.

var nbaTeams = map[string]string{
	"ATL": "Atlanta Hawks",
	"BOS": "Boston Celtics",
	"BKN": "Brooklyn Nets",
	"CHA": "Charlotte Hornets",
	"CHI": "Chicago Bulls",
	"CLE": "Cleveland Cavaliers",
	"DAL": "Dallas Mavericks",
	"DEN": "Denver Nuggets",
	"DET": "Detroit Pistons",
	"GSW": "Golden State Warriors",
	"HOU": "Houston Rockets",
	"IND": "Indiana Pacers",
	"LAC": "Los Angeles Clippers",
	"LAL": "Los Angeles Lakers",
	"MEM": "Memphis Grizzlies",
	"MIA": "Miami Heat",
	"MIL": "Milwaukee Bucks",
	"MIN": "Minnesota Timberwolves",
	"NOP": "New Orleans Pelicans",
	"NYK": "New York Knicks",
	"OKC": "Oklahoma City Thunder",
	"ORL": "Orlando Magic",
	"PHI": "Philadelphia 76ers",
	"PHX": "Phoenix Suns",
	"POR": "Portland Trail Blazers",
	"SAC": "Sacramento Kings",
	"SAS": "San Antonio Spurs",
	"TOR": "Toronto Raptors",
	"UTA": "Utah Jazz",
	"WAS": "Washington Wizards",
}

var nhlTeams = map[string]string{
	"ANA": "Anaheim Ducks",
	"BOS": "Boston Bruins",
	"BUF": "Buffalo Sabres",
	"CGY": "Calgary Flames",
	"CAR": "Carolina Hurricanes",
	"CHI": "Chicago Blackhawks",
	"COL": "Colorado Avalanche",
	"CBJ": "Columbus Blue Jackets",
	"DAL": "Dallas Stars",
	"DET": "Detroit Red Wings",
	"EDM": "Edmonton Oilers",
	"FLA": "Florida Panthers",
	"LAK": "Los Angeles Kings",
	"MIN": "Minnesota Wild",
	"MTL": "Montreal Canadiens",
	"NSH": "Nashville Predators",
	"NJD": "New Jersey Devils",
	"NYI": "New York Islanders",
	"NYR": "New York Rangers",
	"OTT": "Ottawa Senators",
	"PHI": "Philadelphia Flyers",
	"PIT": "Pittsburgh Penguins",
	"SJS": "San Jose Sharks",
	"SEA": "Seattle Kraken",
	"STL": "St. Louis Blues",
	"TBL": "Tampa Bay Lightning",
	"TOR": "Toronto Maple Leafs",
	"UTA": "Utah Hockey Club",
	"VAN": "Vancouver Canucks",
	"VGK": "Vegas Golden Knights",
	"WSH": "Washington Capitals",
	"WPG": "Winnipeg Jets",
}

var eplTeams = []string{
	"Arsenal",
	"Aston Villa",
	"Bournemouth",
	"Brentford",
	"Brighton and Hove Albion",
	"Chelsea",
	"Crystal Palace",
	"Everton",
	"Fulham",
	"Leeds United",
	"Liverpool",
	"Manchester City",
	"Manchester United",
	"Newcastle United",
	"Nottingham Forest",
	"Sunderland",
	"Tottenham Hotspur",
	"West Ham United",
	"Wolverhampton Wanderers",
	"Burnley",
}

// Hand-picked aliases that neither abbreviation nor city expansion covers.
var extraAliases = map[string]string{
	"man city": "Manchester City",
	"man utd":  "Manchester United",
	"man u":    "Manchester United",
	"spurs":    "Tottenham Hotspur",
	"wolves":   "Wolverhampton Wanderers",
	"cavs":     "Cleveland Cavaliers",
	"sixers":   "Philadelphia 76ers",
	"habs":     "Montreal Canadiens",
	"bolts":    "Tampa Bay Lightning",
	"knights":  "Vegas Golden Knights",
	"jackets":  "Columbus Blue Jackets",
	"wings":    "Detroit Red Wings",
	"blazers":  "Portland Trail Blazers",
}

// aliasIndexes maps sport key -> normalized alias -> canonical team name.
var aliasIndexes = map[string]map[string]string{}

func init() {
	register := func(sport string, abbr map[string]string, canonical []string) {
		idx := aliasIndexes[sport]
		if idx == nil {
			idx = make(map[string]string)
			aliasIndexes[sport] = idx
		}
		add := func(alias, team string) {
			key := normalizeName(alias)
			if key == "" {
				return
			}
			// Shared city prefixes ("new york", "los angeles") identify
			// more than one team; an ambiguous alias is worse than none.
			if existing, ok := idx[key]; ok && existing != team {
				idx[key] = ""
				return
			}
			idx[key] = team
		}
		for a, team := range abbr {
			add(a, team)
			canonical = append(canonical, team)
		}
		for _, team := range canonical {
			add(team, team)
			fields := strings.Fields(normalizeName(team))
			if len(fields) > 1 {
				// nickname ("maple leafs" last token) and city prefix
				add(fields[len(fields)-1], team)
				add(strings.Join(fields[:len(fields)-1], " "), team)
			}
		}
		for alias, team := range extraAliases {
			if _, known := idx[normalizeName(team)]; known {
				add(alias, team)
			}
		}
	}

	register("basketball_nba", nbaTeams, nil)
	register("icehockey_nhl", nhlTeams, nil)
	register("soccer_epl", nil, eplTeams)
}

// expandAlias resolves a short team reference to its canonical name for the
// sport. Unknown names are returned unchanged.
func expandAlias(sport, name string) string {
	idx := aliasIndexes[sport]
	if idx == nil {
		return name
	}
	if team, ok := idx[normalizeName(name)]; ok && team != "" {
		return team
	}
	return name
}
