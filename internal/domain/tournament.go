package domain

import "time"

// ArbitrationWinner identifies which side of a match the arbiter chose.
type ArbitrationWinner string

const (
	// WinnerA selects the first prediction of the match.
	WinnerA ArbitrationWinner = "A"
	// WinnerB selects the second prediction of the match.
	WinnerB ArbitrationWinner = "B"
)

// ArbitrationResult is the arbiter's ruling on a single match: a winner,
// a free-text rationale, and a bounded confidence adjustment applied to
// the winning prediction.
type ArbitrationResult struct {
	Winner ArbitrationWinner `json:"winner"`

	// Rationale explains the ruling. Rationales are retained per
	// contributor and inspected for templated reasoning after the final
	// round.
	Rationale string `json:"rationale"`

	// ConfidenceDelta is added to the winner's confidence and is expected
	// to stay within the arbiter's configured bounds (e.g. [-0.2, 0.2]).
	ConfidenceDelta float64 `json:"confidence_delta"`
}

// TournamentMatch pairs two predictions inside an elimination round.
// Winner stays nil until the match has been arbitrated.
type TournamentMatch struct {
	A Prediction `json:"a"`
	B Prediction `json:"b"`

	// Winner is the arbitrated winner with its confidence adjustment
	// already applied and clamped.
	Winner *Prediction `json:"winner,omitempty"`

	// Rationale is the arbiter's reasoning for this match.
	Rationale string `json:"rationale,omitempty"`

	// ConfidenceDelta is the adjustment that was applied to the winner.
	ConfidenceDelta float64 `json:"confidence_delta"`

	// Fallback marks matches that were resolved by the deterministic
	// confidence comparison because arbitration failed or timed out.
	Fallback bool `json:"fallback,omitempty"`
}

// TournamentRound is one stage of the single-elimination bracket.
// Rounds form a progression from N contestants down to one champion;
// round n+1 is built from round n's winners plus any bye.
type TournamentRound struct {
	// Number is the 1-based round index.
	Number int `json:"number"`

	// Bye holds the contestant advanced directly to the next round when
	// the round started with an odd contestant count.
	Bye *Prediction `json:"bye,omitempty"`

	// Matches are the pairings arbitrated in this round. Matches within
	// a round are independent and may run concurrently.
	Matches []*TournamentMatch `json:"matches"`

	// Winners are the contestants advancing to the next round, bye
	// included.
	Winners []Prediction `json:"winners"`
}

// TournamentRecord summarizes one completed tournament for the bounded
// history kept by the tournament strategy.
type TournamentRecord struct {
	Participants int       `json:"participants"`
	Rounds       int       `json:"rounds"`
	Matches      int       `json:"matches"`
	ChampionID   string    `json:"champion_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// ContributorStats reports a contributor's accumulated tournament
// performance over its bounded win/loss history.
type ContributorStats struct {
	// Matches is the number of recorded matches for the contributor.
	Matches int `json:"matches"`
	// Wins counts recorded match wins.
	Wins int `json:"wins"`
	// WinRate is Wins over Matches across the full recorded history.
	WinRate float64 `json:"win_rate"`
	// RecentWinRate is the win rate over the most recent ten matches.
	RecentWinRate float64 `json:"recent_win_rate"`
	// Trend is RecentWinRate minus WinRate; positive values indicate a
	// contributor that has been improving.
	Trend float64 `json:"trend"`
}
