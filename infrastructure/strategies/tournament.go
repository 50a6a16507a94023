package strategies

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

var _ ports.Strategy = (*TournamentStrategy)(nil)

// minConsistencyTokenLen filters rationale tokens down to substantive
// words; short function words carry no templating signal.
const minConsistencyTokenLen = 6

// TournamentConfig defines the configuration parameters for the
// TournamentStrategy. All fields are validated during strategy creation
// and parameter unmarshaling.
type TournamentConfig struct {
	// Task is the original question the predictions answer. It is passed
	// verbatim to the arbiter as ruling context.
	Task string `yaml:"task" json:"task"`

	// ArbitrationTimeout bounds each arbitration call. A match whose
	// arbitration exceeds the timeout is resolved by the deterministic
	// confidence-comparison fallback instead of blocking the round.
	// Zero disables the per-match timeout.
	//
	// Default: 30s.
	ArbitrationTimeout time.Duration `yaml:"arbitration_timeout" json:"arbitration_timeout" validate:"min=0"`

	// MaxConcurrency caps the number of matches arbitrated concurrently
	// within a round. Rounds themselves are strictly sequential.
	//
	// Default: 4.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"min=1,max=64"`

	// MaxConfidenceDelta clamps the arbiter's confidence adjustment to
	// [-MaxConfidenceDelta, +MaxConfidenceDelta].
	//
	// Default: 0.2.
	MaxConfidenceDelta float64 `yaml:"max_confidence_delta" json:"max_confidence_delta" validate:"min=0,max=1"`

	// ConsistencyPenalty scales the confidence reduction applied to a
	// champion whose winning rationales show low lexical diversity,
	// a signal of templated rather than reasoned arbitration.
	//
	// Default: 0.1.
	ConsistencyPenalty float64 `yaml:"consistency_penalty" json:"consistency_penalty" validate:"min=0,max=1"`

	// WinnerBoost is the flat confidence bonus granted to the champion
	// for surviving the bracket.
	//
	// Default: 0.05.
	WinnerBoost float64 `yaml:"winner_boost" json:"winner_boost" validate:"min=0,max=1"`

	// HistorySize caps the retained tournament records.
	//
	// Default: 50.
	HistorySize int `yaml:"history_size" json:"history_size" validate:"min=1"`

	// StatsHistorySize caps the per-contributor win/loss history.
	//
	// Default: 100.
	StatsHistorySize int `yaml:"stats_history_size" json:"stats_history_size" validate:"min=1"`
}

// DefaultTournamentConfig returns the production tournament parameters.
func DefaultTournamentConfig() TournamentConfig {
	return TournamentConfig{
		ArbitrationTimeout: 30 * time.Second,
		MaxConcurrency:     4,
		MaxConfidenceDelta: 0.2,
		ConsistencyPenalty: 0.1,
		WinnerBoost:        0.05,
		HistorySize:        50,
		StatsHistorySize:   100,
	}
}

// TournamentStrategy selects a consensus by single-elimination: the
// predictions are seeded into a bracket, each pairing is ruled on by
// the arbiter, and winners advance round by round until one champion
// remains. Matches within a round are arbitrated concurrently under a
// bounded fan-out; rounds are sequential because each bracket depends
// on the previous round's winners.
//
// Arbitration failures and timeouts never abort the tournament: the
// affected match falls back to a deterministic confidence comparison
// and the fallback is logged.
//
// The strategy accumulates tournament and per-contributor win/loss
// histories, so a single instance must not serve concurrent Aggregate
// calls.
type TournamentStrategy struct {
	name    string
	config  TournamentConfig
	arbiter ports.Arbiter
	logger  *zap.Logger
	// rng seeds the bracket shuffle; injectable for reproducible
	// brackets.
	rng *rand.Rand

	history    *domain.History[domain.TournamentRecord]
	stats      map[string]*domain.History[bool]
	lastRounds []domain.TournamentRound
}

// NewTournamentStrategy creates a TournamentStrategy with the specified
// configuration and arbiter. A nil logger falls back to a no-op logger
// and a nil rng to an unseeded source.
func NewTournamentStrategy(name string, config TournamentConfig, arbiter ports.Arbiter, logger *zap.Logger, rng *rand.Rand) (*TournamentStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	if arbiter == nil {
		return nil, ErrNilArbiter
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &TournamentStrategy{
		name:    name,
		config:  config,
		arbiter: arbiter,
		logger:  logger.With(zap.String("strategy", name)),
		rng:     rng,
		history: domain.NewHistory[domain.TournamentRecord](config.HistorySize),
		stats:   make(map[string]*domain.History[bool]),
	}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *TournamentStrategy) Name() string { return s.name }

// Validate reports whether the strategy is ready for execution.
func (s *TournamentStrategy) Validate() error {
	if s.arbiter == nil {
		return ErrNilArbiter
	}
	return validate.Struct(s.config)
}

// UnmarshalParameters decodes YAML configuration and replaces the
// tournament parameters after validation. History capacities are fixed
// at construction and keep their existing buffers.
func (s *TournamentStrategy) UnmarshalParameters(params yaml.Node) error {
	config := s.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// History returns the retained tournament records, oldest first.
func (s *TournamentStrategy) History() []domain.TournamentRecord {
	return s.history.Items()
}

// LastRounds returns the full bracket of the most recent tournament.
func (s *TournamentStrategy) LastRounds() []domain.TournamentRound {
	out := make([]domain.TournamentRound, len(s.lastRounds))
	copy(out, s.lastRounds)
	return out
}

// ContributorStats reports the given contributor's win/loss record over
// its bounded match history.
func (s *TournamentStrategy) ContributorStats(contributorID string) domain.ContributorStats {
	h, ok := s.stats[contributorID]
	if !ok || h.Len() == 0 {
		return domain.ContributorStats{}
	}

	outcomes := h.Items()
	wins := 0
	for _, won := range outcomes {
		if won {
			wins++
		}
	}
	winRate := float64(wins) / float64(len(outcomes))

	recent := h.Recent(10)
	recentWins := 0
	for _, won := range recent {
		if won {
			recentWins++
		}
	}
	recentRate := float64(recentWins) / float64(len(recent))

	return domain.ContributorStats{
		Matches:       len(outcomes),
		Wins:          wins,
		WinRate:       winRate,
		RecentWinRate: recentRate,
		Trend:         recentRate - winRate,
	}
}

// Aggregate runs the full elimination bracket and returns the champion
// under the "tournament_winner_<contributor>" consensus ID.
func (s *TournamentStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if err := checkInput(predictions); err != nil {
		return domain.Prediction{}, err
	}
	if len(predictions) == 1 {
		return predictions[0], nil
	}

	contestants := make([]domain.Prediction, len(predictions))
	copy(contestants, predictions)

	var rounds []domain.TournamentRound
	rationales := make(map[string][]string)
	totalMatches := 0

	for len(contestants) > 1 {
		round, err := s.runRound(ctx, len(rounds)+1, contestants)
		if err != nil {
			return domain.Prediction{}, err
		}
		rounds = append(rounds, *round)
		totalMatches += len(round.Matches)

		for _, m := range round.Matches {
			won := m.Winner.ContributorID
			s.recordOutcome(m.A.ContributorID, m.A.ContributorID == won)
			s.recordOutcome(m.B.ContributorID, m.B.ContributorID == won)
			if !m.Fallback && m.Rationale != "" {
				rationales[won] = append(rationales[won], m.Rationale)
			}
		}
		contestants = round.Winners
	}

	champion := contestants[0]
	repetition := rationaleRepetition(rationales[champion.ContributorID])
	if repetition > 0 {
		s.logger.Info("champion rationales show repetition, applying consistency penalty",
			zap.String("champion", champion.ContributorID),
			zap.Float64("repetition", repetition))
	}

	confidence := champion.Confidence -
		repetition*s.config.ConsistencyPenalty +
		s.config.WinnerBoost

	s.lastRounds = rounds
	s.history.Append(domain.TournamentRecord{
		Participants: len(predictions),
		Rounds:       len(rounds),
		Matches:      totalMatches,
		ChampionID:   champion.ContributorID,
		Timestamp:    time.Now(),
	})

	return domain.Prediction{
		ContributorID: ConsensusTournamentPrefix + champion.ContributorID,
		Value:         champion.Value,
		Confidence:    domain.ClampConfidence(confidence),
	}, nil
}

// runRound builds and arbitrates one round: an odd contestant count
// grants the highest-confidence contestant a bye, the rest are shuffled
// and paired, and the matches run concurrently under the configured
// fan-out limit.
func (s *TournamentStrategy) runRound(ctx context.Context, number int, contestants []domain.Prediction) (*domain.TournamentRound, error) {
	round := &domain.TournamentRound{Number: number}

	remaining := make([]domain.Prediction, len(contestants))
	copy(remaining, contestants)

	if len(remaining)%2 == 1 {
		byeIdx := 0
		for i, p := range remaining[1:] {
			if p.Confidence > remaining[byeIdx].Confidence {
				byeIdx = i + 1
			}
		}
		bye := remaining[byeIdx]
		round.Bye = &bye
		remaining = append(remaining[:byeIdx], remaining[byeIdx+1:]...)
	}

	s.rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	for i := 0; i+1 < len(remaining); i += 2 {
		round.Matches = append(round.Matches, &domain.TournamentMatch{
			A: remaining[i],
			B: remaining[i+1],
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrency)
	for _, match := range round.Matches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.resolveMatch(gctx, round.Number, match)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tournament round %d canceled: %w", number, err)
	}

	if round.Bye != nil {
		round.Winners = append(round.Winners, *round.Bye)
	}
	for _, m := range round.Matches {
		round.Winners = append(round.Winners, *m.Winner)
	}
	return round, nil
}

// resolveMatch arbitrates a single match, falling back to confidence
// comparison when arbitration errors, times out, or returns an invalid
// winner. The fallback never fails, so a match always has a winner.
func (s *TournamentStrategy) resolveMatch(ctx context.Context, roundNumber int, match *domain.TournamentMatch) {
	mctx := ctx
	if s.config.ArbitrationTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, s.config.ArbitrationTimeout)
		defer cancel()
	}

	result, err := s.arbiter.Arbitrate(mctx, match.A, match.B, s.config.Task)
	if err == nil && result.Winner != domain.WinnerA && result.Winner != domain.WinnerB {
		err = fmt.Errorf("arbiter returned invalid winner %q", result.Winner)
	}
	if err != nil {
		winner := match.A
		if match.B.Confidence > match.A.Confidence {
			winner = match.B
		}
		match.Winner = &winner
		match.Fallback = true
		match.Rationale = "resolved by confidence comparison after arbitration failure"
		s.logger.Warn("arbitration failed, resolving match by confidence comparison",
			zap.Int("round", roundNumber),
			zap.String("a", match.A.ContributorID),
			zap.String("b", match.B.ContributorID),
			zap.Error(err))
		return
	}

	delta := result.ConfidenceDelta
	if delta > s.config.MaxConfidenceDelta {
		delta = s.config.MaxConfidenceDelta
	}
	if delta < -s.config.MaxConfidenceDelta {
		delta = -s.config.MaxConfidenceDelta
	}

	chosen := match.A
	if result.Winner == domain.WinnerB {
		chosen = match.B
	}
	adjusted := chosen.WithConfidence(chosen.Confidence + delta)
	match.Winner = &adjusted
	match.Rationale = result.Rationale
	match.ConfidenceDelta = delta
}

// recordOutcome appends a win/loss to the contributor's bounded
// history, creating it on first sight.
func (s *TournamentStrategy) recordOutcome(contributorID string, won bool) {
	h, ok := s.stats[contributorID]
	if !ok {
		h = domain.NewHistory[bool](s.config.StatsHistorySize)
		s.stats[contributorID] = h
	}
	h.Append(won)
}

// rationaleRepetition measures the lexical repetitiveness of a
// contributor's winning rationales as 1 - unique/total over folded
// substantive tokens. One rationale (or none) yields 0: repetition only
// means something across rulings.
func rationaleRepetition(rationales []string) float64 {
	if len(rationales) < 2 {
		return 0
	}
	// Case folding so "Clearly" and "clearly" count as one token.
	// A Caser is stateful, so build one per call rather than sharing.
	folder := cases.Fold()
	total := 0
	unique := make(map[string]struct{})
	for _, r := range rationales {
		for _, tok := range strings.Fields(r) {
			if len(tok) < minConsistencyTokenLen {
				continue
			}
			folded := folder.String(tok)
			total++
			unique[folded] = struct{}{}
		}
	}
	if total == 0 {
		return 0
	}
	return 1 - float64(len(unique))/float64(total)
}
