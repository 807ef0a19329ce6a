package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"sync"

	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/grading"
	"team-quiz-service/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Options configures a QuizService.
type Options struct {
	Catalog        domain.Catalog
	Teams          []domain.Team
	Tolerance      grading.Tolerance
	SubmissionOpen bool
	Store          *AnswerStore
	Broadcaster    *Broadcaster
	Logger         *logrus.Logger
	Metrics        *metrics.Metrics
}

// QuizService owns the shared quiz state: the active question, the submission
// gate and the answer table. All writes are serialized by mu.
type QuizService struct {
	mu    sync.RWMutex
	state domain.SessionState

	catalog domain.Catalog
	teams   []domain.Team
	tol     grading.Tolerance
	store   *AnswerStore
	hub     *Broadcaster
	log     *logrus.Logger
	metrics *metrics.Metrics
}

func NewQuizService(opts Options) (*QuizService, error) {
	if len(opts.Catalog.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", domain.ErrInvalidCatalog)
	}
	if opts.Store == nil {
		return nil, errors.New("answer store is required")
	}
	if err := opts.Tolerance.Validate(); err != nil {
		return nil, err
	}
	hub := opts.Broadcaster
	if hub == nil {
		hub = NewBroadcaster(opts.Logger, opts.Metrics)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &QuizService{
		state: domain.SessionState{
			ActiveQuestionID: opts.Catalog.Questions[0].ID,
			SubmissionOpen:   opts.SubmissionOpen,
		},
		catalog: opts.Catalog,
		teams:   opts.Teams,
		tol:     opts.Tolerance,
		store:   opts.Store,
		hub:     hub,
		log:     log,
		metrics: opts.Metrics,
	}, nil
}

// Broadcaster exposes the live client registry to the transport layer.
func (s *QuizService) Broadcaster() *Broadcaster {
	return s.hub
}

// Subscribe registers an in-process listener for change events.
func (s *QuizService) Subscribe(buffer int) (<-chan domain.Event, func()) {
	return s.hub.Subscribe(buffer)
}

// Teams returns the configured team names in configuration order.
func (s *QuizService) Teams() []string {
	names := make([]string, 0, len(s.teams))
	for _, t := range s.teams {
		names = append(names, t.Name)
	}
	return names
}

// JoinTeam checks that team exists and, when it has a join token, that token matches.
func (s *QuizService) JoinTeam(team, token string) error {
	t, ok := s.team(team)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownTeam, team)
	}
	if t.Token != "" && subtle.ConstantTimeCompare([]byte(t.Token), []byte(token)) != 1 {
		return domain.ErrInvalidToken
	}
	return nil
}

// State returns a copy of the session state.
func (s *QuizService) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ActiveQuestion returns the currently active question.
func (s *QuizService) ActiveQuestion() domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, _ := s.catalog.Question(s.state.ActiveQuestionID)
	return q
}

// Catalog returns the loaded catalog.
func (s *QuizService) Catalog() domain.Catalog {
	return s.catalog
}

// SubmitAnswer grades a team's answers for the active question. answers maps
// subquestion index to the raw input. The submission is all-or-nothing: any
// missing or unparsable subanswer rejects it without touching stored records.
func (s *QuizService) SubmitAnswer(ctx context.Context, team string, answers map[int]string) ([]domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.submitLocked(ctx, team, answers)
	if err != nil {
		s.metrics.Submission(submissionResult(err))
		s.log.WithFields(logrus.Fields{
			"team":        team,
			"question_id": s.state.ActiveQuestionID,
			"error":       err.Error(),
		}).Info("submission rejected")
		return nil, err
	}
	s.metrics.Submission("accepted")
	s.log.WithFields(logrus.Fields{"team": team, "question_id": s.state.ActiveQuestionID}).Info("answers stored")
	s.hub.Broadcast(domain.AnswersChanged(s.state.ActiveQuestionID))
	return records, nil
}

func (s *QuizService) submitLocked(ctx context.Context, team string, answers map[int]string) ([]domain.AnswerRecord, error) {
	if _, ok := s.team(team); !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTeam, team)
	}
	if !s.state.SubmissionOpen {
		return nil, domain.ErrSubmissionClosed
	}
	q, ok := s.catalog.Question(s.state.ActiveQuestionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownQuestion, s.state.ActiveQuestionID)
	}

	for idx := range q.Subquestions {
		if _, ok := answers[idx]; !ok {
			return nil, fmt.Errorf("%w: %d", domain.ErrMissingSubanswer, idx)
		}
	}

	results := make(map[int]grading.Result, len(q.Subquestions))
	for idx, sq := range q.Subquestions {
		res, err := grading.Grade(q.Type, answers[idx], sq.Answer, s.tol)
		if err != nil {
			return nil, fmt.Errorf("subquestion %d: %w", idx, err)
		}
		results[idx] = res
	}

	if err := s.store.SetAnswers(ctx, q.ID, team, results); err != nil {
		return nil, err
	}
	return s.store.ForTeam(q.ID, team)
}

// SetActiveQuestion switches the active question and notifies live clients.
func (s *QuizService) SetActiveQuestion(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog.Question(id); !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownQuestion, id)
	}
	s.state.ActiveQuestionID = id
	s.metrics.AdminAction("set_active_question")
	s.log.WithField("question_id", id).Info("active question changed")
	s.hub.Broadcast(domain.ActiveQuestionChanged(id))
	return nil
}

// SetSubmissionOpen opens or closes the submission gate and notifies live clients.
func (s *QuizService) SetSubmissionOpen(_ context.Context, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.SubmissionOpen = open
	s.metrics.AdminAction("set_submission_open")
	s.log.WithField("open", open).Info("submission gate changed")
	s.hub.Broadcast(domain.SubmissionGateChanged(open))
}

// SetRating overrides the rating of one stored answer.
func (s *QuizService) SetRating(ctx context.Context, questionID int, team string, idx, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetRating(ctx, questionID, team, idx, rating); err != nil {
		return err
	}
	s.metrics.AdminAction("set_rating")
	s.log.WithFields(logrus.Fields{
		"question_id": questionID,
		"team":        team,
		"subquestion": idx,
		"rating":      rating,
	}).Info("rating overridden")
	s.hub.Broadcast(domain.AnswersChanged(questionID))
	return nil
}

// TeamState returns what a team needs to render its page: the active question,
// the gate and the team's last answers for it.
func (s *QuizService) TeamState(team string) (domain.TeamView, error) {
	if _, ok := s.team(team); !ok {
		return domain.TeamView{}, fmt.Errorf("%w: %q", domain.ErrUnknownTeam, team)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q, _ := s.catalog.Question(s.state.ActiveQuestionID)
	answers, err := s.store.ForTeam(q.ID, team)
	if err != nil {
		return domain.TeamView{}, err
	}
	return domain.TeamView{
		Team:           team,
		Question:       q.Public(),
		SubmissionOpen: s.state.SubmissionOpen,
		Answers:        answers,
	}, nil
}

// Answers returns all teams' records for a question.
func (s *QuizService) Answers(questionID int) (map[string][]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ForQuestion(questionID)
}

// Scoreboard sums every team's ratings. Rows are sorted by total descending; ties
// keep the configured team order.
func (s *QuizService) Scoreboard() []domain.ScoreboardRow {
	s.mu.RLock()
	snap := s.store.Snapshot()
	s.mu.RUnlock()

	return buildScoreboard(s.catalog, s.teams, snap)
}

func buildScoreboard(catalog domain.Catalog, teams []domain.Team, snap domain.Snapshot) []domain.ScoreboardRow {
	rows := make([]domain.ScoreboardRow, 0, len(teams))
	for _, t := range teams {
		row := domain.ScoreboardRow{
			Team:      t.Name,
			Questions: make([]domain.QuestionRatings, 0, len(catalog.Questions)),
		}
		for _, q := range catalog.Questions {
			ratings := make([]int, len(q.Subquestions))
			subs := snap[q.ID][t.Name]
			for idx := range q.Subquestions {
				ratings[idx] = subs[idx].Rating
				row.Total += ratings[idx]
			}
			row.Questions = append(row.Questions, domain.QuestionRatings{QuestionID: q.ID, Ratings: ratings})
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total > rows[j].Total
	})
	return rows
}

func (s *QuizService) team(name string) (domain.Team, bool) {
	for _, t := range s.teams {
		if t.Name == name {
			return t, true
		}
	}
	return domain.Team{}, false
}

func submissionResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrSubmissionClosed):
		return "closed"
	case errors.Is(err, domain.ErrMissingSubanswer):
		return "missing"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "invalid"
	case errors.Is(err, domain.ErrUnknownTeam):
		return "unknown_team"
	}
	return "error"
}
