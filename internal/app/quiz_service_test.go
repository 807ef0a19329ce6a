package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"team-quiz-service/internal/app"
	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/grading"
	"team-quiz-service/internal/infra/memory"
	"team-quiz-service/internal/logger"
)

func TestSubmitAnswerGradesAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	service, repo := newTestService(t, sampleTeams("Red", "Blue"))

	events, cancel := service.Subscribe(8)
	defer cancel()

	records, err := service.SubmitAnswer(ctx, "Red", map[int]string{0: "  Paris ", 1: "madrid"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(records) != 2 || records[0].Rating != 1 || records[1].Rating != 0 {
		t.Fatalf("unexpected records: %+v", records)
	}
	if *records[0].Answer != "paris" {
		t.Fatalf("expected normalized answer, got %q", *records[0].Answer)
	}
	if repo.Saves() != 1 {
		t.Fatalf("expected one snapshot write, got %d", repo.Saves())
	}

	ev := <-events
	if ev.Msg != domain.MsgAnswersChanged || ev.QuestionID != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSubmitAnswerMissingSubanswerIsAtomic(t *testing.T) {
	ctx := context.Background()
	service, repo := newTestService(t, sampleTeams("Red"))

	if _, err := service.SubmitAnswer(ctx, "Red", map[int]string{0: "Paris", 1: "Rome"}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	_, err := service.SubmitAnswer(ctx, "Red", map[int]string{0: "Lyon"})
	if !errors.Is(err, domain.ErrMissingSubanswer) {
		t.Fatalf("expected ErrMissingSubanswer, got %v", err)
	}

	view, err := service.TeamState("Red")
	if err != nil {
		t.Fatalf("team state: %v", err)
	}
	if *view.Answers[0].Answer != "paris" || *view.Answers[1].Answer != "rome" {
		t.Fatalf("expected previous answers untouched, got %+v", view.Answers)
	}
	if repo.Saves() != 1 {
		t.Fatalf("expected no extra snapshot write, got %d", repo.Saves())
	}
}

func TestSubmitAnswerInvalidFormatIsAtomic(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, sampleTeams("Red"))

	if err := service.SetActiveQuestion(ctx, 3); err != nil {
		t.Fatalf("set active: %v", err)
	}
	_, err := service.SubmitAnswer(ctx, "Red", map[int]string{0: "01:00", 1: "2:30 PM"})
	if !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}

	view, _ := service.TeamState("Red")
	for idx, rec := range view.Answers {
		if rec.Answer != nil {
			t.Fatalf("subquestion %d should be unset, got %q", idx, *rec.Answer)
		}
	}
}

func TestSubmitAnswerRespectsGate(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, sampleTeams("Red"))

	service.SetSubmissionOpen(ctx, false)
	_, err := service.SubmitAnswer(ctx, "Red", map[int]string{0: "Paris", 1: "Rome"})
	if !errors.Is(err, domain.ErrSubmissionClosed) {
		t.Fatalf("expected ErrSubmissionClosed, got %v", err)
	}

	service.SetSubmissionOpen(ctx, true)
	if _, err := service.SubmitAnswer(ctx, "Red", map[int]string{0: "Paris", 1: "Rome"}); err != nil {
		t.Fatalf("submit after reopening: %v", err)
	}
}

func TestSubmitAnswerUnknownTeam(t *testing.T) {
	service, _ := newTestService(t, sampleTeams("Red"))
	_, err := service.SubmitAnswer(context.Background(), "Green", map[int]string{0: "a", 1: "b"})
	if !errors.Is(err, domain.ErrUnknownTeam) {
		t.Fatalf("expected ErrUnknownTeam, got %v", err)
	}
}

func TestSetActiveQuestionRejectsUnknownID(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, sampleTeams("Red"))

	events, cancel := service.Subscribe(8)
	defer cancel()

	if err := service.SetActiveQuestion(ctx, 42); !errors.Is(err, domain.ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
	if got := service.State().ActiveQuestionID; got != 1 {
		t.Fatalf("expected active question to stay 1, got %d", got)
	}

	if err := service.SetActiveQuestion(ctx, 2); err != nil {
		t.Fatalf("set active: %v", err)
	}
	ev := <-events
	if ev.Msg != domain.MsgActiveQuestionChanged || ev.QuestionID != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if service.ActiveQuestion().ID != 2 {
		t.Fatalf("expected question 2 active")
	}
}

func TestSetSubmissionOpenBroadcastsGate(t *testing.T) {
	service, _ := newTestService(t, sampleTeams("Red"))
	events, cancel := service.Subscribe(8)
	defer cancel()

	service.SetSubmissionOpen(context.Background(), false)
	ev := <-events
	if ev.Msg != domain.MsgSubmissionGateChanged || ev.Open == nil || *ev.Open {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if service.State().SubmissionOpen {
		t.Fatalf("expected gate closed")
	}
}

func TestSetRatingKeepsValue(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t, sampleTeams("Red"))

	if _, err := service.SubmitAnswer(ctx, "Red", map[int]string{0: "Paree", 1: "Rome"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.SetRating(ctx, 1, "Red", 0, 1); err != nil {
		t.Fatalf("set rating: %v", err)
	}
	view, _ := service.TeamState("Red")
	if *view.Answers[0].Answer != "paree" || view.Answers[0].Rating != 1 {
		t.Fatalf("unexpected record after override: %+v", view.Answers[0])
	}

	if err := service.SetRating(ctx, 1, "Red", 7, 1); !errors.Is(err, domain.ErrUnknownSubquestion) {
		t.Fatalf("expected ErrUnknownSubquestion, got %v", err)
	}
	if err := service.SetRating(ctx, 99, "Red", 0, 1); !errors.Is(err, domain.ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestConcurrentSubmissionsAreAllStored(t *testing.T) {
	ctx := context.Background()
	const n = 24
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("team-%02d", i)
	}
	service, _ := newTestService(t, sampleTeams(names...))

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, name := range names {
		wg.Add(1)
		go func(team string) {
			defer wg.Done()
			_, err := service.SubmitAnswer(ctx, team, map[int]string{0: "Paris", 1: team})
			errs <- err
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	answers, err := service.Answers(1)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	stored := 0
	for team, recs := range answers {
		if recs[0].Answer != nil && recs[1].Answer != nil && *recs[1].Answer == team {
			stored++
		}
	}
	if stored != n {
		t.Fatalf("expected %d stored submissions, got %d", n, stored)
	}
}

func TestScoreboardStableOnTies(t *testing.T) {
	service, _ := newTestService(t, sampleTeams("Alpha", "Bravo", "Charlie"))

	// Bravo: 3, Charlie: 5, Alpha: 5.
	mustRate(t, service, 2, "Bravo", 0, 3)
	mustRate(t, service, 2, "Charlie", 0, 5)
	mustRate(t, service, 2, "Alpha", 0, 4)
	mustRate(t, service, 1, "Alpha", 0, 1)

	board := service.Scoreboard()
	got := []string{board[0].Team, board[1].Team, board[2].Team}
	want := []string{"Alpha", "Charlie", "Bravo"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if board[0].Total != 5 || board[1].Total != 5 || board[2].Total != 3 {
		t.Fatalf("unexpected totals: %+v", board)
	}
	if len(board[0].Questions) != 3 || board[0].Questions[0].Ratings[0] != 1 {
		t.Fatalf("unexpected per-question ratings: %+v", board[0].Questions)
	}
}

func TestJoinTeamChecksToken(t *testing.T) {
	teams := []domain.Team{{Name: "Red", Token: "r3d"}, {Name: "Blue"}}
	service, _ := newTestService(t, teams)

	if err := service.JoinTeam("Red", "r3d"); err != nil {
		t.Fatalf("join with token: %v", err)
	}
	if err := service.JoinTeam("Red", "nope"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := service.JoinTeam("Blue", ""); err != nil {
		t.Fatalf("join without token: %v", err)
	}
	if err := service.JoinTeam("Green", ""); !errors.Is(err, domain.ErrUnknownTeam) {
		t.Fatalf("expected ErrUnknownTeam, got %v", err)
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	service, repo := newTestService(t, sampleTeams("Red"))

	repo.FailWith(errors.New("disk full"))
	if _, err := service.SubmitAnswer(ctx, "Red", map[int]string{0: "Paris", 1: "Rome"}); err == nil {
		t.Fatalf("expected persistence error")
	}
	view, _ := service.TeamState("Red")
	if view.Answers[0].Answer != nil {
		t.Fatalf("expected in-memory record to be rolled back")
	}
}

func mustRate(t *testing.T, s *app.QuizService, qid int, team string, idx, rating int) {
	t.Helper()
	if err := s.SetRating(context.Background(), qid, team, idx, rating); err != nil {
		t.Fatalf("set rating %d/%s/%d: %v", qid, team, idx, err)
	}
}

func newTestService(t *testing.T, teams []domain.Team) (*app.QuizService, *memory.SnapshotRepository) {
	t.Helper()
	repo := memory.NewSnapshotRepository()
	catalog := sampleCatalog()
	store, err := app.NewAnswerStore(context.Background(), catalog, teams, repo, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	service, err := app.NewQuizService(app.Options{
		Catalog:        catalog,
		Teams:          teams,
		Tolerance:      grading.Tolerance{OnePoint: 0.10, TwoPoint: 0.05},
		SubmissionOpen: true,
		Store:          store,
		Logger:         logger.Discard(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, repo
}

func sampleTeams(names ...string) []domain.Team {
	teams := make([]domain.Team, 0, len(names))
	for _, n := range names {
		teams = append(teams, domain.Team{Name: n})
	}
	return teams
}

func sampleCatalog() domain.Catalog {
	return domain.Catalog{
		Questions: []domain.Question{
			{
				ID:   1,
				Type: domain.TypeText,
				Text: "Capitals",
				Subquestions: []domain.Subquestion{
					{Text: "France", Answer: "Paris"},
					{Text: "Italy", Answer: "Rome"},
				},
			},
			{
				ID:           2,
				Type:         domain.TypeNumber,
				Text:         "Estimate",
				Subquestions: []domain.Subquestion{{Text: "How many?", Answer: "100"}},
			},
			{
				ID:   3,
				Type: domain.TypeTime,
				Text: "When?",
				Subquestions: []domain.Subquestion{
					{Text: "Start", Answer: "01:00:00"},
					{Text: "End", Answer: "02:00"},
				},
			},
		},
	}
}
