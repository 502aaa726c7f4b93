package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/engine/auth"
	"taskflow/internal/lock"
	"taskflow/internal/migrate"
	"taskflow/internal/repo"
	"taskflow/internal/workflow"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	Engine   engine.Engine
	Ctx      context.Context
	Clock    *clock
	Owner    domain.User
	Member   domain.User
	Outsider domain.User
	Project  domain.Project
	Board    domain.Board
	Card     domain.Card
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng, err := engine.New(conn, dialect, config.Default())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	clk := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	eng.Now = clk.Now
	eng.Events.Now = clk.Now

	env := testEnv{Engine: eng, Ctx: ctx, Clock: clk}
	env.Owner = mustUser(t, eng, "Owner", "owner@example.com")
	env.Member = mustUser(t, eng, "Member", "member@example.com")
	env.Outsider = mustUser(t, eng, "Outsider", "outsider@example.com")
	if env.Project, err = eng.CreateProject(ctx, "Website", "", env.Owner.ID); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := eng.AddMember(ctx, env.Project.ID, env.Member.ID, domain.RoleDeveloper, env.Owner.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if env.Board, err = eng.CreateBoard(ctx, env.Project.ID, "Sprint 1", "", env.Owner.ID); err != nil {
		t.Fatalf("create board: %v", err)
	}
	env.Card = env.newCard(t, "Landing page")
	return env
}

func mustUser(t *testing.T, eng engine.Engine, name, email string) domain.User {
	t.Helper()
	u, err := eng.CreateUser(context.Background(), name, email, "")
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (env testEnv) newCard(t *testing.T, title string) domain.Card {
	t.Helper()
	c, err := env.Engine.CreateCard(env.Ctx, engine.CardCreateOptions{BoardID: env.Board.ID, Title: title, ActorID: env.Owner.ID})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	return c
}

func (env testEnv) newSubtask(t *testing.T, cardID, name, status string) domain.Subtask {
	t.Helper()
	s, err := env.Engine.CreateSubtask(env.Ctx, engine.SubtaskCreateOptions{CardID: cardID, Name: name, ActorID: env.Owner.ID})
	if err != nil {
		t.Fatalf("create subtask: %v", err)
	}
	if status != domain.SubtaskTodo {
		if s, err = env.Engine.UpdateSubtaskStatus(env.Ctx, s.ID, status, env.Owner.ID); err != nil {
			t.Fatalf("subtask status: %v", err)
		}
	}
	return s
}

// track runs a timer for d on the card as user and returns the stopped log.
func (env testEnv) track(t *testing.T, userID, cardID string, d time.Duration) engine.StopResult {
	t.Helper()
	res, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: cardID, UserID: userID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	env.Clock.Advance(d)
	stop, err := env.Engine.StopTimer(env.Ctx, res.Log.ID, userID, nil)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	return stop
}

func (env testEnv) card(t *testing.T, id string) domain.Card {
	t.Helper()
	c, err := env.Engine.Repo.GetCard(env.Ctx, id)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	return c
}

func TestStartStopFloorsMinutesAndRecomputesHours(t *testing.T) {
	env := newTestEnv(t)
	start, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, UserID: env.Member.ID, Description: " wireframes "})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.CardStatus != domain.CardInProgress || start.BoardName != "Sprint 1" || start.Log.Description != "wireframes" {
		t.Fatalf("unexpected start result %+v", start)
	}
	if start.Log.StartTime != "2026-03-02T16:00:00+07:00" {
		t.Fatalf("start time not rendered in app zone: %s", start.Log.StartTime)
	}
	env.Clock.Advance(45*time.Minute + 59*time.Second)
	stop, err := env.Engine.StopTimer(env.Ctx, start.Log.ID, env.Member.ID, nil)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stop.Log.DurationMinutes != 45 || stop.Formatted != "45 menit" {
		t.Fatalf("expected floor 45 minutes, got %d (%s)", stop.Log.DurationMinutes, stop.Formatted)
	}
	if stop.Log.Description != "wireframes" {
		t.Fatalf("description lost on stop: %q", stop.Log.Description)
	}
	env.track(t, env.Member.ID, env.Card.ID, 30*time.Minute)
	last := env.track(t, env.Owner.ID, env.Card.ID, 10*time.Minute)
	if last.CardActualHours != 1.42 {
		t.Fatalf("expected 1.42 actual hours, got %v", last.CardActualHours)
	}
	if got := env.card(t, env.Card.ID).ActualHours; got != 1.42 {
		t.Fatalf("stored actual hours %v", got)
	}
}

func TestSecondStopFailsWithoutRecompute(t *testing.T) {
	env := newTestEnv(t)
	stop := env.track(t, env.Member.ID, env.Card.ID, 90*time.Minute)
	env.Clock.Advance(time.Hour)
	_, err := env.Engine.StopTimer(env.Ctx, stop.Log.ID, env.Member.ID, nil)
	if !errors.Is(err, engine.ErrAlreadyStopped) {
		t.Fatalf("expected ErrAlreadyStopped, got %v", err)
	}
	l, err := env.Engine.Repo.GetTimeLog(env.Ctx, stop.Log.ID)
	if err != nil {
		t.Fatal(err)
	}
	if l.DurationMinutes != 90 || env.card(t, env.Card.ID).ActualHours != 1.5 {
		t.Fatalf("second stop changed state: %+v", l)
	}
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, UserID: env.Member.ID})
	if err != nil {
		t.Fatal(err)
	}
	other := env.newCard(t, "Footer")
	_, err = env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: other.ID, UserID: env.Member.ID})
	var tre engine.TimerRunningError
	if !errors.As(err, &tre) {
		t.Fatalf("expected TimerRunningError, got %v", err)
	}
	if tre.LogID != first.Log.ID || tre.CardID != env.Card.ID || tre.CardTitle != "Landing page" {
		t.Fatalf("unexpected blocking log %+v", tre)
	}
	if env.card(t, other.ID).Status != domain.CardTodo {
		t.Fatalf("rejected start must not touch the card")
	}
}

func TestConcurrentStartsLeaveOneOngoing(t *testing.T) {
	env := newTestEnv(t)
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, running := 0, 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, UserID: env.Member.ID})
			var tre engine.TimerRunningError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.As(err, &tre):
				running++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || running != 11 {
		t.Fatalf("expected 1 success and 11 conflicts, got %d and %d", ok, running)
	}
	page, err := env.Engine.ListTimeLogs(env.Ctx, engine.ListOptions{UserID: env.Member.ID, Status: "ongoing"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one ongoing log, got %d", page.Total)
	}
}

func TestConcurrentStopsOnOneCardKeepEveryMinute(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, UserID: env.Member.ID})
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, UserID: env.Owner.ID})
	if err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(60 * time.Minute)
	var wg sync.WaitGroup
	for _, pair := range [][2]string{{a.Log.ID, env.Member.ID}, {b.Log.ID, env.Owner.ID}} {
		wg.Add(1)
		go func(logID, userID string) {
			defer wg.Done()
			if _, err := env.Engine.StopTimer(env.Ctx, logID, userID, nil); err != nil {
				t.Errorf("stop: %v", err)
			}
		}(pair[0], pair[1])
	}
	wg.Wait()
	if got := env.card(t, env.Card.ID).ActualHours; got != 2 {
		t.Fatalf("expected 2 hours, got %v", got)
	}
}

func TestStartTimerWaitsForCardLock(t *testing.T) {
	env := newTestEnv(t)
	sub := env.newSubtask(t, env.Card.ID, "Copy", domain.SubtaskTodo)
	unlock, err := env.Engine.Locks.Lock(env.Ctx, lock.CardKey(env.Card.ID))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(env.Ctx, 50*time.Millisecond)
	defer cancel()
	_, err = env.Engine.StartTimer(ctx, engine.StartOptions{SubtaskID: sub.ID, UserID: env.Member.ID})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("start on a locked card must wait, got %v", err)
	}
	unlock()

	res, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{SubtaskID: sub.ID, UserID: env.Member.ID})
	if err != nil {
		t.Fatalf("start after release: %v", err)
	}
	if res.SubtaskStatus != domain.SubtaskInProgress {
		t.Fatalf("subtask status = %s", res.SubtaskStatus)
	}
}

func TestConcurrentStartAndPromotionKeepCardInvariant(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 10; i++ {
		card := env.newCard(t, "Race")
		sub := env.newSubtask(t, card.ID, "Only", domain.SubtaskTodo)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{SubtaskID: sub.ID, UserID: env.Member.ID}); err != nil {
				t.Errorf("start: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := env.Engine.UpdateSubtaskStatus(env.Ctx, sub.ID, domain.SubtaskDone, env.Owner.ID); err != nil {
				t.Errorf("subtask done: %v", err)
				return
			}
			_, err := env.Engine.UpdateCardStatus(env.Ctx, card.ID, domain.CardReview, env.Owner.ID)
			var ue workflow.UnfinishedSubtasksError
			if err != nil && !errors.As(err, &ue) {
				t.Errorf("promote: %v", err)
			}
		}()
		wg.Wait()

		got := env.card(t, card.ID)
		subs, err := env.Engine.ListSubtasks(env.Ctx, card.ID, env.Owner.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == domain.CardReview {
			for _, s := range subs {
				if s.Status != domain.SubtaskDone {
					t.Fatalf("card in review with subtask %s %s", s.Name, s.Status)
				}
			}
		}
		running, err := env.Engine.Ongoing(env.Ctx, env.Member.ID)
		if err != nil {
			t.Fatal(err)
		}
		if running != nil {
			if _, err := env.Engine.StopTimer(env.Ctx, running.ID, env.Member.ID, nil); err != nil {
				t.Fatalf("stop: %v", err)
			}
		}
	}
}

func TestTimerStartStatusRules(t *testing.T) {
	env := newTestEnv(t)
	done := env.newSubtask(t, env.Card.ID, "copy", domain.SubtaskDone)
	start, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{SubtaskID: done.ID, UserID: env.Member.ID})
	if err != nil {
		t.Fatal(err)
	}
	if start.SubtaskStatus != domain.SubtaskDone {
		t.Fatalf("done subtask must stay done, got %s", start.SubtaskStatus)
	}
	if start.Log.CardID != env.Card.ID {
		t.Fatalf("parent card not resolved from subtask")
	}
	if env.card(t, env.Card.ID).Status != domain.CardTodo {
		t.Fatalf("subtask start must not move the card")
	}
}

func TestTimerStartMovesTodoSubtask(t *testing.T) {
	env := newTestEnv(t)
	todo := env.newSubtask(t, env.Card.ID, "layout", domain.SubtaskTodo)
	start, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, SubtaskID: todo.ID, UserID: env.Member.ID})
	if err != nil {
		t.Fatal(err)
	}
	if start.SubtaskStatus != domain.SubtaskInProgress || start.SubtaskName != "layout" {
		t.Fatalf("unexpected start %+v", start)
	}
	s, _ := env.Engine.Repo.GetSubtask(env.Ctx, todo.ID)
	if s.Status != domain.SubtaskInProgress {
		t.Fatalf("stored subtask status %s", s.Status)
	}
}

func TestCardOnlyStartKeepsReviewAndDone(t *testing.T) {
	for _, status := range []string{domain.CardReview, domain.CardDone} {
		env := newTestEnv(t)
		if _, err := env.Engine.UpdateCardStatus(env.Ctx, env.Card.ID, status, env.Owner.ID); err != nil {
			t.Fatal(err)
		}
		start, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, UserID: env.Member.ID})
		if err != nil {
			t.Fatal(err)
		}
		if start.CardStatus != status || env.card(t, env.Card.ID).Status != status {
			t.Fatalf("%s card moved to %s", status, start.CardStatus)
		}
	}
}

func TestCardPromotionGuard(t *testing.T) {
	env := newTestEnv(t)
	env.newSubtask(t, env.Card.ID, "a", domain.SubtaskDone)
	env.newSubtask(t, env.Card.ID, "b", domain.SubtaskDone)
	open := env.newSubtask(t, env.Card.ID, "c", domain.SubtaskInProgress)

	_, err := env.Engine.UpdateCardStatus(env.Ctx, env.Card.ID, domain.CardReview, env.Member.ID)
	var ue workflow.UnfinishedSubtasksError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnfinishedSubtasksError, got %v", err)
	}
	if len(ue.Unfinished) != 1 || ue.Unfinished[0].ID != open.ID || ue.Total != 3 || ue.Completed() != 2 {
		t.Fatalf("unexpected guard payload %+v", ue)
	}
	if env.card(t, env.Card.ID).Status != domain.CardTodo {
		t.Fatalf("rejected promotion changed status")
	}

	if _, err := env.Engine.UpdateSubtaskStatus(env.Ctx, open.ID, domain.SubtaskDone, env.Member.ID); err != nil {
		t.Fatal(err)
	}
	c, err := env.Engine.UpdateCardStatus(env.Ctx, env.Card.ID, domain.CardDone, env.Member.ID)
	if err != nil || c.Status != domain.CardDone {
		t.Fatalf("promotion after finishing subtasks: %v", err)
	}

	empty := env.newCard(t, "No subtasks")
	if _, err := env.Engine.UpdateCardStatus(env.Ctx, empty.ID, domain.CardDone, env.Member.ID); err != nil {
		t.Fatalf("card without subtasks must reach done: %v", err)
	}
}

func TestSubtaskStatusIsUnrestricted(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSubtask(t, env.Card.ID, "a", domain.SubtaskDone)
	s, err := env.Engine.UpdateSubtaskStatus(env.Ctx, s.ID, domain.SubtaskTodo, env.Member.ID)
	if err != nil || s.Status != domain.SubtaskTodo {
		t.Fatalf("done -> todo: %v", err)
	}
	_, err = env.Engine.UpdateSubtaskStatus(env.Ctx, s.ID, "blocked", env.Member.ID)
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestStartValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{UserID: env.Member.ID})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	other := env.newCard(t, "Other")
	s := env.newSubtask(t, other.ID, "x", domain.SubtaskTodo)
	_, err = env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, SubtaskID: s.ID, UserID: env.Member.ID})
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for foreign subtask, got %v", err)
	}
	_, err = env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: "missing", UserID: env.Member.ID})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNonMemberIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSubtask(t, env.Card.ID, "a", domain.SubtaskTodo)
	out := env.Outsider.ID
	checks := map[string]error{}
	_, checks["start"] = env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, UserID: out})
	_, checks["card status"] = env.Engine.UpdateCardStatus(env.Ctx, env.Card.ID, domain.CardDone, out)
	_, checks["subtask status"] = env.Engine.UpdateSubtaskStatus(env.Ctx, s.ID, domain.SubtaskDone, out)
	_, checks["card totals"] = env.Engine.CardTotals(env.Ctx, env.Card.ID, out)
	_, checks["subtask totals"] = env.Engine.SubtaskTotals(env.Ctx, s.ID, out)
	_, checks["list by card"] = env.Engine.ListTimeLogs(env.Ctx, engine.ListOptions{UserID: out, CardID: env.Card.ID})
	_, checks["card"] = env.Engine.GetCard(env.Ctx, env.Card.ID, out)
	_, checks["report"] = env.Engine.HoursReport(env.Ctx, env.Project.ID, "", "", out)
	_, checks["add member"] = env.Engine.AddMember(env.Ctx, env.Project.ID, out, "", env.Member.ID)
	for name, err := range checks {
		var fe auth.ForbiddenError
		if !errors.As(err, &fe) {
			t.Errorf("%s: expected ForbiddenError, got %v", name, err)
		}
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.AssignCard(env.Ctx, env.Card.ID, env.Outsider.ID, env.Owner.ID); err == nil {
		t.Fatalf("outsider must not be assignable")
	}
	a, err := env.Engine.AssignCard(env.Ctx, env.Card.ID, env.Member.ID, env.Owner.ID)
	if err != nil || a.AssignmentStatus != domain.AssignmentAssigned {
		t.Fatalf("assign: %v", err)
	}
	env.track(t, env.Member.ID, env.Card.ID, 5*time.Minute)
	a, _ = env.Engine.Repo.GetAssignment(env.Ctx, env.Card.ID, env.Member.ID)
	if a.StartedAt == nil || a.CompletedAt == nil || a.AssignmentStatus != domain.AssignmentCompleted {
		t.Fatalf("unexpected assignment after first session %+v", a)
	}
	firstStart := *a.StartedAt
	env.Clock.Advance(time.Hour)
	env.track(t, env.Member.ID, env.Card.ID, 5*time.Minute)
	a, _ = env.Engine.Repo.GetAssignment(env.Ctx, env.Card.ID, env.Member.ID)
	if *a.StartedAt != firstStart {
		t.Fatalf("started_at must be set once, got %s then %s", firstStart, *a.StartedAt)
	}
}

func TestEditAndDeleteTimeLogs(t *testing.T) {
	env := newTestEnv(t)
	first := env.track(t, env.Member.ID, env.Card.ID, 60*time.Minute)
	running, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{CardID: env.Card.ID, UserID: env.Member.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateTimeLog(env.Ctx, running.Log.ID, env.Member.ID, "x"); !errors.Is(err, engine.ErrLogOngoing) {
		t.Fatalf("expected ErrLogOngoing, got %v", err)
	}
	var fe auth.ForbiddenError
	if _, err := env.Engine.UpdateTimeLog(env.Ctx, first.Log.ID, env.Owner.ID, "x"); !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if _, err := env.Engine.StopTimer(env.Ctx, running.Log.ID, env.Owner.ID, nil); !errors.As(err, &fe) {
		t.Fatalf("stop by non-owner: %v", err)
	}
	l, err := env.Engine.UpdateTimeLog(env.Ctx, first.Log.ID, env.Member.ID, "  review notes ")
	if err != nil || l.Description != "review notes" {
		t.Fatalf("update: %v %q", err, l.Description)
	}
	if err := env.Engine.DeleteTimeLog(env.Ctx, first.Log.ID, env.Member.ID); err != nil {
		t.Fatal(err)
	}
	if got := env.card(t, env.Card.ID).ActualHours; got != 0 {
		t.Fatalf("delete must recompute hours, got %v", got)
	}
	if err := env.Engine.DeleteTimeLog(env.Ctx, first.Log.ID, env.Member.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestListTimeLogsPages(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 17; i++ {
		env.track(t, env.Member.ID, env.Card.ID, time.Minute)
	}
	page, err := env.Engine.ListTimeLogs(env.Ctx, engine.ListOptions{UserID: env.Member.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != engine.DefaultPerPage || page.Total != 17 || page.LastPage != 2 {
		t.Fatalf("unexpected first page: %d items, total %d, last %d", len(page.Items), page.Total, page.LastPage)
	}
	page, err = env.Engine.ListTimeLogs(env.Ctx, engine.ListOptions{UserID: env.Member.ID, Page: 2, PerPage: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if page.PerPage != engine.MaxPerPage || len(page.Items) != 0 {
		t.Fatalf("per_page not clamped: %+v", page.PerPage)
	}
	if _, err := env.Engine.ListTimeLogs(env.Ctx, engine.ListOptions{UserID: env.Member.ID, Status: "paused"}); err == nil {
		t.Fatalf("expected status validation error")
	}
	none, err := env.Engine.ListTimeLogs(env.Ctx, engine.ListOptions{UserID: env.Outsider.ID})
	if err != nil || none.Total != 0 {
		t.Fatalf("outsider sees only own logs: %v %d", err, none.Total)
	}
}

func TestTotalsAndReport(t *testing.T) {
	env := newTestEnv(t)
	s := env.newSubtask(t, env.Card.ID, "a", domain.SubtaskTodo)
	start, err := env.Engine.StartTimer(env.Ctx, engine.StartOptions{SubtaskID: s.ID, UserID: env.Member.ID})
	if err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(45 * time.Minute)
	if _, err := env.Engine.StopTimer(env.Ctx, start.Log.ID, env.Member.ID, nil); err != nil {
		t.Fatal(err)
	}
	env.track(t, env.Owner.ID, env.Card.ID, 40*time.Minute)

	sub, err := env.Engine.SubtaskTotals(env.Ctx, s.ID, env.Owner.ID)
	if err != nil || sub.TotalMinutes != 45 || sub.LogCount != 1 {
		t.Fatalf("subtask totals %+v %v", sub, err)
	}
	card, err := env.Engine.CardTotals(env.Ctx, env.Card.ID, env.Member.ID)
	if err != nil || card.TotalMinutes != 85 || card.TotalHours != 1.42 || card.Formatted != "1 jam 25 menit" {
		t.Fatalf("card totals %+v %v", card, err)
	}

	rep, err := env.Engine.HoursReport(env.Ctx, env.Project.ID, "2026-03-02", "2026-03-02", env.Member.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalMinutes != 85 || len(rep.Users) != 2 || rep.Users[0].UserID != env.Member.ID {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(rep.Cards) != 1 || rep.Cards[0].ActualHours != 1.42 {
		t.Fatalf("unexpected card rows %+v", rep.Cards)
	}
	later, err := env.Engine.HoursReport(env.Ctx, env.Project.ID, "2026-03-03", "", env.Member.ID)
	if err != nil || later.TotalMinutes != 0 || later.Cards[0].LogCount != 0 {
		t.Fatalf("date filter ignored: %+v %v", later, err)
	}
	if _, err := env.Engine.HoursReport(env.Ctx, env.Project.ID, "03/02/2026", "", env.Member.ID); err == nil {
		t.Fatalf("expected bad date error")
	}
}
