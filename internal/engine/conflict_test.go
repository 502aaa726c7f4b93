package engine

import (
	"context"
	"testing"

	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/migrate"
)

func TestRunningConflictNamesTheBlockingLog(t *testing.T) {
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn, dialect); err != nil {
		t.Fatal(err)
	}
	e, err := New(conn, dialect, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	u, err := e.CreateUser(ctx, "Dev", "dev@example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := e.CreateProject(ctx, "Website", "", u.ID)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.CreateBoard(ctx, p.ID, "Sprint", "", u.ID)
	if err != nil {
		t.Fatal(err)
	}
	c, err := e.CreateCard(ctx, CardCreateOptions{BoardID: b.ID, Title: "Checkout", ActorID: u.ID})
	if err != nil {
		t.Fatal(err)
	}

	if got := e.runningConflict(ctx, u.ID); got.LogID != "" {
		t.Fatalf("no log running, got %+v", got)
	}
	res, err := e.StartTimer(ctx, StartOptions{CardID: c.ID, UserID: u.ID})
	if err != nil {
		t.Fatal(err)
	}
	got := e.runningConflict(ctx, u.ID)
	if got.LogID != res.Log.ID || got.CardID != c.ID || got.CardTitle != "Checkout" {
		t.Fatalf("conflict = %+v, want log %s on %s", got, res.Log.ID, c.ID)
	}
}
