package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/meikuraledutech/flowedit"
	"github.com/meikuraledutech/flowedit/memory"
)

func main() {
	ctx := context.Background()

	// In-memory stores; swap in postgres.New(pool) for real persistence.
	store := memory.NewStore()

	session, err := flowedit.NewSession(ctx, "loan-approval", "demo", store, store,
		flowedit.WithViewport(flowedit.Position{X: 400, Y: 300}))
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	// ── Add a task ────────────────────────────────────────────────────
	result, err := session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID:          "sug-1",
		Type:        flowedit.SuggestAddTask,
		Description: "Add an approval step",
		Details:     flowedit.SuggestionDetails{Name: "Approve Request"},
	})
	if err != nil {
		log.Fatalf("add task: %v", err)
	}
	fmt.Println(result.Detail)
	taskID := result.CreatedOrModifiedID

	// ── Add a gateway next to the task ────────────────────────────────
	result, err = session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID:              "sug-2",
		Type:            flowedit.SuggestAddGateway,
		TargetElementID: taskID,
		Details:         flowedit.SuggestionDetails{GatewayType: "parallel", Name: "Fan out"},
	})
	if err != nil {
		log.Fatalf("add gateway: %v", err)
	}
	fmt.Println(result.Detail)

	// ── Try to change a task into a gateway — rejected ────────────────
	result, _ = session.ApplySuggestion(ctx, flowedit.Suggestion{
		ID:              "sug-3",
		Type:            flowedit.SuggestChangeGateway,
		TargetElementID: taskID,
		Details:         flowedit.SuggestionDetails{NewGatewayType: "inclusive"},
	})
	fmt.Printf("rejected: %s (%s)\n", result.Detail, result.ErrorKind)

	// ── Undo, then redo the gateway ───────────────────────────────────
	if _, err := session.Undo(ctx); err != nil {
		log.Fatalf("undo: %v", err)
	}
	fmt.Println("undone")
	if _, err := session.Redo(ctx); err != nil {
		log.Fatalf("redo: %v", err)
	}
	fmt.Println("redone")

	// ── Version history ───────────────────────────────────────────────
	versions, err := store.History(ctx, "loan-approval")
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	fmt.Printf("\nversions (%d):\n", len(versions))
	for _, v := range versions {
		fmt.Printf("  v%d [%s] %s\n", v.VersionNumber, v.Provenance, v.ChangeSummary)
	}

	// ── Audit trail ───────────────────────────────────────────────────
	entries, err := store.Entries(ctx, "loan-approval")
	if err != nil {
		log.Fatalf("audit: %v", err)
	}
	fmt.Printf("\naudit (%d):\n", len(entries))
	for _, e := range entries {
		out, _ := json.Marshal(e.Details)
		fmt.Printf("  %s %s %s\n", e.ActionType, e.Outcome, string(out))
	}
}
