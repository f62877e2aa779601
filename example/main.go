package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/config"
	"github.com/meikuraledutech/flow/handle"
	"github.com/meikuraledutech/flow/postgres"
	"github.com/meikuraledutech/flow/push"
	"github.com/meikuraledutech/flow/session"
	"github.com/meikuraledutech/flow/sqlite"
	"github.com/meikuraledutech/flow/version"
)

func main() {
	ctx := context.Background()
	cfg := config.FromEnv()
	logger := cfg.Logger(os.Stderr)

	// Postgres when DATABASE_URL is set, otherwise a throwaway sqlite file.
	var store flow.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	} else {
		dir, err := os.MkdirTemp("", "flow-example")
		if err != nil {
			log.Fatal(err)
		}
		defer os.RemoveAll(dir)
		s, err := sqlite.Open(filepath.Join(dir, "flow.db"))
		if err != nil {
			log.Fatalf("open: %v", err)
		}
		defer s.Close()
		store = s
	}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	hub := push.NewHub(logger)
	s := session.New(store,
		session.WithLogger(logger),
		session.WithConfirmer(version.AlwaysConfirm),
		session.WithPublisher(printer{hub}),
		session.WithViewportThreshold(cfg.ViewportThreshold),
	)
	if err := s.Load(ctx, "onboarding-flow"); err != nil {
		log.Fatalf("load: %v", err)
	}
	if err := s.StartRealtime(ctx, cfg.RealtimeInterval); err != nil {
		log.Fatalf("realtime: %v", err)
	}
	defer s.StopRealtime()

	// ── Build a graph with temporary ids ──────────────────────────────
	start := must(s.AddNode(flow.Node{Type: flow.NodeInput, Data: flow.NodeData{Label: "Collect answers"}}))
	check := must(s.AddNode(flow.Node{
		Type:     flow.NodeCondition,
		Position: flow.Position{X: 250},
		Data: flow.NodeData{
			Label: "Is developer?",
			BranchNodes: map[string]flow.BranchConfig{
				"yes": {Name: "yes", Condition: "role == 'developer'"},
				"no":  {Name: "no", Condition: "role != 'developer'"},
			},
		},
	}))
	dev := must(s.AddNode(flow.Node{Type: flow.NodeTaskGenerator, Position: flow.Position{X: 500, Y: -100}, Data: flow.NodeData{Label: "Dev tasks"}}))
	end := must(s.AddNode(flow.Node{Type: flow.NodeTerminal, Position: flow.Position{X: 750}, Data: flow.NodeData{Label: "Done"}}))

	connect(s, start.ID+":start-output", check.ID+":condition-input")
	connect(s, check.ID+":branch:yes", dev.ID+":task-input")
	connect(s, check.ID+":branch:no", end.ID+":end-input")
	connect(s, dev.ID+":task-output", end.ID+":end-input")

	// A rejected proposal: the start node already has its output.
	_, res, err := s.Connect(flow.Connection{
		Source: start.ID, Target: end.ID,
		SourceHandle: start.ID + ":start-output", TargetHandle: end.ID + ":end-input",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nproposal rejected: %s\n", res.Reason)

	// ── Save: temporary ids become persisted ones ─────────────────────
	resp, err := s.Save(ctx)
	if err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("\nsaved version %d\n", resp.Version)
	printJSON(resp.NodeIDMapping)

	// ── Edit and save again ───────────────────────────────────────────
	for _, n := range s.Nodes() {
		if n.Type == flow.NodeTaskGenerator {
			if err := s.UpdateNode(n.ID, func(n *flow.Node) { n.Data.Prompt = "List onboarding tasks" }); err != nil {
				log.Fatal(err)
			}
		}
	}
	fmt.Println("\npending changes:")
	printJSON(s.Diff().Summary())
	// let the realtime ticker broadcast the pending diff
	time.Sleep(2 * cfg.RealtimeInterval)
	if resp, err = s.Save(ctx); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("saved version %d\n", resp.Version)

	// ── Viewport: small moves are not persisted ────────────────────────
	for _, vp := range []flow.Viewport{
		{X: 120, Y: 40, Zoom: 1},
		{X: 120 + cfg.ViewportThreshold/2, Y: 40, Zoom: 1},
		{X: 300, Y: 40, Zoom: 1.5},
	} {
		saved, err := s.SaveViewportIfChanged(ctx, vp)
		if err != nil {
			log.Fatalf("viewport: %v", err)
		}
		fmt.Printf("viewport %+v saved: %v\n", vp, saved)
	}

	// ── Browse history ────────────────────────────────────────────────
	if err := s.Undo(ctx); err != nil {
		log.Fatalf("undo: %v", err)
	}
	if err := s.Undo(ctx); err != nil {
		log.Fatalf("undo: %v", err)
	}
	fmt.Printf("\nshowing version %d, unsaved changes: %v\n", s.CurrentVersion(), s.HasUnsavedChanges())
	if err := s.Redo(ctx); err != nil {
		log.Fatalf("redo: %v", err)
	}
	if err := s.Redo(ctx); err != nil {
		log.Fatalf("redo: %v", err)
	}
	fmt.Printf("back at head: %v\n", s.CurrentVersion() == 0)

	g, err := s.Graph()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("\nfinal graph:")
	printJSON(g)
}

// printer echoes every realtime event before handing it to the hub.
type printer struct{ hub *push.Hub }

func (p printer) Publish(ctx context.Context, topic string, payload any) error {
	if ev, ok := payload.(session.DiffEvent); ok {
		fmt.Printf("realtime %s: %+v\n", topic, ev.Summary)
	}
	return p.hub.Publish(ctx, topic, payload)
}

func connect(s *session.Session, sourceHandle, targetHandle string) {
	src, tgt := nodeOf(sourceHandle), nodeOf(targetHandle)
	_, res, err := s.Connect(flow.Connection{Source: src, Target: tgt, SourceHandle: sourceHandle, TargetHandle: targetHandle})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	if !res.Allowed {
		log.Fatalf("connect %s -> %s: %s", sourceHandle, targetHandle, res.Reason)
	}
}

func nodeOf(handleID string) string {
	id, err := handle.Parse(handleID)
	if err != nil {
		log.Fatal(err)
	}
	return id.NodeID
}

func must(n flow.Node, err error) flow.Node {
	if err != nil {
		log.Fatal(err)
	}
	return n
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
