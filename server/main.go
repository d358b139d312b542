package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/flowedit"
	"github.com/meikuraledutech/flowedit/postgres"
)

// sessionEntry serializes all operations on one diagram. Edits are
// single-actor and sequential per session; the lock is the caller-side
// serialization the engine expects.
type sessionEntry struct {
	mu      sync.Mutex
	session *flowedit.Session
}

type sessionManager struct {
	mu       sync.Mutex
	entries  map[string]*sessionEntry
	versions flowedit.VersionStore
	audit    flowedit.AuditLog
	logger   *slog.Logger
}

func newSessionManager(versions flowedit.VersionStore, audit flowedit.AuditLog, logger *slog.Logger) *sessionManager {
	return &sessionManager{
		entries:  make(map[string]*sessionEntry),
		versions: versions,
		audit:    audit,
		logger:   logger,
	}
}

// with runs fn under the diagram's session lock, creating the session on
// first use.
func (m *sessionManager) with(ctx context.Context, diagramID string, actor flowedit.ActorID, fn func(*flowedit.Session) error) error {
	m.mu.Lock()
	entry, ok := m.entries[diagramID]
	if !ok {
		entry = &sessionEntry{}
		m.entries[diagramID] = entry
	}
	m.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session == nil {
		session, err := flowedit.NewSession(ctx, diagramID, actor, m.versions, m.audit,
			flowedit.WithLogger(m.logger))
		if err != nil {
			return err
		}
		entry.session = session
	}
	return fn(entry.session)
}

type applyRequest struct {
	Suggestion flowedit.Suggestion `json:"suggestion"`
	Viewport   *flowedit.Position  `json:"viewport,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.New(pool)
	sessions := newSessionManager(store, store, logger)

	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	// ── Suggestions ───────────────────────────────────────────────────
	app.Post("/diagrams/:id/suggestions", func(c fiber.Ctx) error {
		var req applyRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := req.Suggestion.Validate(); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		var result flowedit.MutationResult
		err := sessions.with(c.Context(), c.Params("id"), actorFrom(c), func(s *flowedit.Session) error {
			if req.Viewport != nil {
				s.SetViewport(*req.Viewport)
			}
			var applyErr error
			result, applyErr = s.ApplySuggestion(c.Context(), req.Suggestion)
			return applyErr
		})
		if err != nil {
			return c.Status(statusFor(err)).JSON(result)
		}
		return c.JSON(result)
	})

	// ── Undo / redo ───────────────────────────────────────────────────
	app.Post("/diagrams/:id/undo", func(c fiber.Ctx) error {
		return historyStep(c, sessions, func(ctx context.Context, s *flowedit.Session) (flowedit.MutationResult, error) {
			return s.Undo(ctx)
		})
	})

	app.Post("/diagrams/:id/redo", func(c fiber.Ctx) error {
		return historyStep(c, sessions, func(ctx context.Context, s *flowedit.Session) (flowedit.MutationResult, error) {
			return s.Redo(ctx)
		})
	})

	// ── Version history ───────────────────────────────────────────────
	app.Get("/diagrams/:id/versions", func(c fiber.Ctx) error {
		versions, err := store.History(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(versions)
	})

	app.Get("/diagrams/:id/versions/latest", func(c fiber.Ctx) error {
		v, err := store.Latest(c.Context(), c.Params("id"))
		if errors.Is(err, flowedit.ErrVersionNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "diagram not found"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(v)
	})

	// ── Activity feed ─────────────────────────────────────────────────
	app.Get("/diagrams/:id/audit", func(c fiber.Ctx) error {
		entries, err := store.Entries(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(entries)
	})

	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logger.Error("listen", "error", err)
		os.Exit(1)
	}
}

func historyStep(c fiber.Ctx, sessions *sessionManager, step func(context.Context, *flowedit.Session) (flowedit.MutationResult, error)) error {
	var result flowedit.MutationResult
	err := sessions.with(c.Context(), c.Params("id"), actorFrom(c), func(s *flowedit.Session) error {
		var stepErr error
		result, stepErr = step(c.Context(), s)
		return stepErr
	})
	// Empty history is a user-facing no-op, not a failure.
	if errors.Is(err, flowedit.ErrEmptyHistory) || errors.Is(err, flowedit.ErrEmptyRedoStack) {
		return c.JSON(result)
	}
	if err != nil {
		return c.Status(statusFor(err)).JSON(result)
	}
	return c.JSON(result)
}

func actorFrom(c fiber.Ctx) flowedit.ActorID {
	if actor := c.Get("X-Actor-Id"); actor != "" {
		return flowedit.ActorID(actor)
	}
	return "api"
}

// statusFor maps engine sentinels to HTTP statuses so every failure is
// specific and actionable.
func statusFor(err error) int {
	switch {
	case errors.Is(err, flowedit.ErrTargetNotFound), errors.Is(err, flowedit.ErrVersionNotFound):
		return 404
	case errors.Is(err, flowedit.ErrInvalidTargetType),
		errors.Is(err, flowedit.ErrAmbiguousSplice),
		errors.Is(err, flowedit.ErrDanglingReference),
		errors.Is(err, flowedit.ErrNoRootElement),
		errors.Is(err, flowedit.ErrSerialization):
		return 422
	case errors.Is(err, flowedit.ErrVersionConflict):
		return 409
	default:
		return 500
	}
}
