package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jwebster45206/story-state/internal/events"
	"github.com/jwebster45206/story-state/pkg/command"
	"github.com/jwebster45206/story-state/pkg/queue"
	"github.com/jwebster45206/story-state/pkg/session"
	"github.com/jwebster45206/story-state/pkg/state"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type GameStateHandler struct {
	registry  *Registry
	publisher events.Publisher
	logger    *slog.Logger
}

// NewGameStateHandler creates the game state handler. publisher may be nil.
func NewGameStateHandler(registry *Registry, publisher events.Publisher, logger *slog.Logger) *GameStateHandler {
	return &GameStateHandler{
		registry:  registry,
		publisher: publisher,
		logger:    logger,
	}
}

// ServeHTTP handles HTTP requests for game state operations
// Routes:
// POST   /v1/gamestate                          - Create new game state
// GET    /v1/gamestate/{id}                     - Read canonical state
// DELETE /v1/gamestate/{id}                     - Delete game state
// POST   /v1/gamestate/{id}/commands            - Apply a confirmed command batch
// GET    /v1/gamestate/{id}/preview             - Project the pending queue
// POST   /v1/gamestate/{id}/preview             - Project an in-flight batch plus the queue
// GET    /v1/gamestate/{id}/queue               - List pending actions
// POST   /v1/gamestate/{id}/queue               - Enqueue a pending action
// DELETE /v1/gamestate/{id}/queue/{entryID}     - Withdraw a pending action
func (h *GameStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/gamestate"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	gameStateID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid game state ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid game state ID format")
		return
	}

	s, err := h.registry.Get(r.Context(), gameStateID)
	if err != nil {
		h.logger.Error("Failed to load game state", "game_id", gameStateID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load game state")
		return
	}
	if s == nil {
		h.writeError(w, http.StatusNotFound, "Game state not found")
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.writeJSON(w, http.StatusOK, s.Snapshot())
		case http.MethodDelete:
			h.handleDelete(w, r, s)
		default:
			h.methodNotAllowed(w, r, "GET, DELETE")
		}

	case len(parts) == 2 && parts[1] == "commands":
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleCommands(w, r, s)

	case len(parts) == 2 && parts[1] == "preview":
		switch r.Method {
		case http.MethodGet:
			h.writePreview(w, s, s.Preview())
		case http.MethodPost:
			h.handlePreviewInFlight(w, r, s)
		default:
			h.methodNotAllowed(w, r, "GET, POST")
		}

	case len(parts) == 2 && parts[1] == "queue":
		switch r.Method {
		case http.MethodGet:
			h.writeJSON(w, http.StatusOK, QueueResponse{Entries: s.Queue().List()})
		case http.MethodPost:
			h.handleEnqueue(w, r, s)
		default:
			h.methodNotAllowed(w, r, "GET, POST")
		}

	case len(parts) == 3 && parts[1] == "queue":
		if r.Method != http.MethodDelete {
			h.methodNotAllowed(w, r, "DELETE")
			return
		}
		h.handleWithdraw(w, r, s, parts[2])

	default:
		h.writeError(w, http.StatusNotFound, "Unknown game state route")
	}
}

// CreateGameStateRequest defines the request body for creating a new game
// state. An empty body or missing state starts from an empty tree.
type CreateGameStateRequest struct {
	State state.GameState `json:"state,omitempty"`
}

func (h *GameStateHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req CreateGameStateRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.logger.Warn("Invalid create request body", "error", err)
			h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	s, err := h.registry.Create(r.Context(), req.State)
	if err != nil {
		h.logger.Error("Failed to create game state", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to create game state")
		return
	}

	h.logger.Info("Created game state", "game_id", s.ID())
	h.writeJSON(w, http.StatusCreated, s.Snapshot())
}

func (h *GameStateHandler) handleDelete(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := h.registry.Delete(r.Context(), s.ID()); err != nil {
		h.logger.Error("Failed to delete game state", "game_id", s.ID(), "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete game state")
		return
	}
	h.logger.Info("Deleted game state", "game_id", s.ID())
	w.WriteHeader(http.StatusNoContent)
}

// CommandsRequest carries one narrator-confirmed batch and the queue entries
// it covers.
type CommandsRequest struct {
	Commands []command.Command `json:"commands"`
	Retire   []string          `json:"retire,omitempty"`
}

// CommandFailure describes one command that could not be applied.
type CommandFailure struct {
	Index   int             `json:"index"`
	Command command.Command `json:"command"`
	Kind    string          `json:"kind"`
	Error   string          `json:"error"`
}

type CommandsResponse struct {
	Turn     int              `json:"turn"`
	Applied  int              `json:"applied"`
	Failures []CommandFailure `json:"failures"`
	Stopped  bool             `json:"stopped,omitempty"`
}

func (h *GameStateHandler) handleCommands(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req CommandsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid commands request body", "game_id", s.ID(), "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.registry.Confirm(r.Context(), s, req.Commands, req.Retire...)
	if errors.Is(err, session.ErrPersist) {
		h.logger.Error("Failed to persist confirmed batch", "game_id", s.ID(), "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to save game state")
		return
	}
	if err != nil {
		// Only malformed addresses reject a batch outright.
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := CommandsResponse{
		Turn:     s.Turn(),
		Applied:  result.Applied,
		Failures: make([]CommandFailure, 0, len(result.Failures)),
		Stopped:  result.Stopped,
	}
	for i, kind := range result.FailureKinds() {
		f := result.Failures[i]
		resp.Failures = append(resp.Failures, CommandFailure{
			Index:   f.Index,
			Command: f.Command,
			Kind:    failureKind(kind),
			Error:   f.Err.Error(),
		})
	}

	h.publish(r.Context(), s, func(ctx context.Context, p events.Publisher) error {
		return p.PublishGameStateUpdated(ctx, s.ID(), resp.Turn, resp.Applied, len(resp.Failures))
	})
	if len(req.Retire) > 0 {
		h.publishQueueChanged(r.Context(), s)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, command.ErrMissingParent):
		return "missing_parent"
	case errors.Is(err, command.ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, command.ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, command.ErrFieldAbsent):
		return "field_absent"
	default:
		return "unknown"
	}
}

// PreviewResponse is the display view of a game: canonical state with every
// pending action projected onto it.
type PreviewResponse struct {
	State           state.GameState `json:"state"`
	Pending         int             `json:"pending"`
	InventoryWeight float64         `json:"inventory_weight"`
	Equipped        map[string]any  `json:"equipped"`
}

// PreviewRequest carries a batch sent to the narrator but not yet confirmed.
type PreviewRequest struct {
	Commands []command.Command `json:"commands"`
}

func (h *GameStateHandler) handlePreviewInFlight(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.writePreview(w, s, s.PreviewInFlight(req.Commands))
}

func (h *GameStateHandler) writePreview(w http.ResponseWriter, s *session.Session, gs state.GameState) {
	b := s.Builder()
	h.writeJSON(w, http.StatusOK, PreviewResponse{
		State:           gs,
		Pending:         s.Queue().Len(),
		InventoryWeight: b.InventoryWeight(gs),
		Equipped:        b.Equipped(gs),
	})
}

type QueueResponse struct {
	Entries []queue.Entry `json:"entries"`
}

// EnqueueRequest describes a pending player action.
type EnqueueRequest struct {
	Label     string            `json:"label"`
	Intent    *queue.Intent     `json:"intent,omitempty"`
	Commands  []command.Command `json:"commands,omitempty"`
	DedupeKey string            `json:"dedupeKey,omitempty"`
}

type EnqueueResponse struct {
	ID    string `json:"id"`
	Depth int    `json:"depth"`
}

func (h *GameStateHandler) handleEnqueue(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Intent == nil && len(req.Commands) == 0 {
		h.writeError(w, http.StatusBadRequest, "An intent or at least one command is required")
		return
	}
	if req.Intent != nil {
		switch req.Intent.Kind {
		case queue.IntentEquip, queue.IntentUnequip, queue.IntentUse:
		default:
			h.writeError(w, http.StatusBadRequest, "Unknown intent kind: "+string(req.Intent.Kind))
			return
		}
	}

	id := s.Enqueue(queue.Entry{
		Label:     req.Label,
		Intent:    req.Intent,
		Commands:  req.Commands,
		DedupeKey: req.DedupeKey,
	})
	h.publishQueueChanged(r.Context(), s)
	h.writeJSON(w, http.StatusCreated, EnqueueResponse{ID: id, Depth: s.Queue().Len()})
}

func (h *GameStateHandler) handleWithdraw(w http.ResponseWriter, r *http.Request, s *session.Session, entryID string) {
	if !s.Withdraw(entryID) {
		h.writeError(w, http.StatusNotFound, "Queue entry not found")
		return
	}
	h.publishQueueChanged(r.Context(), s)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GameStateHandler) publishQueueChanged(ctx context.Context, s *session.Session) {
	h.publish(ctx, s, func(ctx context.Context, p events.Publisher) error {
		return p.PublishQueueChanged(ctx, s.ID(), s.Queue().Len())
	})
}

// publish is best effort; a failed event never fails the request.
func (h *GameStateHandler) publish(ctx context.Context, s *session.Session, fn func(context.Context, events.Publisher) error) {
	if h.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := fn(ctx, h.publisher); err != nil {
		h.logger.Warn("Failed to publish game event", "game_id", s.ID(), "error", err)
	}
}

func (h *GameStateHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	h.logger.Warn("Method not allowed for game state endpoint", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allow)
	h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allow)
}

func (h *GameStateHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *GameStateHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
