package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/homeserver/chordscan/internal/capture"
)

// Action names a user-intent command
type Action string

const (
	ActionSetSong         Action = "set_song"
	ActionPointerDown     Action = "pointer_down"
	ActionPointerMove     Action = "pointer_move"
	ActionPointerUp       Action = "pointer_up"
	ActionSelect          Action = "select"
	ActionDeselect        Action = "deselect"
	ActionDelete          Action = "delete"
	ActionReprocess       Action = "reprocess"
	ActionReprocessFailed Action = "reprocess_failed"
	ActionEdit            Action = "edit"
	ActionToggleSections  Action = "toggle_sections"
	ActionClearAll        Action = "clear_all"
	ActionFinalize        Action = "finalize"
	ActionFinalizeUpload  Action = "finalize_upload"
)

// Command is one user intent. Only the fields used by the action are read.
type Command struct {
	Action    Action       `json:"action"`
	Pointer   PointerEvent `json:"pointer"`
	SectionID int64        `json:"section_id,omitempty"`
	Name      string       `json:"name,omitempty"`
	Text      string       `json:"text,omitempty"`
	Title     string       `json:"title,omitempty"`
	Key       string       `json:"key,omitempty"`
	Language  string       `json:"language,omitempty"`
}

// HandlerFunc executes a command against a session
type HandlerFunc func(ctx context.Context, m *Manager, cmd Command) (any, error)

var handlers = map[Action]HandlerFunc{
	ActionSetSong: func(_ context.Context, m *Manager, cmd Command) (any, error) {
		m.SetSong(cmd.Title, cmd.Key, cmd.Language)
		return nil, nil
	},
	ActionPointerDown: func(_ context.Context, m *Manager, cmd Command) (any, error) {
		m.PointerDown(cmd.Pointer)
		return nil, nil
	},
	ActionPointerMove: func(_ context.Context, m *Manager, cmd Command) (any, error) {
		rect, ok := m.PointerMove(cmd.Pointer)
		if !ok {
			return nil, nil
		}
		return map[string]any{"preview": rect}, nil
	},
	ActionPointerUp: func(ctx context.Context, m *Manager, cmd Command) (any, error) {
		s, err := m.PointerUp(ctx, cmd.Pointer, capture.StaticName(cmd.Name))
		if err != nil {
			return nil, err
		}
		return map[string]any{"created": s != nil, "section": s}, nil
	},
	ActionSelect: func(_ context.Context, m *Manager, cmd Command) (any, error) {
		return nil, m.Select(cmd.SectionID)
	},
	ActionDeselect: func(_ context.Context, m *Manager, _ Command) (any, error) {
		m.Deselect()
		return nil, nil
	},
	ActionDelete: func(_ context.Context, m *Manager, cmd Command) (any, error) {
		return nil, m.Delete(cmd.SectionID)
	},
	ActionReprocess: func(ctx context.Context, m *Manager, cmd Command) (any, error) {
		return nil, m.Reprocess(ctx, cmd.SectionID)
	},
	ActionReprocessFailed: func(ctx context.Context, m *Manager, _ Command) (any, error) {
		n, err := m.ReprocessFailed(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"restarted": n}, nil
	},
	ActionEdit: func(ctx context.Context, m *Manager, cmd Command) (any, error) {
		s, err := m.Edit(ctx, cmd.SectionID, cmd.Text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"section": s}, nil
	},
	ActionToggleSections: func(_ context.Context, m *Manager, _ Command) (any, error) {
		return map[string]any{"show_sections": m.ToggleSections()}, nil
	},
	ActionClearAll: func(_ context.Context, m *Manager, _ Command) (any, error) {
		m.ClearAll()
		return nil, nil
	},
	ActionFinalize: func(ctx context.Context, m *Manager, _ Command) (any, error) {
		song, err := m.Finalize(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"song": song}, nil
	},
	ActionFinalizeUpload: func(ctx context.Context, m *Manager, _ Command) (any, error) {
		out, err := m.FinalizeAndUpload(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"message": out.Message, "filename": out.Filename}, nil
	},
}

// Dispatch runs cmd against m. Unknown actions are rejected.
func Dispatch(ctx context.Context, m *Manager, cmd Command) (any, error) {
	h, ok := handlers[cmd.Action]
	if !ok {
		return nil, invalid(CodeUnknownAction, fmt.Sprintf("unknown action %q", cmd.Action))
	}
	return h(ctx, m, cmd)
}

// Actions lists the supported actions in sorted order.
func Actions() []Action {
	out := make([]Action, 0, len(handlers))
	for a := range handlers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
