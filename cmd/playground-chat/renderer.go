// ABOUTME: Streams the in-flight assistant reply to the terminal as updates arrive
// ABOUTME: Tracks how much of the accumulated content has already been printed

package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/promptlab/playground/internal/conversation"
	"github.com/promptlab/playground/internal/engine"
)

// renderer turns instance update callbacks into incremental terminal
// output. Content arrives as the full accumulated string, so it prints only
// the unseen suffix; an error message that replaces the content wholesale
// is printed on a fresh line.
type renderer struct {
	engine *engine.Engine
	out    io.Writer

	mu      sync.Mutex
	printed int
}

func (r *renderer) reset() {
	r.mu.Lock()
	r.printed = 0
	r.mu.Unlock()
}

func (r *renderer) onUpdate(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil {
		return
	}
	inst, ok := r.engine.Instance(instanceID)
	if !ok {
		return
	}

	history := inst.History()
	if len(history) == 0 {
		r.printed = 0
		return
	}
	last := history[len(history)-1]
	if last.Role != conversation.RoleAssistant {
		return
	}

	if len(last.Content) < r.printed {
		// Content was replaced, not extended (error path). Start over.
		fmt.Fprintln(r.out)
		fmt.Fprint(r.out, last.Content)
		r.printed = len(last.Content)
		return
	}
	if len(last.Content) > r.printed {
		fmt.Fprint(r.out, last.Content[r.printed:])
		r.printed = len(last.Content)
	}
}

// finishLine terminates the streamed reply and prints turn metadata.
func (r *renderer) finishLine(inst *conversation.Instance) {
	fmt.Fprintln(r.out)

	history := inst.History()
	if len(history) == 0 {
		return
	}
	last := history[len(history)-1]
	if last.Role != conversation.RoleAssistant || last.TraceID == "" {
		return
	}
	fmt.Fprintln(r.out, color.HiBlackString("trace %s", last.TraceID))
}
