// Package guard implements the permission gates evaluated before a command
// handler runs. Gates are plain predicates composed into an ordered
// Pipeline; the first gate that denies stops evaluation and its Decision
// tells the caller how to answer the user.
package guard

import (
	"context"
	"strings"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

// Request is the input shared by every guard of a pipeline.
type Request struct {
	Chat botapi.Chat
	// User is the sender. Guards deny silently when it is nil.
	User *botapi.User
	// Message is the triggering message, nil for callback queries.
	Message *botapi.Message
	// BotID is the bot's own user id.
	BotID int64
}

// HasArgs reports whether the triggering message carries anything after
// the command word.
func (r *Request) HasArgs() bool {
	return r.Message != nil && strings.Contains(strings.TrimSpace(r.Message.Text), " ")
}

// Decision is the outcome of a guard.
type Decision struct {
	Allow bool
	// Reply is sent back to the user when non-empty.
	Reply string
	// ParseMode applies to Reply.
	ParseMode string
	// DeleteCommand asks the caller to delete the triggering message
	// instead of replying.
	DeleteCommand bool
}

// Allowed is the Decision every passing guard returns.
var Allowed = Decision{Allow: true}

// Deny returns a denying Decision with a reply.
func Deny(reply string) Decision {
	return Decision{Reply: reply}
}

// Guard is one permission gate.
type Guard interface {
	Name() string
	Check(ctx context.Context, req *Request) Decision
}

// Func adapts a function into a Guard.
type Func struct {
	name string
	fn   func(ctx context.Context, req *Request) Decision
}

// NewFunc creates a named Guard from fn.
func NewFunc(name string, fn func(ctx context.Context, req *Request) Decision) Func {
	return Func{name: name, fn: fn}
}

// Name implements Guard.
func (f Func) Name() string { return f.name }

// Check implements Guard.
func (f Func) Check(ctx context.Context, req *Request) Decision { return f.fn(ctx, req) }

// Pipeline evaluates guards in declaration order.
type Pipeline struct {
	guards []Guard
}

// New creates a Pipeline. Nil guards are skipped.
func New(guards ...Guard) Pipeline {
	p := Pipeline{guards: make([]Guard, 0, len(guards))}
	for _, g := range guards {
		if g != nil {
			p.guards = append(p.guards, g)
		}
	}
	return p
}

// Len returns the number of guards.
func (p Pipeline) Len() int { return len(p.guards) }

// Evaluate runs every guard until one denies. It returns that guard's
// Decision and name, or Allowed and "" when all pass.
func (p Pipeline) Evaluate(ctx context.Context, req *Request) (Decision, string) {
	for _, g := range p.guards {
		if d := g.Check(ctx, req); !d.Allow {
			return d, g.Name()
		}
	}
	return Allowed, ""
}
