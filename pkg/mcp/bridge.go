package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
	"github.com/sushiljain1989/yeoman-ui/pkg/runner"
)

// pendingPrompt is one question set parked until a wizard_answer call.
type pendingPrompt struct {
	name      string
	questions []prompt.SerializableQuestion
	reply     chan promptReply
}

type promptReply struct {
	answers prompt.Answers
	err     error
}

// bridgeUI implements session.UI for tool-call-driven interaction: prompts
// park in `current` and surface through next(); answers flow back through
// the pending reply channel. Replayed steps never reach this UI, so the
// first prompt after a wizard_back is the landing step.
type bridgeUI struct {
	mu      sync.Mutex
	current *pendingPrompt
	arrived chan struct{}       // signaled when a new prompt parks
	done    chan runner.Outcome // terminal outcome, once
}

func newBridgeUI() *bridgeUI {
	return &bridgeUI{
		arrived: make(chan struct{}, 1),
		done:    make(chan runner.Outcome, 1),
	}
}

// ShowPrompt parks the question set and blocks for its answers.
func (b *bridgeUI) ShowPrompt(ctx context.Context, questions []prompt.SerializableQuestion, stepName string) (prompt.Answers, error) {
	p := &pendingPrompt{name: stepName, questions: questions, reply: make(chan promptReply, 1)}
	b.mu.Lock()
	b.current = p
	b.mu.Unlock()
	select {
	case b.arrived <- struct{}{}:
	default:
	}

	select {
	case r := <-p.reply:
		return r.answers, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetPromptList is a no-op: step progress is served by wizard_status.
func (b *bridgeUI) SetPromptList(steps []string) {}

// SetState is a no-op: state transitions surface through tool results.
func (b *bridgeUI) SetState(update map[string]any) {}

// finish records the terminal outcome (wired to runner.Config.OnDone).
func (b *bridgeUI) finish(out runner.Outcome) {
	select {
	case b.done <- out:
	default:
	}
}

// answer delivers answers to the parked prompt.
func (b *bridgeUI) answer(answers prompt.Answers) error {
	b.mu.Lock()
	p := b.current
	b.current = nil
	b.mu.Unlock()
	if p == nil {
		return fmt.Errorf("no pending question set")
	}
	p.reply <- promptReply{answers: answers}
	return nil
}

// pending returns the currently parked prompt, if any, without consuming it.
func (b *bridgeUI) pending() *pendingPrompt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// abandon unblocks the given parked prompt after its run was superseded by a
// back-navigation. Capture the prompt before the rewind: the restarted run
// may park its landing step at any moment, and that one must survive.
func (b *bridgeUI) abandon(p *pendingPrompt) {
	if p == nil {
		return
	}
	b.mu.Lock()
	if b.current == p {
		b.current = nil
	}
	b.mu.Unlock()
	p.reply <- promptReply{err: errAbandoned}
}

// next blocks until a new prompt parks or the run finishes.
func (b *bridgeUI) next(ctx context.Context) (*pendingPrompt, *runner.Outcome, error) {
	// A prompt may already be parked (e.g. it arrived before next was called).
	b.mu.Lock()
	if p := b.current; p != nil {
		b.mu.Unlock()
		return p, nil, nil
	}
	b.mu.Unlock()

	for {
		select {
		case <-b.arrived:
			b.mu.Lock()
			p := b.current
			b.mu.Unlock()
			if p != nil {
				return p, nil, nil
			}
			// Stale signal from a prompt answered before we got here.
		case out := <-b.done:
			return nil, &out, nil
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}
