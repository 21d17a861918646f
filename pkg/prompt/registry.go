package prompt

import (
	"fmt"
	"sync"
)

// Registry holds dynamic-behavior overrides keyed by question type and method
// name. A question's own Behaviors take precedence; the registry supplies
// shared handlers (e.g. a default validator for every "folder" question) and
// lets embedders hook question types they did not author.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]map[string]BehaviorFunc // question type → method → handler
}

// NewRegistry creates an empty behavior registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]map[string]BehaviorFunc)}
}

// Register installs a handler for every question of the given type.
func (r *Registry) Register(questionType, method string, fn BehaviorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byMethod, ok := r.handlers[questionType]
	if !ok {
		byMethod = make(map[string]BehaviorFunc)
		r.handlers[questionType] = byMethod
	}
	byMethod[method] = fn
}

// Resolve finds the behavior for a question and method: the question's own
// behavior first, then a registered override for its type.
func (r *Registry) Resolve(q *Question, method string) (BehaviorFunc, error) {
	if q.Behaviors != nil {
		if fn, ok := q.Behaviors[method]; ok {
			return fn, nil
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if byMethod, ok := r.handlers[q.Type]; ok {
		if fn, ok := byMethod[method]; ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("question %q has no method %q", q.Name, method)
}
