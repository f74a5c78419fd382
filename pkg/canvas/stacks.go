package canvas

// stackStore holds one undo stack per key. A missing key behaves exactly like an empty stack, and
// stacks are never shared between keys.
type stackStore struct {
	stacks map[string][]Operation
}

func newStackStore() *stackStore {
	return &stackStore{stacks: make(map[string][]Operation)}
}

// get returns the stack for key, or nil. The result must not be modified.
func (s *stackStore) get(key string) []Operation {
	return s.stacks[key]
}

func (s *stackStore) depth(key string) int {
	return len(s.stacks[key])
}

func (s *stackStore) push(key string, op Operation) {
	s.stacks[key] = append(s.stacks[key], op)
}

func (s *stackStore) pop(key string) (Operation, bool) {
	stack := s.stacks[key]
	if len(stack) == 0 {
		return Operation{}, false
	}
	op := stack[len(stack)-1]
	stack[len(stack)-1] = Operation{}
	if len(stack) == 1 {
		delete(s.stacks, key)
	} else {
		s.stacks[key] = stack[:len(stack)-1]
	}
	return op, true
}

func (s *stackStore) reset(key string) {
	delete(s.stacks, key)
}

// removeWhere drops every entry of key's stack matching drop, keeping the order of the rest.
func (s *stackStore) removeWhere(key string, drop func(Operation) bool) int {
	stack := s.stacks[key]
	kept := stack[:0]
	removed := 0
	for _, op := range stack {
		if drop(op) {
			removed++
			continue
		}
		kept = append(kept, op)
	}
	for i := len(kept); i < len(stack); i++ {
		stack[i] = Operation{}
	}
	if len(kept) == 0 {
		delete(s.stacks, key)
	} else {
		s.stacks[key] = kept
	}
	return removed
}

func (s *stackStore) clone() map[string][]Operation {
	out := make(map[string][]Operation, len(s.stacks))
	for k, v := range s.stacks {
		out[k] = append([]Operation(nil), v...)
	}
	return out
}
