package vm

import "github.com/holiman/uint256"

// Stack is the 256-bit operand stack. Items are stored as values to
// avoid per-push allocation; the interpreter validates depth bounds
// before every operation, so the accessors do not re-check.
type Stack struct {
	data []uint256.Int
}

// NewStack returns an empty stack with room for a typical frame.
func NewStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, 16)}
}

// Data returns the underlying slice, bottom first.
func (s *Stack) Data() []uint256.Int { return s.data }

// Len returns the number of items on the stack.
func (s *Stack) Len() int { return len(s.data) }

// Push places d on top of the stack.
func (s *Stack) Push(d *uint256.Int) {
	s.data = append(s.data, *d)
}

// Pop removes and returns the top item.
func (s *Stack) Pop() uint256.Int {
	ret := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return ret
}

// Peek returns a pointer to the top item without removing it.
func (s *Stack) Peek() *uint256.Int {
	return &s.data[len(s.data)-1]
}

// Back returns the n'th item from the top (Back(0) is the top).
func (s *Stack) Back(n int) *uint256.Int {
	return &s.data[len(s.data)-n-1]
}

// Dup pushes a copy of the n'th item from the top (n is 1-based).
func (s *Stack) Dup(n int) {
	s.data = append(s.data, s.data[len(s.data)-n])
}

// Swap exchanges the top item with the n'th item below it (n is 1-based).
func (s *Stack) Swap(n int) {
	s.data[len(s.data)-n-1], s.data[len(s.data)-1] = s.data[len(s.data)-1], s.data[len(s.data)-n-1]
}
