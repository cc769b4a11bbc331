// Package ctrlstack is the validator's control-frame stack: the
// symbolic operand-type stack plus nested block frames that
// valid.Code walks alongside a function body, per spec.md §4.5's Pass
// 2 design note ("a stack of symbolic value types, not values").
//
// Adapted from the teacher's vm/block.go Block (blockType/basePointer
// tracking push/pop across block/loop/if/else) and vm/frame.go's
// per-call bookkeeping, generalized from tracking runtime values
// during interpretation to tracking static types during validation,
// and made polymorphic across unreachable code the way the Wasm
// specification's appendix validation algorithm requires (spec.md §4.5
// edge case: stack-polymorphic instructions after `unreachable`).
package ctrlstack

import (
	"fmt"

	"github.com/wasmcore/wasmcore/wasm"
)

// Kind discriminates which control construct opened a Frame.
type Kind uint8

const (
	KindFunc Kind = iota
	KindBlock
	KindLoop
	KindIf
)

// Frame is one nested control construct: its parameter and result
// types, the operand stack height at the point it was entered, and
// whether code following an `unreachable` (or similar) has made its
// remaining contents stack-polymorphic.
type Frame struct {
	Kind        Kind
	StartTypes  []wasm.ValueType // the block type's parameter types
	EndTypes    []wasm.ValueType // the block type's result types
	Height      int              // operand stack depth when this frame was pushed
	Unreachable bool
}

// LabelTypes returns the value types a branch targeting this frame
// must carry: a loop's label repeats at its start types, every other
// construct's label carries its result types (spec.md §4.5).
func (f Frame) LabelTypes() []wasm.ValueType {
	if f.Kind == KindLoop {
		return f.StartTypes
	}
	return f.EndTypes
}

// operand is one symbolic operand-stack slot: a concrete value type,
// or the polymorphic wildcard produced by code after an unreachable
// instruction, which matches whatever a consumer expects.
type operand struct {
	known bool
	vt    wasm.ValueType
}

var unknown = operand{known: false}

// Stack is the full validation-time state for one function body: the
// operand stack plus the nesting of control frames.
type Stack struct {
	operands []operand
	frames   []Frame
}

// New returns a Stack with its implicit outermost KindFunc frame
// already pushed, carrying the function's own parameter/result types.
func New(params, results []wasm.ValueType) *Stack {
	s := &Stack{}
	s.PushFrame(KindFunc, params, results)
	return s
}

// PushVal pushes one concrete operand type.
func (s *Stack) PushVal(vt wasm.ValueType) {
	s.operands = append(s.operands, operand{known: true, vt: vt})
}

// PushVals pushes each of types in order.
func (s *Stack) PushVals(types []wasm.ValueType) {
	for _, t := range types {
		s.PushVal(t)
	}
}

// PopVal pops one operand, checked against expect when expect is
// non-nil. Popping past the current frame's height is only an error
// outside unreachable code; inside it, the popped type is the
// polymorphic wildcard and always "matches".
func (s *Stack) PopVal(expect *wasm.ValueType) (wasm.ValueType, error) {
	top := &s.frames[len(s.frames)-1]
	if len(s.operands) == top.Height {
		if !top.Unreachable {
			if expect != nil {
				return wasm.ValueType{}, fmt.Errorf("stack underflow: expected %s", *expect)
			}
			return wasm.ValueType{}, fmt.Errorf("stack underflow")
		}
		if expect != nil {
			return *expect, nil
		}
		return wasm.ValueType{}, nil
	}

	op := s.operands[len(s.operands)-1]
	s.operands = s.operands[:len(s.operands)-1]
	if expect != nil && op.known && !op.vt.Equal(*expect) {
		return wasm.ValueType{}, fmt.Errorf("type mismatch: expected %s, got %s", *expect, op.vt)
	}
	if !op.known {
		if expect != nil {
			return *expect, nil
		}
		return wasm.ValueType{}, nil
	}
	return op.vt, nil
}

// PopVals pops len(types) operands against types, in reverse (the
// last-declared result/param is popped first, since it was pushed
// last), returning an error from the first mismatch found.
func (s *Stack) PopVals(types []wasm.ValueType) error {
	for i := len(types) - 1; i >= 0; i-- {
		t := types[i]
		if _, err := s.PopVal(&t); err != nil {
			return err
		}
	}
	return nil
}

// PushFrame opens a new control frame with the given parameter types
// already expected to be on the stack (pushed again here, mirroring
// how block/loop/if consume their declared inputs and begin their
// body with them present). The frame's Height is the stack depth
// before those parameter values, so the body can consume them.
func (s *Stack) PushFrame(kind Kind, start, end []wasm.ValueType) {
	height := len(s.operands)
	s.PushVals(start)
	s.frames = append(s.frames, Frame{
		Kind:       kind,
		StartTypes: start,
		EndTypes:   end,
		Height:     height,
	})
}

// PopFrame closes the innermost frame, checking its result types are
// present on the stack and that nothing extra remains, and pops it.
// It does NOT push the result types back: `end` wants them visible to
// the enclosing context, but `else` wants the if-frame's *parameter*
// types re-pushed instead (to start the else clause fresh) — that
// choice belongs to the caller, so both push explicitly afterward.
func (s *Stack) PopFrame() (Frame, error) {
	if len(s.frames) == 0 {
		return Frame{}, fmt.Errorf("control stack underflow")
	}
	top := s.frames[len(s.frames)-1]
	if err := s.PopVals(top.EndTypes); err != nil {
		return Frame{}, err
	}
	if len(s.operands) != top.Height {
		return Frame{}, fmt.Errorf("unused values remain on the stack at end of block")
	}
	s.frames = s.frames[:len(s.frames)-1]
	return top, nil
}

// Unreachable marks the current frame stack-polymorphic and discards
// every concrete operand pushed since it was entered, per the
// validation algorithm's handling of `unreachable`, `br`, `br_table`
// and `return` (spec.md §4.5 edge case).
func (s *Stack) Unreachable() {
	top := &s.frames[len(s.frames)-1]
	s.operands = s.operands[:top.Height]
	top.Unreachable = true
}

// Depth returns the number of currently open control frames,
// including the implicit outermost function frame.
func (s *Stack) Depth() int { return len(s.frames) }

// FrameAt returns the frame `depth` levels up from the innermost one
// (0 is the innermost), for resolving a branch's label index.
func (s *Stack) FrameAt(depth uint32) (Frame, error) {
	idx := len(s.frames) - 1 - int(depth)
	if idx < 0 {
		return Frame{}, fmt.Errorf("label index %d exceeds control stack depth", depth)
	}
	return s.frames[idx], nil
}

// Top returns the innermost frame.
func (s *Stack) Top() Frame { return s.frames[len(s.frames)-1] }
