// Package states keeps per-section undo and redo history as serialized
// snapshots of a section's contours, transforms and flags.
package states

import (
	"encoding/json"
	"fmt"

	"recon-tracer/internal/section"
)

// SectionStates is the linear undo/redo history of one section.
type SectionStates struct {
	current []byte
	undo    [][]byte
	redo    [][]byte
}

func snapshot(s *section.Section) ([]byte, error) {
	data, err := json.Marshal(s.StateDoc())
	if err != nil {
		return nil, fmt.Errorf("states: section %d: %w", s.N, err)
	}
	return data, nil
}

func restore(s *section.Section, data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("states: section %d: %w", s.N, err)
	}
	return s.RestoreStateDoc(doc)
}

// New records the initial state of s.
func New(s *section.Section) (*SectionStates, error) {
	cur, err := snapshot(s)
	if err != nil {
		return nil, err
	}
	return &SectionStates{current: cur}, nil
}

// AddState records the current state of s. The previous state moves to the
// undo stack and the redo stack is cleared. An unchanged section records
// nothing.
func (st *SectionStates) AddState(s *section.Section) error {
	cur, err := snapshot(s)
	if err != nil {
		return err
	}
	if string(cur) == string(st.current) {
		return nil
	}
	st.undo = append(st.undo, st.current)
	st.current = cur
	st.redo = nil
	return nil
}

// UndoState restores the previous state. It reports false when there is
// nothing to undo.
func (st *SectionStates) UndoState(s *section.Section) (bool, error) {
	if len(st.undo) == 0 {
		return false, nil
	}
	prev := st.undo[len(st.undo)-1]
	if err := restore(s, prev); err != nil {
		return false, err
	}
	st.undo = st.undo[:len(st.undo)-1]
	st.redo = append(st.redo, st.current)
	st.current = prev
	return true, nil
}

// RedoState reapplies the most recently undone state. It reports false when
// there is nothing to redo.
func (st *SectionStates) RedoState(s *section.Section) (bool, error) {
	if len(st.redo) == 0 {
		return false, nil
	}
	next := st.redo[len(st.redo)-1]
	if err := restore(s, next); err != nil {
		return false, err
	}
	st.redo = st.redo[:len(st.redo)-1]
	st.undo = append(st.undo, st.current)
	st.current = next
	return true, nil
}

// CanUndo reports whether UndoState would restore a state.
func (st *SectionStates) CanUndo() bool { return len(st.undo) > 0 }

// CanRedo reports whether RedoState would restore a state.
func (st *SectionStates) CanRedo() bool { return len(st.redo) > 0 }

// Reset forgets all history and records s as the initial state.
func (st *SectionStates) Reset(s *section.Section) error {
	cur, err := snapshot(s)
	if err != nil {
		return err
	}
	st.current, st.undo, st.redo = cur, nil, nil
	return nil
}
