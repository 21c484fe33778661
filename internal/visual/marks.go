package visual

// SetSelection binds a lasso polygon to the given image, replacing any
// prior selection (at most one active, spec.md §3).
func (m *Model) SetSelection(id string, points []Point, closed bool, ts int64) {
	m.mu.Lock()
	mk, ok := m.marks[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	mk.selection = &Selection{ImageID: id, Points: append([]Point(nil), points...), Closed: closed, Timestamp: ts}
	m.mu.Unlock()
	m.save()
}

// ClearSelection removes the active selection for id, if any.
func (m *Model) ClearSelection(id string) {
	m.mu.Lock()
	if mk, ok := m.marks[id]; ok {
		mk.selection = nil
	}
	m.mu.Unlock()
	m.save()
}

// AddDesignation appends a designation to id (append-only within a session,
// spec.md §3).
func (m *Model) AddDesignation(id string, d Designation) {
	m.mu.Lock()
	if mk, ok := m.marks[id]; ok {
		mk.designations = append(mk.designations, d)
	}
	m.mu.Unlock()
	m.save()
}

// ClearDesignations clears every designation on id.
func (m *Model) ClearDesignations(id string) {
	m.mu.Lock()
	if mk, ok := m.marks[id]; ok {
		mk.designations = nil
	}
	m.mu.Unlock()
	m.save()
}

// AddCircle appends a circle mark to id.
func (m *Model) AddCircle(id string, c Circle) {
	m.mu.Lock()
	if mk, ok := m.marks[id]; ok {
		mk.circles = append(mk.circles, c)
	}
	m.mu.Unlock()
	m.save()
}

// SetDraftBox sets the in-progress annotate box for id, replacing any
// prior draft (at most one draft, spec.md §3).
func (m *Model) SetDraftBox(id string, box AnnotateBox) {
	m.mu.Lock()
	if mk, ok := m.marks[id]; ok {
		b := box
		mk.draftBox = &b
	}
	m.mu.Unlock()
	m.save()
}

// CommitBox promotes the current draft box to committed, clearing the
// draft (at most one committed box, spec.md §3).
func (m *Model) CommitBox(id string) (AnnotateBox, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.marks[id]
	if !ok || mk.draftBox == nil {
		return AnnotateBox{}, false
	}
	box := *mk.draftBox
	mk.committedBox = &box
	mk.draftBox = nil
	return box, true
}

// CommittedBox returns the committed box bound to id, if any.
func (m *Model) CommittedBox(id string) (AnnotateBox, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.marks[id]
	if !ok || mk.committedBox == nil {
		return AnnotateBox{}, false
	}
	return *mk.committedBox, true
}

// ClearCommittedBox drops the committed box for id, once its edit has
// been sent to the engine and is awaiting an artifact.
func (m *Model) ClearCommittedBox(id string) {
	m.mu.Lock()
	if mk, ok := m.marks[id]; ok {
		mk.committedBox = nil
	}
	m.mu.Unlock()
}

// Designations returns a copy of the designations bound to id.
func (m *Model) Designations(id string) []Designation {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.marks[id]
	if !ok {
		return nil
	}
	return append([]Designation(nil), mk.designations...)
}
