package series

import (
	"maps"
)

// Object attribute names.
const (
	AttrModes3D   = "3D_modes"
	AttrLastUser  = "last_user"
	AttrCuration  = "curation"
	AttrComment   = "comment"
	AttrAlignment = "alignment"
)

// Curation states accepted by SetCuration.
const (
	CurationNone   = ""
	CurationNeeded = "Needs curation"
	CurationDone   = "Curated"
)

// GetObjAttr returns an object attribute, or its default when unset.
func (s *Series) GetObjAttr(obj, attr string) any {
	if m, ok := s.ObjAttrs[obj]; ok {
		if v, ok := m[attr]; ok {
			return v
		}
	}
	switch attr {
	case AttrModes3D:
		return []any{"surface", 1.0}
	case AttrLastUser, AttrComment:
		return ""
	default:
		return nil
	}
}

// SetObjAttr sets an object attribute. A nil value removes it, and an
// object left without attributes is dropped.
func (s *Series) SetObjAttr(obj, attr string, v any) {
	s.Modified = true
	if v == nil {
		m, ok := s.ObjAttrs[obj]
		if !ok {
			return
		}
		delete(m, attr)
		if len(m) == 0 {
			delete(s.ObjAttrs, obj)
		}
		return
	}
	m, ok := s.ObjAttrs[obj]
	if !ok {
		m = make(map[string]any)
		s.ObjAttrs[obj] = m
	}
	m[attr] = v
}

// RemoveObjAttrs drops every attribute and group membership of obj.
func (s *Series) RemoveObjAttrs(obj string) {
	s.ObjectGroups.RemoveObject(obj)
	delete(s.ObjAttrs, obj)
	s.Modified = true
}

// RenameObjAttrs moves the attributes and groups of oldName to newName.
// Nothing moves when newName already existed as an object.
func (s *Series) RenameObjAttrs(oldName, newName string, newExisted bool) {
	if newExisted || oldName == newName {
		return
	}
	for _, g := range s.ObjectGroups.ObjectGroups(oldName) {
		s.ObjectGroups.Add(g, newName)
	}
	if m, ok := s.ObjAttrs[oldName]; ok {
		s.ObjAttrs[newName] = maps.Clone(m)
	}
	s.RemoveObjAttrs(oldName)
}

// Curation is the curation attribute of an object.
type Curation struct {
	Curated bool
	User    string
	Date    string
}

// Curation returns the curation state of obj.
func (s *Series) Curation(obj string) (Curation, bool) {
	raw, ok := s.GetObjAttr(obj, AttrCuration).([]any)
	if !ok || len(raw) != 3 {
		return Curation{}, false
	}
	var c Curation
	c.Curated, _ = raw[0].(bool)
	c.User, _ = raw[1].(string)
	c.Date, _ = raw[2].(string)
	return c, true
}

// SetCuration sets the curation state of names. CurationNone clears it and
// drops the pending curation log entries; CurationNeeded assigns the
// objects to assignTo; CurationDone records the current user.
func (s *Series) SetCuration(names []string, status, assignTo string) {
	date, _ := dateTime(s.LogSet.now())
	for _, name := range names {
		switch status {
		case CurationNone:
			s.SetObjAttr(name, AttrCuration, nil)
			s.LogSet.RemoveCuration(name)
		case CurationNeeded:
			s.SetObjAttr(name, AttrCuration, []any{false, assignTo, date})
			s.AddLog(name, nil, eventNeedsCuration)
		case CurationDone:
			s.SetObjAttr(name, AttrCuration, []any{true, s.User, date})
			s.AddLog(name, nil, eventCurated)
		}
	}
}
