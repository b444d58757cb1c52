package metadata

import "github.com/starford/designtrail/internal/models"

// CurrentView is the result of LoadCurrent: exactly one of Draft, Saved or
// None. The unexported method seals the set.
type CurrentView interface {
	Kind() models.Kind
	NodeName() string
	currentView()
}

// Draft is an unsaved record that takes precedence over any saved one.
type Draft struct {
	Record models.MetadataRecord
	Name   string
}

// Saved is the committed record of an element with no pending draft.
type Saved struct {
	Record models.MetadataRecord
	Name   string
}

// None means the element has never been annotated.
type None struct {
	Name string
}

func (Draft) Kind() models.Kind { return models.KindDraft }
func (Saved) Kind() models.Kind { return models.KindSaved }
func (None) Kind() models.Kind  { return models.KindNone }

func (v Draft) NodeName() string { return v.Name }
func (v Saved) NodeName() string { return v.Name }
func (v None) NodeName() string  { return v.Name }

func (Draft) currentView() {}
func (Saved) currentView() {}
func (None) currentView()  {}

// RecordOf returns the record carried by v, if any.
func RecordOf(v CurrentView) (models.MetadataRecord, bool) {
	switch v := v.(type) {
	case Draft:
		return v.Record, true
	case Saved:
		return v.Record, true
	default:
		return models.MetadataRecord{}, false
	}
}
