package search

import "rentscout/models"

// Listener receives the progress of a callback-driven search.
// OnError("") clears a previously reported error.
type Listener interface {
	OnResults(records []models.PropertyRecord)
	OnSearchingChange(searching bool)
	OnError(message string)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Results   func([]models.PropertyRecord)
	Searching func(bool)
	Error     func(string)
}

func (l ListenerFuncs) OnResults(records []models.PropertyRecord) {
	if l.Results != nil {
		l.Results(records)
	}
}

func (l ListenerFuncs) OnSearchingChange(searching bool) {
	if l.Searching != nil {
		l.Searching(searching)
	}
}

func (l ListenerFuncs) OnError(message string) {
	if l.Error != nil {
		l.Error(message)
	}
}
