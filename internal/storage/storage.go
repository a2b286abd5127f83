package storage

import "volmint/internal/model"

// Journal receives option lifecycle events.
type Journal interface {
	AppendEvents(events []model.LifecycleEvent) error
}

// MultiJournal fans events out to several journals. The first failure
// stops the fan-out.
type MultiJournal []Journal

func (m MultiJournal) AppendEvents(events []model.LifecycleEvent) error {
	for _, journal := range m {
		if err := journal.AppendEvents(events); err != nil {
			return err
		}
	}
	return nil
}
