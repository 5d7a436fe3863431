package events

import (
	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// Multi отправляет событие во все приёмники по очереди.
type Multi []port.EventSink

func (m Multi) Emit(ev entity.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

var _ port.EventSink = Multi(nil)
