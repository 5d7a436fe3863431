package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"inspection-brain/internal/domain/entity"
)

type countingSink struct{ events []entity.Event }

func (s *countingSink) Emit(ev entity.Event) { s.events = append(s.events, ev) }

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := Multi{a, nil, b}

	m.Emit(entity.NewEvent(entity.EventScanStarted, nil))
	m.Emit(entity.NewEvent(entity.EventScanFailed, nil))

	require.Len(t, a.events, 2)
	require.Len(t, b.events, 2)
	require.Equal(t, entity.EventScanFailed, b.events[1].Type)
}
