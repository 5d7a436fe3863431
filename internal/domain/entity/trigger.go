package entity

// TriggerState состояние триггера весов
type TriggerState string

const (
	StateIdle   TriggerState = "IDLE"   // На весах ничего нет
	StateActive TriggerState = "ACTIVE" // Объект лежит, скан уже запрошен
)

// Transition описывает смену состояния триггера.
type Transition string

const (
	TransitionNone         Transition = "NONE"
	TransitionIdleToActive Transition = "IDLE->ACTIVE"
	TransitionActiveToIdle Transition = "ACTIVE->IDLE"
	TransitionRetrigger    Transition = "ACTIVE->ACTIVE"
)

// TriggerSnapshot копия состояния триггера для чтения из других горутин.
type TriggerSnapshot struct {
	State               TriggerState `json:"state"`
	LastTriggeredWeight float64      `json:"last_triggered_weight"`
	LastStableWeight    float64      `json:"last_stable_weight"`
}
