package ui

// State — состояние панели: Loading → Ready → (Error | Disabled).
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
	StateDisabled State = "disabled"
)

// Terminal messages.
const (
	MessagePickerDisabled = "Order is activated: products can no longer be added."
	MessageLinesDisabled  = "Order is activated: confirmation is no longer available."
)

// View — снимок панели для отображения.
type View[T any] struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
	Rows    []T    `json:"rows"`
	HasMore bool   `json:"hasMore"`
	Total   int    `json:"total"`
}

func newView[T any](state State, message string, pager *Pager[T]) View[T] {
	return View[T]{
		State:   state,
		Message: message,
		Rows:    pager.Visible(),
		HasMore: pager.HasMore(),
		Total:   pager.Len(),
	}
}
