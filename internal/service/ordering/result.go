package ordering

import "github.com/vladislavdragonenkov/orderdesk/internal/metrics"

// Outcome — итог рабочего процесса.
type Outcome string

const (
	OutcomeSucceeded Outcome = metrics.OutcomeSucceeded
	// OutcomePartial — процесс завершился, но часть шагов пропущена из-за прав.
	OutcomePartial Outcome = metrics.OutcomePartial
	OutcomeFailed  Outcome = metrics.OutcomeFailed
)

// Step — шаг, который может быть пропущен при отсутствии права.
type Step string

const (
	StepReassignPriceBook Step = "reassign_price_book"
	StepCreateLines       Step = "create_lines"
	StepUpdateLines       Step = "update_lines"
	StepActivateOrder     Step = "activate_order"
)

// Result — подробный итог AddToOrder/ConfirmOrder.
// Булев контракт сводит его к OK().
type Result struct {
	Outcome Outcome
	Skipped []Step
	Err     error
}

// OK сообщает, что процесс завершился без ошибки (в том числе с пропущенными шагами).
func (r Result) OK() bool {
	return r.Outcome != OutcomeFailed
}

func failed(err error) Result {
	return Result{Outcome: OutcomeFailed, Err: err}
}

func completed(skipped []Step) Result {
	if len(skipped) > 0 {
		return Result{Outcome: OutcomePartial, Skipped: skipped}
	}
	return Result{Outcome: OutcomeSucceeded}
}
