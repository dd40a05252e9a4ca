package engine

import (
	"rental-chat/models"
)

// Dialogflow intent display names the dispatcher acts on.
const (
	intentVehicleAdd    = "Vehicle.add"
	intentVehicleReturn = "Vehicle.return"
)

// ActionHandler receives completed domain intents. Implementations are
// fire-and-forget; the dispatcher does not wait on them.
type ActionHandler interface {
	Handle(intent models.DomainIntent)
}

// ActionFunc adapts a plain function to ActionHandler.
type ActionFunc func(models.DomainIntent)

func (f ActionFunc) Handle(intent models.DomainIntent) { f(intent) }

// Dispatcher maps recognized intent names and their parameter slots to
// domain actions.
type Dispatcher struct {
	Action ActionHandler
}

// Dispatch inspects one NLU result and, when it carries a known intent
// with every required slot filled, hands the completed DomainIntent to
// the action handler exactly once. An unknown intent or a missing slot is
// a no-op, not an error: the backend re-prompts for missing slots on a
// later turn.
func (d *Dispatcher) Dispatch(res models.NLUResult) (models.DomainIntent, bool) {
	intent := Recognize(res)
	if !intent.Complete() {
		return models.DomainIntent{Kind: models.IntentUnknown}, false
	}
	if d.Action != nil {
		d.Action.Handle(intent)
	}
	return intent, true
}

// Recognize builds the DomainIntent for a result without dispatching it.
// Only the required slots for the matched intent cross this boundary; raw
// parameter maps stay behind it.
func Recognize(res models.NLUResult) models.DomainIntent {
	params := res.Parameters
	switch res.IntentName {
	case intentVehicleAdd:
		return models.DomainIntent{
			Kind: models.IntentReserve,
			Reserve: &models.ReserveRequest{
				Location:          params[models.ParamPlaceTypes],
				ArrivalTime:       params[models.ParamDateTime],
				VehiclePreference: params[models.ParamVehicleTypes],
				Passengers:        params[models.ParamNumber],
			},
		}
	case intentVehicleReturn:
		return models.DomainIntent{
			Kind: models.IntentReturn,
			Return: &models.ReturnRequest{
				Location:      params[models.ParamPlaceTypes],
				DepartureTime: params[models.ParamDateTime],
			},
		}
	}
	return models.DomainIntent{Kind: models.IntentUnknown}
}
