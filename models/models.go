package models

import (
	"time"

	"github.com/google/uuid"
)

// Well-known Dialogflow parameter names. Values flattened from the raw
// payload are keyed by these; nothing outside the gateway should touch
// other keys.
const (
	ParamLocation     = "geo-city-gb"
	ParamDate         = "date"
	ParamTime         = "time"
	ParamPlaceTypes   = "place-types"
	ParamVehicleTypes = "vehicle-types"
	ParamDateTime     = "date-time"
	ParamNumber       = "number"
)

// Author identifies one side of the conversation.
type Author struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty" yaml:"avatar_ref"`
}

// QuickReply is a single-select prompt value attached to one message.
type QuickReply struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// OptionCard is one selectable recommendation in a carousel. Selecting a
// card synthesizes a user message whose text is SelectValue.
type OptionCard struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	ImageRef    string `json:"image_ref" yaml:"image_ref"`
	SelectValue string `json:"select_value" yaml:"select_value"`
}

// Message is one entry in a conversation. Immutable once appended.
type Message struct {
	ID           uuid.UUID    `json:"id"`
	Text         string       `json:"text"`
	CreatedAt    time.Time    `json:"created_at"`
	Author       Author       `json:"author"`
	Options      []OptionCard `json:"options,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

// NLUResult is the structured outcome of one detect-intent call.
// Location, Date and Time mirror the well-known parameter slots used by
// the scheduling rewrite; Parameters carries every flattened slot.
type NLUResult struct {
	FulfillmentText string            `json:"fulfillment_text"`
	IntentName      string            `json:"intent_name"`
	Parameters      map[string]string `json:"parameters"`
	Location        string            `json:"location"`
	Date            string            `json:"date"`
	Time            string            `json:"time"`
}

// IntentKind enumerates the domain intents the assistant acts on.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentReserve
	IntentReturn
)

func (k IntentKind) String() string {
	switch k {
	case IntentReserve:
		return "reserve"
	case IntentReturn:
		return "return"
	}
	return "unknown"
}

// ReserveRequest carries everything needed to reserve a vehicle.
type ReserveRequest struct {
	Location          string `json:"location"`
	ArrivalTime       string `json:"arrival_time"`
	VehiclePreference string `json:"vehicle_preference"`
	Passengers        string `json:"passengers"`
}

// ReturnRequest carries everything needed to return a vehicle.
type ReturnRequest struct {
	Location      string `json:"location"`
	DepartureTime string `json:"departure_time"`
}

// DomainIntent is a tagged variant over the recognized domain actions.
// Exactly one of Reserve/Return is set for the matching kind.
type DomainIntent struct {
	Kind    IntentKind      `json:"kind"`
	Reserve *ReserveRequest `json:"reserve,omitempty"`
	Return  *ReturnRequest  `json:"return,omitempty"`
}

// Complete reports whether every required field for the intent's kind is
// present and non-empty. Incomplete intents must never be acted on.
func (d DomainIntent) Complete() bool {
	switch d.Kind {
	case IntentReserve:
		r := d.Reserve
		return r != nil && r.Location != "" && r.ArrivalTime != "" &&
			r.VehiclePreference != "" && r.Passengers != ""
	case IntentReturn:
		r := d.Return
		return r != nil && r.Location != "" && r.DepartureTime != ""
	}
	return false
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SelectionRequest is the request body for a quick-reply or card selection.
type SelectionRequest struct {
	Value string `json:"value" binding:"required"`
}

// TurnResponse is the response for one completed turn.
type TurnResponse struct {
	UserMessage Message   `json:"user_message"`
	BotMessages []Message `json:"bot_messages"`
}
