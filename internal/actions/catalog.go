// Package actions defines the closed catalog of assistant actions the clinic
// recognizes. Anything outside this set is coerced to a general response
// before it can reach an executor.
package actions

// Action identifies one assistant capability.
type Action string

const (
	ViewNextAppointment      Action = "view-next-appointment"
	ViewUpcomingAppointments Action = "view-upcoming-appointments"
	RescheduleAppointment    Action = "reschedule-appointment"
	CancelAppointment        Action = "cancel-appointment"
	BookAppointment          Action = "book-appointment"
	ViewTreatmentPlan        Action = "view-treatment-plan"
	ViewInvoices             Action = "view-invoices"
	GeneralResponse          Action = "general-response"
)

var catalog = []Action{
	ViewNextAppointment,
	ViewUpcomingAppointments,
	RescheduleAppointment,
	CancelAppointment,
	BookAppointment,
	ViewTreatmentPlan,
	ViewInvoices,
	GeneralResponse,
}

// All returns the catalog in a stable order.
func All() []Action {
	out := make([]Action, len(catalog))
	copy(out, catalog)
	return out
}

// IsKnown reports whether id names a catalog member.
func IsKnown(id string) bool {
	for _, a := range catalog {
		if string(a) == id {
			return true
		}
	}
	return false
}

// Coerce maps an untrusted action identifier onto the catalog. Unknown or
// empty identifiers become GeneralResponse.
func Coerce(id string) Action {
	if IsKnown(id) {
		return Action(id)
	}
	return GeneralResponse
}

// DefaultResponse returns the synthesized user-visible sentence for an action
// when the language model produced none. Total over the catalog so every
// chat interaction yields non-empty text.
func DefaultResponse(a Action) string {
	switch a {
	case ViewNextAppointment:
		return "Here is your next appointment."
	case ViewUpcomingAppointments:
		return "Here are your upcoming appointments."
	case RescheduleAppointment:
		return "I can help you reschedule your appointment. Please confirm the new date and time."
	case CancelAppointment:
		return "I can help you cancel your appointment. Please confirm the cancellation."
	case BookAppointment:
		return "I can help you book a new appointment. What day works best for you?"
	case ViewTreatmentPlan:
		return "Here is your current treatment plan."
	case ViewInvoices:
		return "Here are your invoices."
	case GeneralResponse:
		return "How can I help you with your dental care today?"
	default:
		return DefaultResponse(GeneralResponse)
	}
}
