package assistant

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smilebright/dental-ai-platform/internal/appointments"
)

// Intent types produced by structured extraction. Empty means the message
// could not be classified as an appointment request.
const (
	IntentCancel     = "cancel_appointment"
	IntentReschedule = "reschedule_appointment"
	IntentBook       = "book_appointment"
	IntentView       = "view_appointment"
)

// confirmationThreshold is the fixed confidence bar below which a
// state-changing intent must be explicitly confirmed by the patient.
const confirmationThreshold = 0.7

// AppointmentIntent is the ephemeral structured extraction result.
type AppointmentIntent struct {
	Type                 string     `json:"type,omitempty"`
	AppointmentID        *uuid.UUID `json:"appointmentId,omitempty"`
	AppointmentTitle     string     `json:"appointmentTitle,omitempty"`
	NewDateTime          string     `json:"newDateTime,omitempty"`
	Confidence           float64    `json:"confidence"`
	RequiresConfirmation bool       `json:"requiresConfirmation"`
}

// ---------- package-level compiled regexes ----------

var (
	cancelRE     = regexp.MustCompile(`(?i)\b(cancel|call off|can'?t make|cannot make|won'?t make)\b`)
	rescheduleRE = regexp.MustCompile(`(?i)\b(reschedul\w*|move|postpone|push back|switch|change)\b`)
	bookRE       = regexp.MustCompile(`(?i)\b(book|schedule|set up|new appointment|come in|make an appointment)\b`)
	viewRE       = regexp.MustCompile(`(?i)\b(when( is|'s)?|what time|next appointment|upcoming|my appointments?|do i have)\b`)

	clockRE   = regexp.MustCompile(`(?i)\b(?:at|around|about)?\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)\b`)
	isoDateRE = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

	nonAlnumRE = regexp.MustCompile(`[^a-z0-9]+`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ExtractAppointmentIntent classifies a patient message against their
// existing appointments. Matching is deliberately fuzzy: keyword containment
// over appointment titles, not exact equality.
func ExtractAppointmentIntent(message string, appts []appointments.Appointment, now time.Time) AppointmentIntent {
	intent := AppointmentIntent{RequiresConfirmation: true}
	lower := strings.ToLower(message)

	switch {
	case cancelRE.MatchString(lower):
		intent.Type = IntentCancel
	case rescheduleRE.MatchString(lower):
		intent.Type = IntentReschedule
	case bookRE.MatchString(lower):
		intent.Type = IntentBook
	case viewRE.MatchString(lower):
		intent.Type = IntentView
	default:
		// Unclassifiable: no appointment action in the message.
		intent.Confidence = 0
		return intent
	}

	confidence := 0.6

	if intent.Type == IntentCancel || intent.Type == IntentReschedule || intent.Type == IntentView {
		if matched := matchAppointmentByTitle(lower, appts); matched != nil {
			id := matched.ID
			intent.AppointmentID = &id
			intent.AppointmentTitle = matched.Title
			confidence += 0.2
		} else if fallback := soleActiveAppointment(appts); fallback != nil {
			// One live appointment: the reference is unambiguous even
			// without a title match.
			id := fallback.ID
			intent.AppointmentID = &id
			intent.AppointmentTitle = fallback.Title
			confidence += 0.1
		}
	}

	if intent.Type == IntentReschedule || intent.Type == IntentBook {
		if when, ok := extractDateTime(lower, now); ok {
			intent.NewDateTime = when.Format("2006-01-02T15:04")
			confidence += 0.1
		}
	}

	if confidence > 0.95 {
		confidence = 0.95
	}
	intent.Confidence = confidence
	intent.RequiresConfirmation = confidence < confirmationThreshold
	return intent
}

// matchAppointmentByTitle picks the non-cancelled appointment whose title
// keywords best overlap the message. "cleaning" matches "Teeth Cleaning".
func matchAppointmentByTitle(lowerMessage string, appts []appointments.Appointment) *appointments.Appointment {
	var best *appointments.Appointment
	bestScore := 0
	for i := range appts {
		appt := &appts[i]
		if appt.Cancelled {
			continue
		}
		score := 0
		for _, keyword := range titleKeywords(appt.Title) {
			if strings.Contains(lowerMessage, keyword) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = appt
		}
	}
	return best
}

func titleKeywords(title string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(title)) {
		tok = nonAlnumRE.ReplaceAllString(tok, "")
		// Short tokens ("a", "of") match everywhere and mean nothing.
		if len(tok) >= 4 {
			out = append(out, tok)
		}
	}
	return out
}

func soleActiveAppointment(appts []appointments.Appointment) *appointments.Appointment {
	var found *appointments.Appointment
	for i := range appts {
		if appts[i].Cancelled {
			continue
		}
		if found != nil {
			return nil
		}
		found = &appts[i]
	}
	return found
}

// extractDateTime resolves relative day references and clock times in the
// message to a concrete instant after now.
func extractDateTime(lowerMessage string, now time.Time) (time.Time, bool) {
	day, dayFound := extractDay(lowerMessage, now)

	hour, minute, clockFound := extractClock(lowerMessage)
	if !dayFound && !clockFound {
		return time.Time{}, false
	}
	if !dayFound {
		day = now
		// A bare time earlier than now means the next day.
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
		if !candidate.After(now) {
			day = day.AddDate(0, 0, 1)
		}
	}
	if !clockFound {
		hour, minute = 10, 0
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location()), true
}

func extractDay(lowerMessage string, now time.Time) (time.Time, bool) {
	if m := isoDateRE.FindStringSubmatch(lowerMessage); m != nil {
		if t, err := time.Parse("2006-01-02", m[0]); err == nil {
			return t, true
		}
	}
	if strings.Contains(lowerMessage, "tomorrow") {
		return now.AddDate(0, 0, 1), true
	}
	if strings.Contains(lowerMessage, "today") {
		return now, true
	}
	for name, weekday := range weekdays {
		if !strings.Contains(lowerMessage, name) {
			continue
		}
		days := int(weekday-now.Weekday()+7) % 7
		if days == 0 {
			days = 7
		}
		return now.AddDate(0, 0, days), true
	}
	return time.Time{}, false
}

func extractClock(lowerMessage string) (hour, minute int, ok bool) {
	m := clockRE.FindStringSubmatch(lowerMessage)
	if m == nil {
		return 0, 0, false
	}
	hour = atoiSafe(m[1])
	minute = atoiSafe(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	meridiem := strings.ReplaceAll(m[3], ".", "")
	if strings.EqualFold(meridiem, "pm") && hour < 12 {
		hour += 12
	}
	if strings.EqualFold(meridiem, "am") && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
