package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnown(t *testing.T) {
	for _, a := range All() {
		assert.True(t, IsKnown(string(a)), "catalog member %q must be known", a)
	}

	assert.False(t, IsKnown("delete-all-appointments"))
	assert.False(t, IsKnown("General-Response"))
	assert.False(t, IsKnown(""))
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, CancelAppointment, Coerce("cancel-appointment"))
	assert.Equal(t, GeneralResponse, Coerce("make-coffee"))
	assert.Equal(t, GeneralResponse, Coerce(""))

	// Closure: whatever goes in, a catalog member comes out.
	for _, id := range []string{"x", "view-invoices", "book-appointment", "nope"} {
		assert.True(t, IsKnown(string(Coerce(id))))
	}
}

func TestDefaultResponseIsTotal(t *testing.T) {
	for _, a := range All() {
		assert.NotEmpty(t, DefaultResponse(a), "action %q must have a default sentence", a)
	}
	// Out-of-catalog values fall through to the general sentence.
	assert.Equal(t, DefaultResponse(GeneralResponse), DefaultResponse(Action("bogus")))
}
