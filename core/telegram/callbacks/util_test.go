package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name          string
		cb            *tele.Callback
		unique, value string
	}{
		{"nil", nil, "", ""},
		{"encoded", &tele.Callback{Data: "\fsugar|2"}, "sugar", "2"},
		{"no payload", &tele.Callback{Data: "\fconfirm_payment"}, "confirm_payment", ""},
		{"pipe in payload", &tele.Callback{Data: "\fdrink|a|b"}, "drink", "a|b"},
		{"already split", &tele.Callback{Unique: "drink", Data: "Латте"}, "drink", "Латте"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, p := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.unique, u)
			assert.Equal(t, tc.value, p)
		})
	}
}
