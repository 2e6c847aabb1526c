package ordering

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/coffee/catalog"
	"github.com/m3rciful/coffeebot/core/telegram/keyboard"
)

// Callback unique keys. Payloads: drink name, spoon count, customer user id.
const (
	CallbackDrink          = "drink"
	CallbackSugar          = "sugar"
	CallbackConfirmPayment = "confirm_payment"
)

func menuMarkup(c *catalog.Catalog) *tele.ReplyMarkup {
	drinks := c.Drinks()
	btns := make([]keyboard.InlineBtn, 0, len(drinks))
	for _, d := range drinks {
		btns = append(btns, keyboard.InlineBtn{Text: d.Label(), Unique: CallbackDrink, Data: d.Name})
	}
	return keyboard.InlineButtonsNPerRow(btns, 1)
}

func sugarMarkup() *tele.ReplyMarkup {
	choices := catalog.SugarChoices()
	btns := make([]keyboard.InlineBtn, 0, len(choices))
	for _, n := range choices {
		s := strconv.Itoa(n)
		btns = append(btns, keyboard.InlineBtn{Text: s, Unique: CallbackSugar, Data: s})
	}
	return keyboard.InlineButtonsNPerRow(btns, len(btns))
}

func confirmMarkup(userID int64) *tele.ReplyMarkup {
	return keyboard.Single(keyboard.InlineBtn{
		Text:   textConfirmBtn,
		Unique: CallbackConfirmPayment,
		Data:   strconv.FormatInt(userID, 10),
	})
}
