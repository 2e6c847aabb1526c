package handlers

import (
	"fmt"
	"strings"

	"github.com/m3rciful/coffeebot/coffee/storage"
)

const (
	textUnknown       = "Чтобы сделать заказ, нажмите /start"
	textStaleButton   = "Эта кнопка больше не активна. Начните заново: /start"
	textBadChoice     = "Неверный выбор"
	textNotAdmin      = "Недостаточно прав"
	textConfirmed     = "Оплата подтверждена!"
	textConfirmFailed = "Не удалось отправить подтверждение"
	textNoHistory     = "У вас пока нет заказов. Сделать первый: /start"
	textHistoryFailed = "Не удалось загрузить историю заказов."
	textApprovedMark  = "✅ Оплата подтверждена"
)

func approvedText(original string) string {
	if original == "" {
		return textApprovedMark
	}
	return original + "\n\n" + textApprovedMark
}

func historyText(orders []storage.Order) string {
	if len(orders) == 0 {
		return textNoHistory
	}
	var b strings.Builder
	b.WriteString("Ваши последние заказы:")
	for _, o := range orders {
		fmt.Fprintf(&b, "\n%s: %s, ложек сахара: %d", o.CreatedAt.Format("02.01.2006 15:04"), o.Drink, o.Sugar)
	}
	return b.String()
}
