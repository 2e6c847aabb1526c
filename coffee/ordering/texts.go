package ordering

import "fmt"

const (
	textMenu        = "Выберете напиток:"
	textSugarPrompt = "Выберете сколько ложек сахара вам положить:"
	textAskName     = "Пожалуйста, введите своё имя и первую букву фамилии для проверки оплаты."
	textFailure     = "Не удалось оформить заказ. Попробуйте ещё раз: /start"
	textConfirmBtn  = "Подтвердить оплату"
)

func textChosen(drink string) string {
	return fmt.Sprintf("Вы выбрали %s.", drink)
}

func textSummary(drink string, sugar int) string {
	return fmt.Sprintf("Ваш заказ: %s, ложек сахара: %d.", drink, sugar)
}

func textPayment(price int, account string) string {
	return fmt.Sprintf("Пожалуйста, переведите %d₽ по СБП на %s.", price, account)
}

func textAdminOrder(o placedOrder) string {
	return fmt.Sprintf("Новый заказ от %s:\nНапиток: %s\nСахар: %d\nПользователь ID: %d\nЦена: %d₽\nПодтвердите оплату:",
		o.Name, o.Drink, o.Sugar, o.UserID, o.Price)
}
