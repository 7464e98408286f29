package dto

import "rentalcore/internal/domain/shared/money"

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

// MapMoneyPtr keeps absent amounts absent on the wire instead of rendering zero.
func MapMoneyPtr(m money.Money, known bool) *MoneyDTO {
	if !known {
		return nil
	}
	v := MapMoney(m)
	return &v
}

func (m MoneyDTO) Money() money.Money {
	return money.Money{Amount: m.Amount, Currency: m.Currency}
}
