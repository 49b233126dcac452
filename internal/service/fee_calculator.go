package service

import (
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
)

var hundred = decimal.NewFromInt(100)

// FeeCalculator считает сборы платформы. Все суммы округляются до центов
// банковским округлением в пользу точного баланса: комиссия вычисляется,
// нетто получается вычитанием, поэтому нетто+комиссия всегда равно брутто.
type FeeCalculator struct {
	clientFeePercent   decimal.Decimal
	defaultPlatformFee decimal.Decimal
}

// NewFeeCalculator создаёт калькулятор с процентами из конфигурации.
// Проценты задаются строками вида "5" или "7.5".
func NewFeeCalculator(clientFeePercent, defaultPlatformFee string) (*FeeCalculator, error) {
	client, err := decimal.NewFromString(clientFeePercent)
	if err != nil {
		return nil, err
	}
	platform, err := decimal.NewFromString(defaultPlatformFee)
	if err != nil {
		return nil, err
	}
	return &FeeCalculator{
		clientFeePercent:   client,
		defaultPlatformFee: platform,
	}, nil
}

// ClientFee возвращает сервисный сбор клиента при фандинге этапа.
func (c *FeeCalculator) ClientFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.clientFeePercent).Div(hundred).Round(2)
}

// ReleaseSplit делит сумму этапа на выплату фрилансеру и комиссию платформы.
// Процент берётся из контракта, при его отсутствии применяется ставка
// платформы по умолчанию.
func (c *FeeCalculator) ReleaseSplit(contract *models.Contract, amount decimal.Decimal) (net, fee decimal.Decimal) {
	percent := c.defaultPlatformFee
	if contract.PlatformFeePercent.Valid {
		percent = contract.PlatformFeePercent.Decimal
	}

	fee = amount.Mul(percent).Div(hundred).Round(2)
	net = amount.Sub(fee)
	return net, fee
}

// ResolutionSplit делит оплаченный эскроу F между выплатой фрилансеру и
// возвратом клиенту по исходу спора. Комиссия при расчёте спора не
// удерживается: release + refund всегда в точности равно funded.
func (c *FeeCalculator) ResolutionSplit(status string, funded, resolutionAmount decimal.Decimal) (release, refund decimal.Decimal) {
	switch status {
	case models.DisputeStatusResolvedFreelancer:
		return funded, decimal.Zero
	case models.DisputeStatusResolvedClient:
		return decimal.Zero, funded
	case models.DisputeStatusResolvedSplit:
		release = resolutionAmount
		if release.GreaterThan(funded) {
			release = funded
		}
		if release.IsNegative() {
			release = decimal.Zero
		}
		return release, funded.Sub(release)
	}
	return decimal.Zero, decimal.Zero
}
