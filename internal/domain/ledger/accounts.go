package ledger

import (
	"fmt"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/sales"
)

// ChartOfAccounts maps posting roles to account codes. Codes come from
// configuration; the engine only checks that every role is filled.
type ChartOfAccounts struct {
	Cash         string `koanf:"cash" json:"cash"`
	Card         string `koanf:"card" json:"card"`
	BankTransfer string `koanf:"bank_transfer" json:"bankTransfer"`
	MobileMoney  string `koanf:"mobile_money" json:"mobileMoney"`

	AccountsReceivable string `koanf:"accounts_receivable" json:"accountsReceivable"`
	COGS               string `koanf:"cogs" json:"cogs"`
	Inventory          string `koanf:"inventory" json:"inventory"`
	TaxPayable         string `koanf:"tax_payable" json:"taxPayable"`
	DiscountExpense    string `koanf:"discount_expense" json:"discountExpense"`
	FeeExpense         string `koanf:"fee_expense" json:"feeExpense"`
	Revenue            string `koanf:"revenue" json:"revenue"`
}

// Validate reports the first empty role.
func (c ChartOfAccounts) Validate() error {
	for _, role := range []struct {
		name, code string
	}{
		{"cash", c.Cash},
		{"card", c.Card},
		{"bank_transfer", c.BankTransfer},
		{"mobile_money", c.MobileMoney},
		{"accounts_receivable", c.AccountsReceivable},
		{"cogs", c.COGS},
		{"inventory", c.Inventory},
		{"tax_payable", c.TaxPayable},
		{"discount_expense", c.DiscountExpense},
		{"fee_expense", c.FeeExpense},
		{"revenue", c.Revenue},
	} {
		if strings.TrimSpace(role.code) == "" {
			return apperror.NewValidation(fmt.Sprintf("chart of accounts: %s account code is required", role.name))
		}
	}
	return nil
}

// PaymentAccount returns the account a payment method settles into.
// The switch covers every PaymentMethod; an unknown value is a programming
// error since methods are parsed before they reach the ledger.
func (c ChartOfAccounts) PaymentAccount(m sales.PaymentMethod) string {
	switch m {
	case sales.MethodCash:
		return c.Cash
	case sales.MethodCard:
		return c.Card
	case sales.MethodBankTransfer:
		return c.BankTransfer
	case sales.MethodMobileMoney:
		return c.MobileMoney
	}
	panic(fmt.Sprintf("ledger: unmapped payment method %q", m))
}

// DefaultChart is a conventional small-business chart.
func DefaultChart() ChartOfAccounts {
	return ChartOfAccounts{
		Cash:               "1000",
		Card:               "1010",
		BankTransfer:       "1020",
		MobileMoney:        "1030",
		AccountsReceivable: "1100",
		Inventory:          "1200",
		TaxPayable:         "2100",
		Revenue:            "4000",
		COGS:               "5000",
		DiscountExpense:    "5100",
		FeeExpense:         "5200",
	}
}
