package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/domain/shared/money"
)

var (
	createdAt = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	anchorAt  = time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func ownerAccount() PayoutMethod {
	return PayoutMethod{
		AccountName:   "Somchai Jaidee",
		AccountNumber: "123-4-56789-0",
		BankName:      strPtr("Kasikorn Bank"),
		IsPrimary:     true,
	}
}

func matchingSlip() SlipRecord {
	return SlipRecord{
		AccountName:   "Somchai Jaidee",
		AccountNumber: "123-4-56789-0",
		BankName:      "Kasikorn Bank",
		Amount:        money.Units(1200, "THB"),
		TransferDate:  time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC),
	}
}

func expectation() Expectation {
	return NewExpectation(money.Units(1200, "THB"), createdAt, anchorAt)
}

func TestReconcile_AllMatch(t *testing.T) {
	res := Reconcile(matchingSlip(), expectation(), ownerAccount())

	assert.True(t, res.AccountMatch)
	assert.True(t, res.AmountMatch)
	assert.True(t, res.DateMatch)
	assert.Equal(t, VerdictAccepted, res.Verdict)
	assert.Empty(t, res.Mismatches)
	assert.True(t, res.Accepted())
}

func TestReconcile_AmountTolerance(t *testing.T) {
	cases := []struct {
		name  string
		units int64
		match bool
	}{
		{"three over", 1203, true},
		{"ten over", 1210, false},
		{"just under five", 0, true},
		{"exactly five", 1205, false},
		{"four under", 1196, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slip := matchingSlip()
			if tc.units == 0 {
				slip.Amount = money.Must(120499, "THB")
			} else {
				slip.Amount = money.Units(tc.units, "THB")
			}

			res := Reconcile(slip, expectation(), ownerAccount())

			assert.Equal(t, tc.match, res.AmountMatch)
			assert.True(t, res.AccountMatch)
			assert.True(t, res.DateMatch)
		})
	}
}

func TestReconcile_AccountRules(t *testing.T) {
	t.Run("name whitespace is ignored", func(t *testing.T) {
		slip := matchingSlip()
		slip.AccountName = "  Som chai\tJaidee "
		assert.True(t, Reconcile(slip, expectation(), ownerAccount()).AccountMatch)
	})

	t.Run("name case is significant", func(t *testing.T) {
		slip := matchingSlip()
		slip.AccountName = "SOMCHAI JAIDEE"
		res := Reconcile(slip, expectation(), ownerAccount())
		assert.False(t, res.AccountMatch)
		assert.Equal(t, []Field{FieldAccountName}, res.Mismatches)
	})

	t.Run("bank name is trimmed", func(t *testing.T) {
		slip := matchingSlip()
		slip.BankName = " Kasikorn Bank  "
		assert.True(t, Reconcile(slip, expectation(), ownerAccount()).AccountMatch)
	})

	t.Run("promptpay has no bank name", func(t *testing.T) {
		payout := ownerAccount()
		payout.BankName = nil
		slip := matchingSlip()
		slip.BankName = ""
		assert.True(t, Reconcile(slip, expectation(), payout).AccountMatch)
	})

	t.Run("account number must be exact", func(t *testing.T) {
		slip := matchingSlip()
		slip.AccountNumber = "1234567890"
		res := Reconcile(slip, expectation(), ownerAccount())
		assert.False(t, res.AccountMatch)
		assert.Contains(t, res.Mismatches, FieldAccountNumber)
	})
}

func TestReconcile_DateWindow(t *testing.T) {
	cases := []struct {
		name  string
		at    time.Time
		match bool
	}{
		{"two days before creation", createdAt.Add(-48 * time.Hour), true},
		{"just before the window", createdAt.Add(-48*time.Hour - time.Minute), false},
		{"two days after the anchor", anchorAt.Add(48 * time.Hour), true},
		{"past the window", anchorAt.Add(49 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slip := matchingSlip()
			slip.TransferDate = tc.at
			res := Reconcile(slip, expectation(), ownerAccount())
			assert.Equal(t, tc.match, res.DateMatch)
		})
	}
}

func TestReconcile_SubMatchesAreIndependent(t *testing.T) {
	flips := map[string]struct {
		mutate func(*SlipRecord)
		field  Field
	}{
		"amount":         {func(s *SlipRecord) { s.Amount = money.Units(1300, "THB") }, FieldAmount},
		"account number": {func(s *SlipRecord) { s.AccountNumber = "999" }, FieldAccountNumber},
		"transfer date":  {func(s *SlipRecord) { s.TransferDate = anchorAt.Add(30 * 24 * time.Hour) }, FieldTransferDate},
	}
	for name, flip := range flips {
		t.Run(name, func(t *testing.T) {
			slip := matchingSlip()
			flip.mutate(&slip)

			res := Reconcile(slip, expectation(), ownerAccount())

			assert.Equal(t, VerdictFlagged, res.Verdict)
			assert.Equal(t, []Field{flip.field}, res.Mismatches)
			assert.Equal(t, flip.field != FieldAmount, res.AmountMatch)
			assert.Equal(t, flip.field != FieldTransferDate, res.DateMatch)
			assert.Equal(t, flip.field != FieldAccountNumber, res.AccountMatch)
		})
	}
}

func TestReconcile_EnumeratesEveryMismatch(t *testing.T) {
	slip := SlipRecord{
		AccountName:   "Someone Else",
		AccountNumber: "000",
		BankName:      "Other Bank",
		Amount:        money.Units(1, "THB"),
		TransferDate:  createdAt.AddDate(0, -1, 0),
	}

	res := Reconcile(slip, expectation(), ownerAccount())

	assert.Equal(t, []Field{FieldAccountNumber, FieldBankName, FieldAccountName, FieldAmount, FieldTransferDate}, res.Mismatches)
}

func TestPrimaryMethod(t *testing.T) {
	_, err := PrimaryMethod(nil)
	assert.ErrorIs(t, err, ErrNoPayoutMethod)

	first := PayoutMethod{AccountNumber: "1"}
	second := PayoutMethod{AccountNumber: "2", IsPrimary: true}

	got, err := PrimaryMethod([]PayoutMethod{first, second})
	require.NoError(t, err)
	assert.Equal(t, "2", got.AccountNumber)

	got, err = PrimaryMethod([]PayoutMethod{first, {AccountNumber: "3"}})
	require.NoError(t, err)
	assert.Equal(t, "1", got.AccountNumber)
}

func TestNewReport(t *testing.T) {
	rep := NewReport("r1", "rental-1", matchingSlip(), ownerAccount(), expectation(), anchorAt)
	assert.Equal(t, VerdictAccepted, rep.Result.Verdict)
	assert.Equal(t, "rental-1", rep.RentalID)
}
