package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdge_LegalTransitions(t *testing.T) {
	cases := []struct {
		cmd  Command
		from TransactionStatus
		to   TransactionStatus
		role ActorRole
	}{
		{CmdAccept, StatusAwaitingSellerAcceptance, StatusAwaitingPayment, RoleSeller},
		{CmdFund, StatusAwaitingPayment, StatusPaymentProcessing, RoleBuyer},
		{CmdMarkDelivered, StatusFunded, StatusInDelivery, RoleSeller},
		{CmdConfirmReceipt, StatusInDelivery, StatusReleased, RoleBuyer},
		{CmdOpenDispute, StatusFunded, StatusDisputeOpen, RoleAnyParty},
		{CmdOpenDispute, StatusInDelivery, StatusDisputeOpen, RoleAnyParty},
		{CmdResolveDispute, StatusDisputeOpen, StatusDisputeResolvedRefund, RoleAdmin},
		{CmdCancel, StatusAwaitingSellerAcceptance, StatusCancelled, RoleBuyerOrAdmin},
		{CmdCancel, StatusAwaitingPayment, StatusCancelled, RoleBuyerOrAdmin},
	}
	for _, tc := range cases {
		t.Run(string(tc.cmd)+"_from_"+string(tc.from), func(t *testing.T) {
			tr, ok := Edge(tc.cmd, tc.from)
			require.True(t, ok)
			assert.Equal(t, tc.to, tr.To)
			assert.Equal(t, tc.role, tr.Role)
		})
	}
}

func TestEdge_IllegalTransitions(t *testing.T) {
	cases := []struct {
		cmd  Command
		from TransactionStatus
	}{
		{CmdAccept, StatusAwaitingPayment},
		{CmdFund, StatusFunded},
		{CmdFund, StatusPaymentProcessing}, // double-fund
		{CmdMarkDelivered, StatusInDelivery},
		{CmdConfirmReceipt, StatusFunded},
		{CmdOpenDispute, StatusAwaitingPayment},
		{CmdOpenDispute, StatusReleased}, // no dispute after release
		{CmdOpenDispute, StatusDisputeOpen},
		{CmdResolveDispute, StatusFunded},
		{CmdCancel, StatusFunded}, // no cancel once money moved
		{CmdCancel, StatusReleased},
	}
	for _, tc := range cases {
		t.Run(string(tc.cmd)+"_from_"+string(tc.from), func(t *testing.T) {
			_, ok := Edge(tc.cmd, tc.from)
			assert.False(t, ok)
		})
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	terminals := []TransactionStatus{
		StatusReleased, StatusDisputeResolvedRefund, StatusDisputeResolvedRelease, StatusCancelled,
	}
	commands := []Command{
		CmdAccept, CmdFund, CmdMarkDelivered, CmdConfirmReceipt,
		CmdOpenDispute, CmdResolveDispute, CmdCancel,
	}
	for _, st := range terminals {
		require.True(t, st.Terminal(), st)
		for _, cmd := range commands {
			_, ok := Edge(cmd, st)
			assert.False(t, ok, "edge %s from terminal %s", cmd, st)
		}
	}
}

func TestOutcomeTransition(t *testing.T) {
	from, to := OutcomeTransition(true)
	assert.Equal(t, StatusPaymentProcessing, from)
	assert.Equal(t, StatusFunded, to)

	from, to = OutcomeTransition(false)
	assert.Equal(t, StatusPaymentProcessing, from)
	assert.Equal(t, StatusAwaitingPayment, to)
}

func TestResolveTarget(t *testing.T) {
	assert.Equal(t, StatusDisputeResolvedRefund, ResolveTarget(ResolutionRefund))
	assert.Equal(t, StatusDisputeResolvedRelease, ResolveTarget(ResolutionRelease))
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		BuyerID:       "b1",
		SellerEmail:   "seller@example.com",
		Title:         "Website Development",
		AmountCents:   100000,
		Currency:      "ZAR",
		DeliveryTerms: "14 days",
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.AmountCents = 0
	err := bad.Validate()
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "amount_cents", verrs[0].Field)

	bad = valid
	bad.SellerEmail = ""
	assert.Error(t, bad.Validate())

	// a linked seller makes the invite email optional
	sellerID := "s1"
	bad.SellerID = &sellerID
	assert.NoError(t, bad.Validate())
}
