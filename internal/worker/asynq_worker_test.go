package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/pawpledge/internal/queue"
	"github.com/pawpledge/internal/service"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentHandler struct {
	confirmations []uint
	emails        []string
	archives      []uint
	confirmErr    error
	archiveErr    error
}

func (f *fakePaymentHandler) SendPaymentConfirmation(ctx context.Context, ledgerID uint, email string) error {
	f.confirmations = append(f.confirmations, ledgerID)
	f.emails = append(f.emails, email)
	return f.confirmErr
}

func (f *fakePaymentHandler) ArchivePayload(ctx context.Context, ledgerID uint) error {
	f.archives = append(f.archives, ledgerID)
	return f.archiveErr
}

func TestHandlePaymentConfirmationDispatches(t *testing.T) {
	handler := &fakePaymentHandler{}
	consumer := &Consumer{Payments: handler}
	task, err := queue.NewPaymentConfirmationTask(queue.PaymentConfirmationPayload{LedgerID: 9, Email: "donor@pawpledge.test"})
	require.NoError(t, err)

	require.NoError(t, consumer.handlePaymentConfirmation(context.Background(), task))
	assert.Equal(t, []uint{9}, handler.confirmations)
	assert.Equal(t, []string{"donor@pawpledge.test"}, handler.emails)
}

func TestHandlePaymentConfirmationErrorPolicy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{name: "ledger_missing", err: service.ErrPaymentNotFound},
		{name: "email_disabled", err: service.ErrEmailDisabled},
		{name: "recipient_rejected", err: service.ErrEmailRecipientRejected.Wrap(errors.New("550 user unknown")), wantErr: true, skipRetry: true},
		{name: "smtp_timeout", err: errors.New("dial tcp timeout"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer := &Consumer{Payments: &fakePaymentHandler{confirmErr: tt.err}}
			task, err := queue.NewPaymentConfirmationTask(queue.PaymentConfirmationPayload{LedgerID: 1})
			require.NoError(t, err)

			got := consumer.handlePaymentConfirmation(context.Background(), task)
			if !tt.wantErr {
				assert.NoError(t, got)
				return
			}
			require.Error(t, got)
			assert.Equal(t, tt.skipRetry, errors.Is(got, asynq.SkipRetry))
		})
	}
}

func TestHandlePayloadArchive(t *testing.T) {
	handler := &fakePaymentHandler{}
	consumer := &Consumer{Payments: handler}
	task, err := queue.NewPayloadArchiveTask(queue.PayloadArchivePayload{LedgerID: 3})
	require.NoError(t, err)

	require.NoError(t, consumer.handlePayloadArchive(context.Background(), task))
	assert.Equal(t, []uint{3}, handler.archives)

	handler.archiveErr = service.ErrArchiveUnavailable
	assert.Error(t, consumer.handlePayloadArchive(context.Background(), task))
}

func TestHandlersSkipInvalidPayloads(t *testing.T) {
	handler := &fakePaymentHandler{}
	consumer := &Consumer{Payments: handler}

	bad := asynq.NewTask(queue.TaskPaymentConfirmationEmail, []byte("{"))
	err := consumer.handlePaymentConfirmation(context.Background(), bad)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	empty := asynq.NewTask(queue.TaskPaymentArchivePayload, []byte(`{"ledger_id":0}`))
	assert.NoError(t, consumer.handlePayloadArchive(context.Background(), empty))
	assert.Empty(t, handler.archives)

	var nilConsumer *Consumer
	assert.NoError(t, nilConsumer.handlePaymentConfirmation(context.Background(), bad))
	assert.NoError(t, (&Consumer{}).handlePayloadArchive(context.Background(), asynq.NewTask(queue.TaskPaymentArchivePayload, []byte(`{"ledger_id":5}`))))
}
