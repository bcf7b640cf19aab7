package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-quote-backend/internal/domain"
)

type fakeSender struct {
	sent     []*mail.SGMailV3
	response *rest.Response
	err      error
}

func (f *fakeSender) Send(email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	return f.response, f.err
}

func failedSync() *domain.SyncResult {
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	return &domain.SyncResult{
		RunID: "run-1",
		State: domain.SyncStatePartiallyFailed,
		PerCollection: map[domain.Collection]domain.CollectionResult{
			domain.CollectionProducts:   {Success: true, Upserted: 12},
			domain.CollectionGenerators: {Error: "fetch generators from source: quota <exceeded>"},
		},
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
	}
}

func TestSendGridAlertService_SendSyncAlert(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		sender := &fakeSender{response: &rest.Response{StatusCode: 202}}
		svc := newAlertService(sender, "sync@example.com", "ops@example.com")

		err := svc.SendSyncAlert(ctx, failedSync(), []string{"fetch generators from source: quota <exceeded>"})
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)

		msg := sender.sent[0]
		assert.Equal(t, "Catalog sync PARTIALLY_FAILED (run run-1)", msg.Subject)
		assert.Equal(t, "sync@example.com", msg.From.Address)
		require.Len(t, msg.Content, 2)
		assert.Contains(t, msg.Content[0].Value, "generators")
		assert.Contains(t, msg.Content[0].Value, "upserted=12")
		assert.Contains(t, msg.Content[1].Value, "quota &lt;exceeded&gt;")
	})

	t.Run("ProviderRejects", func(t *testing.T) {
		sender := &fakeSender{response: &rest.Response{StatusCode: 401, Body: "unauthorized"}}
		svc := newAlertService(sender, "sync@example.com", "ops@example.com")

		err := svc.SendSyncAlert(ctx, failedSync(), nil)
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("TransportError", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("dial tcp: timeout")}
		svc := newAlertService(sender, "sync@example.com", "ops@example.com")

		err := svc.SendSyncAlert(ctx, failedSync(), nil)
		assert.ErrorContains(t, err, "dial tcp")
	})

	t.Run("LongErrorListIsTruncated", func(t *testing.T) {
		sender := &fakeSender{response: &rest.Response{StatusCode: 202}}
		svc := newAlertService(sender, "sync@example.com", "ops@example.com")
		svc.maxLines = 3

		errs := make([]string, 10)
		for i := range errs {
			errs[i] = fmt.Sprintf("row %d bad", i)
		}
		require.NoError(t, svc.SendSyncAlert(ctx, failedSync(), errs))
		plain := sender.sent[0].Content[0].Value
		assert.Contains(t, plain, "row 2 bad")
		assert.NotContains(t, plain, "row 3 bad")
		assert.Contains(t, plain, "and 7 more")
	})
}
