package worker

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/trace-api/internal/model"
	"github.com/jwalitptl/trace-api/pkg/logger"
)

type fakeOrgRepo struct {
	orgs map[uuid.UUID]*model.Organization
}

func (f *fakeOrgRepo) Create(ctx context.Context, org *model.Organization) error {
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeOrgRepo) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, assert.AnError
	}
	return org, nil
}

func (f *fakeOrgRepo) List(ctx context.Context) ([]*model.Organization, error) {
	return nil, nil
}

func addOrg(repo *fakeOrgRepo, name, email string) *model.Organization {
	org := &model.Organization{Name: name, ContactEmail: email}
	org.ID = uuid.New()
	repo.orgs[org.ID] = org
	return org
}

func recallMessage(t *testing.T, payload model.RecallExecutedPayload) []byte {
	raw, err := json.Marshal(struct {
		Type    string                      `json:"type"`
		Payload model.RecallExecutedPayload `json:"payload"`
	}{Type: model.EventRecallExecuted, Payload: payload})
	require.NoError(t, err)
	return raw
}

func TestNotifierEmailsHoldingOrganization(t *testing.T) {
	orgs := &fakeOrgRepo{orgs: make(map[uuid.UUID]*model.Organization)}
	sender := addOrg(orgs, "Meridian Devices", "recalls@meridian.example")
	receiver := addOrg(orgs, "Harbor Distribution", "ops@harbor.example")

	var sent *gomail.Message
	n := &RecallNotifier{
		orgs:   orgs,
		send:   func(m *gomail.Message) error { sent = m; return nil },
		from:   "recalls@trace.local",
		logger: logger.NewLogger(&logger.Config{Output: io.Discard}),
	}

	raw := recallMessage(t, model.RecallExecutedPayload{
		RefType:     model.RefShipment,
		RefID:       uuid.New(),
		Reason:      "packaging defect",
		NotifyOrgID: receiver.ID,
		RecalledBy:  sender.ID,
		RecalledAt:  time.Now(),
	})
	require.NoError(t, n.handle(context.Background(), raw))

	require.NotNil(t, sent)
	assert.Equal(t, []string{receiver.ContactEmail}, sent.GetHeader("To"))
	assert.Equal(t, []string{"recalls@trace.local"}, sent.GetHeader("From"))
}

func TestNotifierRejectsUnknownOrganization(t *testing.T) {
	orgs := &fakeOrgRepo{orgs: make(map[uuid.UUID]*model.Organization)}

	n := &RecallNotifier{
		orgs:   orgs,
		send:   func(m *gomail.Message) error { t.Fatal("no email expected"); return nil },
		from:   "recalls@trace.local",
		logger: logger.NewLogger(&logger.Config{Output: io.Discard}),
	}

	raw := recallMessage(t, model.RecallExecutedPayload{
		RefType:     model.RefShipment,
		RefID:       uuid.New(),
		NotifyOrgID: uuid.New(),
	})
	assert.Error(t, n.handle(context.Background(), raw))
}

func TestNotifierRejectsMalformedMessage(t *testing.T) {
	n := &RecallNotifier{
		logger: logger.NewLogger(&logger.Config{Output: io.Discard}),
	}
	assert.Error(t, n.handle(context.Background(), []byte("not json")))
}
