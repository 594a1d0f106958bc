package cli

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/sixty60/internal/auth"
	"github.com/utafrali/sixty60/internal/basket"
	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/pkg/pagination"
)

type mockAuth struct{ mock.Mock }

func (m *mockAuth) StartOTP(ctx context.Context, phone string) (domain.PendingAuth, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).(domain.PendingAuth), args.Error(1)
}

func (m *mockAuth) CompleteOTP(ctx context.Context, pending domain.PendingAuth, phone, code string) (*auth.Result, error) {
	args := m.Called(ctx, pending, phone, code)
	res, _ := args.Get(0).(*auth.Result)
	return res, args.Error(1)
}

func (m *mockAuth) Login(ctx context.Context, phone, reference, code string) (*auth.Result, error) {
	args := m.Called(ctx, phone, reference, code)
	res, _ := args.Get(0).(*auth.Result)
	return res, args.Error(1)
}

func (m *mockAuth) Hydrate(ctx context.Context, state domain.StoredState) (domain.StoredState, bool, error) {
	args := m.Called(ctx, state)
	return args.Get(0).(domain.StoredState), args.Bool(1), args.Error(2)
}

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) Search(ctx context.Context, session domain.Session, query string, page pagination.Params) (json.RawMessage, error) {
	args := m.Called(ctx, session, query, page)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

type mockOrders struct{ mock.Mock }

func (m *mockOrders) History(ctx context.Context, session domain.Session) (json.RawMessage, error) {
	args := m.Called(ctx, session)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

type mockBasket struct{ mock.Mock }

func (m *mockBasket) AddToBasket(ctx context.Context, session domain.Session, in basket.AddInput) (*basket.Result, error) {
	args := m.Called(ctx, session, in)
	res, _ := args.Get(0).(*basket.Result)
	return res, args.Error(1)
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) PublishSessionAuthenticated(ctx context.Context, session domain.Session) error {
	return m.Called(ctx, session).Error(0)
}

type fakePrompter struct {
	answers []string
	labels  []string
}

func (p *fakePrompter) next(label string) (string, error) {
	p.labels = append(p.labels, label)
	if len(p.answers) == 0 {
		return "", context.Canceled
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func (p *fakePrompter) Ask(label string) (string, error)       { return p.next(label) }
func (p *fakePrompter) AskSecret(label string) (string, error) { return p.next(label) }
