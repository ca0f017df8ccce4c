package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockToken is a mock paho token. Tests usually build one with NewCompletedToken
// or NewStalledToken instead of setting expectations by hand.
type MockToken struct {
	mock.Mock
}

func (m *MockToken) Error() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockToken) Wait() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockToken) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(<-chan struct{})
}

func (m *MockToken) WaitTimeout(timeout time.Duration) bool {
	args := m.Called(timeout)
	return args.Bool(0)
}

// NewCompletedToken returns a token that completes immediately with err.
func NewCompletedToken(err error) *MockToken {
	token := new(MockToken)
	token.On("WaitTimeout", mock.Anything).Return(true)
	token.On("Wait").Return(true)
	token.On("Error").Return(err)
	return token
}

// NewStalledToken returns a token that never completes.
func NewStalledToken() *MockToken {
	token := new(MockToken)
	token.On("WaitTimeout", mock.Anything).Return(false)
	token.On("Error").Return(nil)
	return token
}
