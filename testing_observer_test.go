package wsclient

import (
	"github.com/stretchr/testify/mock"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) OnStatusChange(s ConnectionStatus) {
	m.Called(s)
}

func (m *mockObserver) OnMessage(text string) {
	m.Called(text)
}
