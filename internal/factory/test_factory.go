package factory

import (
	"time"

	"github.com/mcoot/gamebank/internal/dependencies/mocks"
	"github.com/mcoot/gamebank/internal/services/ledger"
	"github.com/mcoot/gamebank/internal/storage/memory"
	"github.com/mcoot/gamebank/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(ledger.DefaultConfig())
}

// NewTestAppWithConfig creates a test App enforcing the given ledger rules
func NewTestAppWithConfig(cfg ledger.Config) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	store := memory.New(mockClock)

	app := newWithDependencies(store, mockClock, cfg, testutil.NopLogger())

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}
