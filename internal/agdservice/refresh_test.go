package agdservice_test

import (
	"context"
	"testing"

	"github.com/caionorder/redirectd/internal/agdservice"
	"github.com/stretchr/testify/assert"
)

func TestRefresherFunc(t *testing.T) {
	var called bool
	f := agdservice.RefresherFunc(func(context.Context) (err error) {
		called = true

		return testError
	})

	err := f.Refresh(context.Background())
	assert.ErrorIs(t, err, testError)
	assert.True(t, called)
}
