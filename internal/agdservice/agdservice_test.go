package agdservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/caionorder/redirectd/internal/agdservice"
)

func TestMain(m *testing.M) {
	testutil.DiscardLogOutput(m)
}

// testTimeout is the timeout for common test operations.
const testTimeout = 1 * time.Second

const testError errors.Error = "test error"

// sig is a convenient alias for struct{} when it's used as a signal for
// synchronization.
type sig = struct{}

// fakeRefresher is an [agdservice.Refresher] for tests.
type fakeRefresher struct {
	onRefresh func(ctx context.Context) (err error)
}

// type check
var _ agdservice.Refresher = (*fakeRefresher)(nil)

// Refresh implements the [agdservice.Refresher] interface for *fakeRefresher.
func (r *fakeRefresher) Refresh(ctx context.Context) (err error) {
	return r.onRefresh(ctx)
}

// newTestRefresher is a helper that returns refr and linked syncCh channel.
func newTestRefresher(t *testing.T, respErr error) (refr *fakeRefresher, syncCh chan sig) {
	t.Helper()

	pt := testutil.PanicT{}

	syncCh = make(chan sig, 1)
	refr = &fakeRefresher{
		onRefresh: func(_ context.Context) (err error) {
			testutil.RequireSend(pt, syncCh, sig{}, testTimeout)

			return respErr
		},
	}

	return refr, syncCh
}
