package errcoll_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/caionorder/redirectd/internal/errcoll"
	"github.com/stretchr/testify/assert"
)

func TestWriterCollector_Collect(t *testing.T) {
	buf := &bytes.Buffer{}
	c := errcoll.NewWriterCollector(buf, slogutil.NewDiscardLogger())

	c.Collect(context.Background(), errors.New("test error"))

	assert.Contains(t, buf.String(), "test error")
}
