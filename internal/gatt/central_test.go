package gatt

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwmon-panel/internal/telemetry"
	"github.com/temoto/hwmon-panel/log2"
)

// loopChar delivers writes straight into ingestion endpoint, like radio would.
type loopChar struct {
	endpoint telemetry.EndpointFunc
	err      error
}

func (self loopChar) WriteWithoutResponse(p []byte) (int, error) {
	if self.err != nil {
		return 0, self.err
	}
	return self.endpoint(p, 0)
}

func TestCentralLoopback(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	ingest := telemetry.NewService(nil, log)
	chars := make(map[telemetry.Kind]CharWriter)
	for _, k := range telemetry.AllKinds {
		chars[k] = loopChar{endpoint: ingest.Endpoint(k)}
	}
	c := NewCentral(chars, log)

	rec := telemetry.NetworkRecord{DownBitsPerSec: 1200, UpBitsPerSec: 80}
	require.NoError(t, c.WriteRecord(telemetry.KindNetwork, rec.Encode()))
	assert.Equal(t, rec, ingest.Registers().Network())

	// panel rejects, central sees it only because loopback returns endpoint error
	err := c.WriteRecord(telemetry.KindScalar, []byte{1, 2, 3})
	assert.True(t, telemetry.IsPayloadError(err), errors.ErrorStack(err))

	require.NoError(t, c.Close())
	assert.True(t, errors.IsNotFound(c.WriteRecord(telemetry.KindUsage, make([]byte, 12))))
}

func TestCentralWriteError(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	c := NewCentral(map[telemetry.Kind]CharWriter{
		telemetry.KindUsage: loopChar{err: errors.New("link lost")},
	}, log)
	err := c.WriteRecord(telemetry.KindUsage, make([]byte, 12))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link lost")
	assert.True(t, errors.IsNotFound(c.WriteRecord(telemetry.KindScalar, make([]byte, 16))))
}
