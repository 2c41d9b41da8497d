package wemo

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testDeviceType = "urn:Belkin:device:insight:1"

func setupXML() string {
	return `<?xml version="1.0"?>
<root xmlns="urn:Belkin:device-1-0">
  <device>
    <deviceType>` + testDeviceType + `</deviceType>
    <friendlyName>Office Plug</friendlyName>
  </device>
</root>`
}

func insightResponse(params string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <u:GetInsightParamsResponse xmlns:u="urn:Belkin:service:insight:1">
      <InsightParams>` + params + `</InsightParams>
    </u:GetInsightParamsResponse>
  </s:Body>
</s:Envelope>`
}

// newInsightDevice serves a fake Insight device: setup.xml plus the
// insight control endpoint.
func newInsightDevice(t *testing.T, params string, delay time.Duration) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(setupPath, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		fmt.Fprint(w, setupXML())
	})
	mux.HandleFunc(insightControlPath, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		if !strings.Contains(r.Header.Get("SOAPACTION"), "GetInsightParams") {
			http.Error(w, "unexpected action", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, insightResponse(params))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func hostPort(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestQuery(t *testing.T) {
	srv := newInsightDevice(t, "8|1704575558|3600|7200|86400|1209600|25|12500|720000|20400000|8000", 0)
	c := NewClient(hostPort(t, srv))

	r, err := c.Query(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8, r.RawState)
	require.True(t, r.On())
	require.Equal(t, 3600.0, r.OnForSeconds)
	require.Equal(t, 7200.0, r.OnTodaySeconds)
	require.Equal(t, 86400.0, r.TotalOnSeconds)
	require.Equal(t, 12500.0, r.PowerMilliwatts)
	require.Equal(t, 720000.0, r.TodayEnergyMilliwattMinutes)
	require.Equal(t, 20400000.0, r.LifetimeEnergyMilliwattMinutes)
	require.Equal(t, testDeviceType, r.DeviceType)
	require.False(t, r.CollectedAt.IsZero())
}

func TestQueryMalformedNumbersBecomeNaN(t *testing.T) {
	srv := newInsightDevice(t, "1|1704575558|x|7200|86400|1209600|25|y|720000|20400000|8000", 0)
	c := NewClient(hostPort(t, srv))

	r, err := c.Query(context.Background())
	require.NoError(t, err)
	require.True(t, math.IsNaN(r.OnForSeconds))
	require.True(t, math.IsNaN(r.PowerMilliwatts))
	require.Equal(t, 7200.0, r.OnTodaySeconds)
}

func TestQueryUnparseableState(t *testing.T) {
	srv := newInsightDevice(t, "banana|0|0|0|0|0|0|0|0|0|0", 0)
	c := NewClient(hostPort(t, srv))

	_, err := c.Query(context.Background())
	require.ErrorIs(t, err, ErrProtocol)
}

func TestQueryShortPayload(t *testing.T) {
	srv := newInsightDevice(t, "1|2|3", 0)
	c := NewClient(hostPort(t, srv))

	_, err := c.Query(context.Background())
	require.ErrorIs(t, err, ErrProtocol)
}

func TestQueryProtocolErrorOnBadStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(setupPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, setupXML())
	})
	mux.HandleFunc(insightControlPath, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(hostPort(t, srv))
	_, err := c.Query(context.Background())
	require.ErrorIs(t, err, ErrProtocol)
	require.NotErrorIs(t, err, ErrUnreachable)
}

func TestQueryTimeout(t *testing.T) {
	srv := newInsightDevice(t, "1|0|0|0|0|0|0|0|0|0|0", 500*time.Millisecond)
	c := NewClient(hostPort(t, srv), WithTimeout(50*time.Millisecond))

	_, err := c.Query(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	// Timeout is a subset of unreachable.
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestQueryUnreachable(t *testing.T) {
	srv := newInsightDevice(t, "1|0|0|0|0|0|0|0|0|0|0", 0)
	addr := hostPort(t, srv)
	srv.Close()

	c := NewClient(addr, WithTimeout(time.Second))
	_, err := c.Query(context.Background())
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestQueryProbesCandidatePorts(t *testing.T) {
	srv := newInsightDevice(t, "1|0|60|120|180|1209600|25|1000|60000|120000|8000", 0)
	host, port, err := net.SplitHostPort(hostPort(t, srv))
	require.NoError(t, err)

	// A port nothing listens on, then the live one.
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := dead.Addr().(*net.TCPAddr).Port
	require.NoError(t, dead.Close())

	var livePort int
	_, err = fmt.Sscan(port, &livePort)
	require.NoError(t, err)

	c := NewClient(host, WithPorts(deadPort, livePort))
	r, err := c.Query(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1.0, r.PowerMilliwatts/1000)

	// The resolved port is cached for the next query.
	require.Equal(t, livePort, c.port)
}
