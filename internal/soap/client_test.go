package soap

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

func clientFor(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portText, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	return NewClient(Config{Host: host, Port: port, APIPath: "MT/Laboratory/Balance/XprXsr/V03/MT"})
}

func TestCallEncodesEnvelopeAndDecodesResult(t *testing.T) {
	var gotAction, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = w.Write([]byte(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
			`<GetWeightResponse xmlns="http://www.mt.com/MT.Laboratory.Balance.XprXsr.V03">` +
			`<GetWeightResult><Outcome>Success</Outcome><ErrorState>Ok</ErrorState></GetWeightResult>` +
			`</GetWeightResponse></s:Body></s:Envelope>`))
	}))
	defer srv.Close()

	client := clientFor(t, srv)
	resp, err := client.Call(context.Background(), "BasicHttpBinding_IWeighingService", "GetWeight", []wire.Arg{
		{Name: "SessionId", Value: "abc"},
		{Name: "WeighingCaptureMode", Value: "Stable"},
		{Name: "WeightDetectionMode", Value: nil},
	})
	require.NoError(t, err)

	assert.Equal(t, `"http://www.mt.com/MT.Laboratory.Balance.XprXsr.V03/IWeighingService/GetWeight"`, gotAction)
	assert.Contains(t, gotBody, `<GetWeight xmlns="http://www.mt.com/MT.Laboratory.Balance.XprXsr.V03">`)
	assert.Contains(t, gotBody, "<SessionId>abc</SessionId>")
	assert.Contains(t, gotBody, "<WeighingCaptureMode>Stable</WeighingCaptureMode>")
	assert.Contains(t, gotBody, `<WeightDetectionMode xsi:nil="true">`)

	assert.Equal(t, "Success", resp.ChildText("Outcome"))
	assert.Equal(t, "Ok", resp.ChildText("ErrorState"))
}

func TestCallSurfacesFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
			`<s:Fault><faultcode>a:SessionIdFault</faultcode><faultstring>session unknown</faultstring>` +
			`<detail><SessionIdFault><Message>stale session id</Message></SessionIdFault></detail>` +
			`</s:Fault></s:Body></s:Envelope>`))
	}))
	defer srv.Close()

	client := clientFor(t, srv)
	_, err := client.Call(context.Background(), "BasicHttpBinding_ISessionService", "CloseSession", nil)
	require.Error(t, err)

	var fault *Fault
	require.True(t, errors.As(err, &fault), "got: %v", err)
	assert.Equal(t, FaultKindSession, fault.Kind())
	assert.Equal(t, "session unknown", fault.Reason)
	assert.Contains(t, fault.Detail, "stale session id")
}

func TestCallConnectionRefusedIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := clientFor(t, srv)
	_, err := client.Call(context.Background(), "BasicHttpBinding_IBasicService", "Probe", nil)
	require.Error(t, err)

	var transport *TransportError
	assert.True(t, errors.As(err, &transport), "got: %v", err)
}

func TestCallRejectsUnsupportedArgumentTypes(t *testing.T) {
	client := NewClient(Config{Host: "127.0.0.1", Port: 1, APIPath: "x"})
	_, err := client.Call(context.Background(), "Svc", "Method", []wire.Arg{
		{Name: "Bad", Value: struct{}{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}
