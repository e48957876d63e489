/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-msgthrottle/log/logtest"
	"github.com/acronis/go-msgthrottle/testutil"
)

func serve(t *testing.T, s *ProfServer, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.HTTPServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestProfServer_Routes(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_total", Help: "Number of orders."})
	reg.MustRegister(counter)
	counter.Add(3)

	logRecorder := logtest.NewRecorder()
	s := NewWithOpts(&Config{Address: "127.0.0.1:0"}, logRecorder, Opts{Gatherer: reg})
	require.Equal(t, "http://127.0.0.1:0", s.URL)

	code, body := serve(t, s, "/debug/pprof/")
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, body)

	code, body = serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "orders_total 3")

	code, _ = serve(t, s, "/unknown")
	require.Equal(t, http.StatusNotFound, code)

	entry, found := logRecorder.FindEntry("request completed")
	require.True(t, found)
	reqIDField, found := entry.FindField("request_id")
	require.True(t, found)
	require.NotEmpty(t, string(reqIDField.Bytes))
}

func TestProfServer_StartStop(t *testing.T) {
	s := New(&Config{Address: "127.0.0.1:0"}, logtest.NewRecorder())
	fatalErr := make(chan error, 1)
	go s.Start(fatalErr)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, s.Stop(true))
	testutil.RequireNoErrorInChannel(t, fatalErr)
}
