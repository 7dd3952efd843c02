package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestLogging_LevelsByRoute(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		status int
		logged bool
	}{
		{name: "webhook", path: "/webhook/telegram", status: http.StatusAccepted, logged: true},
		{name: "probe is quiet", path: "/healthz", status: http.StatusOK, logged: false},
		{name: "router middlewares skip unmatched paths", path: "/nope", status: http.StatusNotFound, logged: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

			r := mux.NewRouter()
			r.Use(Logging(log), Metrics)
			r.HandleFunc("/webhook/telegram", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			})
			r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, tc.status, rec.Code)
			if tc.logged {
				assert.Contains(t, buf.String(), "path="+tc.path)
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestRouteName(t *testing.T) {
	var got string
	r := mux.NewRouter()
	r.HandleFunc("/chats/{id}", func(_ http.ResponseWriter, req *http.Request) {
		got = routeName(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chats/42", nil))
	assert.Equal(t, "/chats/{id}", got)

	assert.Equal(t, "unmatched", routeName(httptest.NewRequest(http.MethodGet, "/", nil)))
}
