// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/candlelight"
)

func TestTraced(t *testing.T) {
	assert := assert.New(t)
	tracing, err := candlelight.New(candlelight.Config{
		ApplicationName: applicationName,
		Provider:        "noop",
	})
	require.NoError(t, err)

	r := mux.NewRouter()
	r.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(mux.Vars(r)["id"]))
	})
	traced(r, "server_test", tracing)

	for _, header := range []string{"", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"} {
		req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
		if header != "" {
			req.Header.Set("traceparent", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(http.StatusOK, rec.Code)
		assert.Equal("7", rec.Body.String())
	}
}
