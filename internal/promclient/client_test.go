// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package promclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"seedfast/querygate/internal/optimizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promServer(t *testing.T, status int, body string, seen *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*seen = append(*seen, r.Form.Get("query"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		agg     optimizer.Aggregation
		want    float64
		wantErr bool
		expr    string
	}{
		{
			name:   "vector",
			status: http.StatusOK,
			body:   `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"42"]}]}}`,
			agg:    optimizer.SeriesCount,
			want:   42,
			expr:   "count(last_over_time(http_requests_total[5m]))",
		},
		{
			name:   "empty vector is zero",
			status: http.StatusOK,
			body:   `{"status":"success","data":{"resultType":"vector","result":[]}}`,
			agg:    optimizer.SampleCount,
			want:   0,
			expr:   "sum(count_over_time(http_requests_total[5m]))",
		},
		{
			name:   "scalar",
			status: http.StatusOK,
			body:   `{"status":"success","data":{"resultType":"scalar","result":[1700000000,"7"]}}`,
			agg:    optimizer.SampleCount,
			want:   7,
			expr:   "sum(count_over_time(http_requests_total[5m]))",
		},
		{
			name:    "api error",
			status:  http.StatusBadRequest,
			body:    `{"status":"error","errorType":"bad_data","error":"parse error"}`,
			agg:     optimizer.SeriesCount,
			wantErr: true,
			expr:    "count(last_over_time(http_requests_total[5m]))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []string
			srv := promServer(t, tt.status, tt.body, &seen)
			c, err := New(srv.URL, nil)
			require.NoError(t, err)

			got, err := c.Aggregate(context.Background(), "http_requests_total", "5m", tt.agg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NotEmpty(t, seen)
			assert.Equal(t, tt.expr, seen[0])
		})
	}
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}
