package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"超时", context.DeadlineExceeded, KindTimeout},
		{"取消", context.Canceled, KindTimeout},
		{"普通错误", errors.New("boom"), KindUpstream},
		{"已归类", NewError("x", "op", KindAuth, nil), KindAuth},
		{"令牌被拒绝", &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}, KindAuth},
		{"令牌服务异常", &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadGateway}}, KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify("x", "op", tt.err).Kind)
		})
	}
	assert.Nil(t, Classify("x", "op", nil))
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, KindAuth, StatusError("x", "op", http.StatusUnauthorized).Kind)
	assert.Equal(t, KindAuth, StatusError("x", "op", http.StatusForbidden).Kind)
	assert.Equal(t, KindTimeout, StatusError("x", "op", http.StatusGatewayTimeout).Kind)
	assert.Equal(t, KindUpstream, StatusError("x", "op", http.StatusInternalServerError).Kind)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "rome", r.URL.Query().Get("q"))
			w.Write([]byte(`{"value": 42}`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{}`))
		case "/denied":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	err := GetJSON(context.Background(), srv.Client(), NewLimiter(100, 1), "test", "get", srv.URL+"/ok", map[string][]string{"q": {"rome"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = GetJSON(ctx, srv.Client(), nil, "test", "get", srv.URL+"/slow", nil, &out)
	assert.Equal(t, KindTimeout, KindOf(err))

	err = GetJSON(context.Background(), srv.Client(), nil, "test", "get", srv.URL+"/denied", nil, &out)
	assert.Equal(t, KindAuth, KindOf(err))

	err = GetJSON(context.Background(), srv.Client(), nil, "test", "get", srv.URL+"/garbage", nil, &out)
	assert.Equal(t, KindUpstream, KindOf(err))
}
