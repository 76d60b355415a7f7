package dingsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAlertIsPosted(t *testing.T) {
	got := make(chan *DingNotify, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var notify DingNotify
		require.NoError(t, json.NewDecoder(r.Body).Decode(&notify))
		got <- &notify
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sdk := NewDingSdk(srv.URL, "[solver] ", time.Millisecond, zap.NewNop().Sugar())
	go func() { _ = sdk.Run(ctx) }()

	sdk.Alert("give up settlement")
	select {
	case notify := <-got:
		assert.Equal(t, "text", notify.MsgType)
		assert.Equal(t, "[solver] give up settlement", notify.Text.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("alert not posted")
	}
}

func TestNotifyReportsRobotErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":310000,"errmsg":"keywords not in content"}`))
	}))
	defer srv.Close()

	sdk := NewDingSdk(srv.URL, "", time.Millisecond, zap.NewNop().Sugar())
	_, err := sdk.Notify(context.Background(), &DingNotify{MsgType: "text"})
	assert.ErrorContains(t, err, "310000")
}
