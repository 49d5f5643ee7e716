package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_QueryBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/blocks", r.URL.Path)
		require.Equal(t, "42", r.URL.Query().Get("start"))
		require.Equal(t, "1", r.URL.Query().Get("length"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"blocks": [{
			"height": 42,
			"transfer": {
				"memo": 777,
				"from": "0x1111111111111111111111111111111111111111",
				"to":   "0x2222222222222222222222222222222222222222",
				"amount": 1000
			}
		}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	blocks, err := c.QueryBlocks(context.Background(), 42, 1)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	b := blocks[0]
	assert.Equal(t, uint64(42), b.Height)
	require.NotNil(t, b.Transfer)
	assert.Equal(t, uint64(777), b.Transfer.Memo)
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), b.Transfer.From)
	assert.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), b.Transfer.To)
	assert.Equal(t, uint64(1000), b.Transfer.Amount)
}

func TestHTTPClient_BlockWithoutTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"blocks": [{"height": 7}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	blocks, err := c.QueryBlocks(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Nil(t, blocks[0].Transfer)
}

func TestHTTPClient_EmptyRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"blocks": []}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	blocks, err := c.QueryBlocks(context.Background(), 9999, 1)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestHTTPClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.QueryBlocks(context.Background(), 1, 1)
	assert.Error(t, err)
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"blocks": `))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	_, err := c.QueryBlocks(context.Background(), 1, 1)
	assert.Error(t, err)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.QueryBlocks(context.Background(), 1, 1)
	assert.Error(t, err)
}
