package tornapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odinsson/tradeledger/internal/common"
	"github.com/odinsson/tradeledger/internal/model"
)

func TestFetchCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/torn", r.URL.Path)
		assert.Equal(t, "items", r.URL.Query().Get("selections"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
			"items": {
				"206": {"name": "Xanax", "type": "Drug", "image": "https://img.test/206.png"},
				"180": {"name": "Bottle of Beer", "type": "Alcohol", "image": {"large": "https://img.test/180-l.png", "small": "https://img.test/180-s.png"}},
				"999": {"name": "", "type": "Other"}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	items, err := c.FetchCatalog(context.Background(), "test-key")
	require.NoError(t, err)

	require.Len(t, items, 2, "nameless entries are dropped")
	assert.Equal(t, "Xanax", items[206].Name)
	assert.Equal(t, model.CategoryDrug, items[206].Category)
	assert.Equal(t, "https://img.test/206.png", items[206].ImageURL)
	// Object-form images pick the large variant.
	assert.Equal(t, "https://img.test/180-l.png", items[180].ImageURL)
}

func TestFetchCatalogRejectedKeyIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"error": {"code": 2, "error": "Incorrect key"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.retryOpts.InitialDelay = time.Millisecond

	_, err := c.FetchCatalog(context.Background(), "bad-key")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCredentialRejected)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a rejected credential must not be retried")
}

func TestFetchCatalogOtherAPIErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"code": 17, "error": "Backend error"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	_, err := c.FetchCatalog(context.Background(), "test-key")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransientFetch)
}

func TestFetchSelf(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/", r.URL.Path)
		assert.Equal(t, "basic", r.URL.Query().Get("selections"))
		_, _ = w.Write([]byte(`{"player_id": 12345, "name": "Odin"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	self, err := c.FetchSelf(context.Background(), "test-key")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), self.ID)
	assert.Equal(t, "Odin", self.Name)
}

func TestFetchSelfMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchSelf(context.Background(), "test-key")
	assert.Error(t, err)
}
