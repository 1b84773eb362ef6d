package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYahooFetcherParsesClosesAndVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/KMB", r.URL.Path)
		assert.Equal(t, "1mo", r.URL.Query().Get("range"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1767619800,1767706200,1767792600],
			"indicators":{"quote":[{"close":[130.5,null,131.25],"volume":[1200000,null,3400000]}]}
		}],"error":null}}`))
	}))
	defer srv.Close()

	f := &YahooFetcher{BaseURL: srv.URL, Client: srv.Client()}
	ps, err := f.FetchCloses(context.Background(), "KMB", 20)
	require.NoError(t, err)

	assert.Equal(t, []float64{130.5, 131.25}, ps.Closes())
	assert.Equal(t, []float64{1200000, 3400000}, ps.Volumes())
}

func TestYahooFetcherAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	f := &YahooFetcher{BaseURL: srv.URL, Client: srv.Client()}
	_, err := f.FetchCloses(context.Background(), "NOPE", 20)
	assert.ErrorContains(t, err, "No data found")
}
