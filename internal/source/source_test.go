package source

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signals/config"
	"trading-signals/internal/model"
)

func TestOpen_File(t *testing.T) {
	o, err := Open(&config.Config{Source: config.SourceFile, BarsDir: t.TempDir()})
	require.NoError(t, err)
	defer o.Store.Close()
	assert.Equal(t, "file", o.Store.Name())
	assert.Nil(t, o.SQL)

	bars := []model.Bar{{Time: time.Unix(60, 0).UTC(), Open: 1, High: 1, Low: 1, Close: 1}}
	require.NoError(t, o.Store.WriteBars(context.Background(), "BTC-USD", bars))
	got, err := o.Store.Bars(context.Background(), model.BarQuery{Ticker: "BTC-USD"})
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}

func TestOpen_SQLite(t *testing.T) {
	o, err := Open(&config.Config{Source: config.SourceSQLite, SQLitePath: filepath.Join(t.TempDir(), "b.db")})
	require.NoError(t, err)
	defer o.Store.Close()
	assert.Equal(t, "sqlite", o.Store.Name())
	assert.NotNil(t, o.SQL)
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(&config.Config{Source: "ftp"})
	assert.ErrorContains(t, err, `unknown SOURCE "ftp"`)
}
