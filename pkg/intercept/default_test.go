package intercept

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Singleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestInstall(t *testing.T) {
	client := &http.Client{Transport: unreachable()}
	Install(client)
	tr, ok := client.Transport.(*Transport)
	require.True(t, ok)

	Install(client)
	assert.Same(t, tr, client.Transport)

	h := Add(func(req *http.Request) (*Response, error) {
		if req.URL.Host != "installed.example" {
			return nil, nil
		}
		return &Response{Body: []byte("installed")}, nil
	})
	defer Remove(h)

	got, err := getString(client, "http://installed.example/")
	require.NoError(t, err)
	assert.Equal(t, "installed", got)

	_, err = getString(client, "http://elsewhere.example/")
	assert.ErrorIs(t, err, errNoSuchHost)

	Install(nil)
}

func TestInstallDefaultTransport(t *testing.T) {
	prev := http.DefaultTransport
	restore := InstallDefaultTransport()
	_, ok := http.DefaultTransport.(*Transport)
	assert.True(t, ok)

	noop := InstallDefaultTransport()
	noop()
	_, ok = http.DefaultTransport.(*Transport)
	assert.True(t, ok)

	restore()
	assert.Equal(t, prev, http.DefaultTransport)
}

func TestMapURL_Default(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/x.txt", "x")

	h, err := MapURL("http://default-map.example", dir)
	require.NoError(t, err)
	defer Remove(h)

	client := &http.Client{Transport: Default().Transport(unreachable())}
	got, err := getString(client, "http://default-map.example/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	_, err = MapURL("not a url", dir)
	assert.ErrorIs(t, err, ErrInvalidMapping)
}

func TestInstall_AfterInstallDefaultTransportRunsRulesOnce(t *testing.T) {
	prev := http.DefaultTransport
	http.DefaultTransport = unreachable()
	defer func() { http.DefaultTransport = prev }()

	restore := InstallDefaultTransport()
	defer restore()

	var preprocessed, decided int
	hp := AddPreprocessor(func(req *http.Request) {
		if req.URL.Host == "once.example" {
			preprocessed++
		}
	})
	defer Remove(hp)
	hi := Add(func(req *http.Request) (*Response, error) {
		if req.URL.Host == "once.example" {
			decided++
		}
		return nil, nil
	})
	defer Remove(hi)

	client := &http.Client{}
	Install(client)
	assert.Nil(t, client.Transport)

	_, err := getString(client, "http://once.example/")
	assert.ErrorIs(t, err, errNoSuchHost)
	assert.Equal(t, 1, preprocessed)
	assert.Equal(t, 1, decided)

	preprocessed, decided = 0, 0
	_, err = getString(Default().Client(), "http://once.example/")
	assert.ErrorIs(t, err, errNoSuchHost)
	assert.Equal(t, 1, preprocessed)
	assert.Equal(t, 1, decided)
}

func TestTransport_ReusesOwnTransportAsBase(t *testing.T) {
	ic := New()
	tr := ic.Transport(unreachable())
	assert.Same(t, tr, ic.Transport(tr))

	other := New().Transport(tr)
	assert.NotSame(t, tr, other)
	assert.Same(t, tr, other.Base())
}
