package httpserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodix/evidence-engine/cryptoutils"
	"github.com/custodix/evidence-engine/custody"
	"github.com/custodix/evidence-engine/interfaces"
	"github.com/custodix/evidence-engine/merkle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, verifier custody.SignatureVerifier) *httptest.Server {
	t.Helper()
	log := slog.Default()
	srv, err := New(&HTTPServerConfig{ListenAddr: "127.0.0.1:0", Log: log}, NewHandler(log, verifier))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.getRouter())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func testTree() (*merkle.Tree, interfaces.ContentSnapshot) {
	snapshot := interfaces.ContentSnapshot{
		"a.txt": []byte("hello"),
		"b.txt": []byte("world"),
		"c.txt": []byte("!"),
	}
	return merkle.Build(snapshot, cryptoutils.SHA256), snapshot
}

func TestHandler_VerifyProof(t *testing.T) {
	ts := testServer(t, nil)
	tree, _ := testTree()

	proof, err := tree.Proof("b.txt")
	require.NoError(t, err)

	resp := postJSON(t, ts.URL+"/api/v1/verify/proof", proof)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[map[string]bool](t, resp)
	assert.True(t, result["valid"])

	// Tampered leaf hash fails.
	proof.FileHash = cryptoutils.SHA256.Sum([]byte("forged"))
	resp = postJSON(t, ts.URL+"/api/v1/verify/proof", proof)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result = decodeBody[map[string]bool](t, resp)
	assert.False(t, result["valid"])
}

func TestHandler_VerifyChain(t *testing.T) {
	ts := testServer(t, nil)

	chain := custody.NewChain(interfaces.NewPackID(), nil, nil)
	custodian := custody.Custodian{ID: "sys", Name: "system"}
	_, err := chain.RecordCreation(custodian, "root")
	require.NoError(t, err)
	_, err = chain.RecordSeal(custodian, "root")
	require.NoError(t, err)

	resp := postJSON(t, ts.URL+"/api/v1/verify/chain", chain.Events())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[custody.ChainVerificationResult](t, resp)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.TotalEvents)

	// A mutated event comes back flagged by index.
	events := chain.Events()
	events[1].Action = custody.ActionDeleted
	resp = postJSON(t, ts.URL+"/api/v1/verify/chain", events)
	result = decodeBody[custody.ChainVerificationResult](t, resp)
	assert.False(t, result.Valid)
	assert.Contains(t, result.TamperedEvents, 1)
}

func TestHandler_VerifyIntegrity(t *testing.T) {
	ts := testServer(t, nil)
	tree, snapshot := testTree()
	integrity := tree.Metadata()

	observed := make(map[string]string, len(snapshot))
	for path, content := range snapshot {
		observed[path] = cryptoutils.SHA256.Sum(content)
	}

	resp := postJSON(t, ts.URL+"/api/v1/verify/integrity", integrityRequest{
		Integrity:   integrity,
		PerFileHash: observed,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	report := decodeBody[merkle.TamperReport](t, resp)
	assert.False(t, report.IsTampered)
	assert.True(t, report.RootHashValid)

	observed["b.txt"] = cryptoutils.SHA256.Sum([]byte("tampered"))
	resp = postJSON(t, ts.URL+"/api/v1/verify/integrity", integrityRequest{
		Integrity:   integrity,
		PerFileHash: observed,
	})
	report = decodeBody[merkle.TamperReport](t, resp)
	assert.True(t, report.IsTampered)
	assert.Equal(t, []string{"b.txt"}, report.TamperedFiles)
	assert.False(t, report.RootHashValid)
}

func TestHandler_RejectsMalformedBody(t *testing.T) {
	ts := testServer(t, nil)

	for _, endpoint := range []string{
		"/api/v1/verify/proof",
		"/api/v1/verify/chain",
		"/api/v1/verify/integrity",
	} {
		resp, err := http.Post(ts.URL+endpoint, "application/json", bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, endpoint)
	}
}

func TestServer_HealthAndDrain(t *testing.T) {
	ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/livez")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/drain")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/undrain")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
