package mockset

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Body>
    <rEnviDe xmlns="http://ekuatia.set.gov.py/sifen/xsd">
      <dId>req-001</dId>
      <xDE>
        <rDE>
          <DE Id="80012345301001002000012320260115121234567890"/>
        </rDE>
      </xDE>
    </rEnviDe>
  </env:Body>
</env:Envelope>`

func post(t *testing.T, url, body string) *etree.Document {
	t.Helper()
	resp, err := http.Post(url, "application/soap+xml; charset=utf-8", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

func TestServerApprovesByDefault(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	doc := post(t, ts.URL+"/de/ws/sync/recibe.wsdl", sampleEnvelope)
	code := doc.FindElement("//dCodRes")
	require.NotNil(t, code)
	assert.Equal(t, "0260", code.Text())
	assert.NotNil(t, doc.FindElement("//dProtAut"))

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "req-001", reqs[0].DID)
	require.Len(t, reqs[0].CDCs, 1)
}

func TestServerFollowsScript(t *testing.T) {
	srv := New()
	srv.Script("5000", "1101")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := ts.URL + "/de/ws/sync/recibe.wsdl"
	assert.Equal(t, "5000", post(t, url, sampleEnvelope).FindElement("//dCodRes").Text())
	assert.Equal(t, "1101", post(t, url, sampleEnvelope).FindElement("//dCodRes").Text())
	// Script exhausted: back to approving.
	assert.Equal(t, "0260", post(t, url, sampleEnvelope).FindElement("//dCodRes").Text())
}

func TestServerAnswersQueriesForAcceptedDocuments(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	post(t, ts.URL+"/de/ws/sync/recibe.wsdl", sampleEnvelope)

	query := `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Body>
    <rEnviConsDe xmlns="http://ekuatia.set.gov.py/sifen/xsd">
      <dId>q-001</dId>
      <dCDCConsDE>80012345301001002000012320260115121234567890</dCDCConsDE>
    </rEnviConsDe>
  </env:Body>
</env:Envelope>`
	doc := post(t, ts.URL+"/de/ws/consultas/consulta.wsdl", query)
	assert.Equal(t, "0260", doc.FindElement("//dCodRes").Text())
	assert.Equal(t, "Aprobado", doc.FindElement("//dEstRes").Text())

	unknown := `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Body>
    <rEnviConsDe xmlns="http://ekuatia.set.gov.py/sifen/xsd">
      <dId>q-002</dId>
      <dCDCConsDE>80012345301001002999999920260115121234567890</dCDCConsDE>
    </rEnviConsDe>
  </env:Body>
</env:Envelope>`
	doc = post(t, ts.URL+"/de/ws/consultas/consulta.wsdl", unknown)
	assert.Equal(t, "9999", doc.FindElement("//dCodRes").Text())
}

func TestServerRejectsMalformedBody(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/de/ws/sync/recibe.wsdl", "text/plain", bytes.NewReader([]byte("nope <<")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
