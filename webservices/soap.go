package webservices

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

// SOAP 1.2 constants.
const (
	soapNamespace   = "http://www.w3.org/2003/05/soap-envelope"
	soapContentType = "application/soap+xml; charset=utf-8"

	// DefaultTimeout bounds one request unless overridden.
	DefaultTimeout = 30 * time.Second
)

// SOAPClient is a thin SOAP 1.2 layer over HTTPS against the SET
// endpoints. It is safe for concurrent use.
type SOAPClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewSOAPClient builds the client for an environment. Disabling TLS
// verification is refused outside the test environment. baseURL and
// httpClient may be empty/nil and default to the environment endpoint
// and a pooled client with the given timeout.
func NewSOAPClient(env sifen.Environment, verifyTLS bool, timeout time.Duration, baseURL string, httpClient *http.Client, logger *logrus.Logger) (*SOAPClient, error) {
	if !verifyTLS && env == sifen.EnvironmentProduction {
		return nil, fmt.Errorf("webservices: TLS verification cannot be disabled in production")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if baseURL == "" {
		baseURL = BaseURL(env)
	}
	if httpClient == nil {
		transport := &http.Transport{
			MaxIdleConnsPerHost: 2 * DefaultConcurrentPerRUC,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: !verifyTLS},
		}
		httpClient = &http.Client{Transport: transport, Timeout: timeout}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &SOAPClient{baseURL: baseURL, client: httpClient, logger: logger}, nil
}

// SendDE submits one signed document through the synchronous service.
func (c *SOAPClient) SendDE(ctx context.Context, dID string, signedXML []byte) (*Response, error) {
	payload := etree.NewElement("rEnviDe")
	payload.CreateAttr("xmlns", sifen.SifenNamespace)
	payload.CreateElement("dId").SetText(dID)
	xde := payload.CreateElement("xDE")
	if err := embedXML(xde, signedXML); err != nil {
		return nil, err
	}
	return c.call(ctx, OpSendSingle, payload)
}

// SendLote submits a batch of signed documents through the asynchronous
// service.
func (c *SOAPClient) SendLote(ctx context.Context, dID string, signedDocs [][]byte) (*Response, error) {
	payload := etree.NewElement("rEnvioLote")
	payload.CreateAttr("xmlns", sifen.SifenNamespace)
	payload.CreateElement("dId").SetText(dID)
	for _, doc := range signedDocs {
		xde := payload.CreateElement("xDE")
		if err := embedXML(xde, doc); err != nil {
			return nil, err
		}
	}
	return c.call(ctx, OpSendBatch, payload)
}

// QueryCDC looks up the current state of a document by CDC.
func (c *SOAPClient) QueryCDC(ctx context.Context, dID, cdc string) (*Response, error) {
	payload := etree.NewElement("rEnviConsDe")
	payload.CreateAttr("xmlns", sifen.SifenNamespace)
	payload.CreateElement("dId").SetText(dID)
	payload.CreateElement("dCDCConsDE").SetText(cdc)
	return c.call(ctx, OpQueryByCDC, payload)
}

// QueryLote looks up the processing state of a batch by its protocol.
func (c *SOAPClient) QueryLote(ctx context.Context, dID, protocol string) (*Response, error) {
	payload := etree.NewElement("rEnviConsLoteDe")
	payload.CreateAttr("xmlns", sifen.SifenNamespace)
	payload.CreateElement("dId").SetText(dID)
	payload.CreateElement("dProtConsLote").SetText(protocol)
	return c.call(ctx, OpQueryBatchStatus, payload)
}

// call wraps the payload in a SOAP 1.2 envelope, posts it and parses the
// response body.
func (c *SOAPClient) call(ctx context.Context, op Operation, payload *etree.Element) (*Response, error) {
	path, ok := operationPaths[op]
	if !ok {
		return nil, fmt.Errorf("webservices: unknown operation %d", op)
	}
	url := c.baseURL + path

	envelope := etree.NewDocument()
	envelope.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := envelope.CreateElement("env:Envelope")
	env.CreateAttr("xmlns:env", soapNamespace)
	env.CreateElement("env:Header")
	body := env.CreateElement("env:Body")
	body.AddChild(payload)

	reqBytes, err := envelope.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("webservices: build envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("webservices: build request: %w", err)
	}
	req.Header.Set("Content-Type", soapContentType)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webservices: %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webservices: read response: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"url":         url,
		"http_status": resp.StatusCode,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	}).Debug("soap call")

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("webservices: %s answered http %d", url, resp.StatusCode)
	}
	return ParseResponse(respBytes)
}

// embedXML parses a signed document and grafts it under the parent so
// the payload travels as XML, not as an escaped string.
func embedXML(parent *etree.Element, data []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("webservices: payload does not parse: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("webservices: payload has no root element")
	}
	parent.AddChild(root.Copy())
	return nil
}
