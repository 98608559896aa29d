// Package mockset is a deterministic stand-in for the SET SIFEN web
// services. It speaks just enough SOAP 1.2 to exercise the real client:
// scripted response codes, configurable latency and request recording.
// Wrap Handler in an httptest.Server for tests, or serve it from a demo
// binary.
package mockset

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beevik/etree"
)

// Request is one recorded call.
type Request struct {
	Path string
	DID  string
	// CDCs lists the DE identifiers found in the payload, in order.
	CDCs []string
	Body []byte
}

// Server is the scripted service. The zero value is not usable; call New.
type Server struct {
	mu       sync.Mutex
	script   []string
	requests []Request
	accepted map[string]string // CDC -> protocol
	latency  time.Duration
	protocol int64
}

// New returns a server that approves everything until scripted otherwise.
func New() *Server {
	return &Server{accepted: make(map[string]string)}
}

// Script queues response codes, consumed one per submission. When the
// script runs dry the server goes back to approving.
func (s *Server) Script(codes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, codes...)
}

// SetLatency delays every response, simulating a slow service.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Requests returns a copy of every recorded call.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Handler returns the HTTP handler implementing the four SET endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/de/ws/sync/recibe.wsdl", s.handleSend)
	mux.HandleFunc("/de/ws/async/recibe-lote.wsdl", s.handleSend)
	mux.HandleFunc("/de/ws/consultas/consulta.wsdl", s.handleQuery)
	mux.HandleFunc("/de/ws/consultas/consulta-lote.wsdl", s.handleQueryLote)
	return mux
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	req, err := s.recordRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.applyLatency()

	code := s.nextCode()
	protocol := ""
	if code == "0260" {
		protocol = fmt.Sprintf("7600%09d", atomic.AddInt64(&s.protocol, 1))
		s.mu.Lock()
		for _, cdc := range req.CDCs {
			s.accepted[cdc] = protocol
		}
		s.mu.Unlock()
	}
	writeSOAP(w, buildResult("rRetEnviDe", code, protocol, ""))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := s.recordRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.applyLatency()

	doc := etree.NewDocument()
	_ = doc.ReadFromBytes(req.Body)
	cdc := ""
	if el := doc.FindElement("//dCDCConsDE"); el != nil {
		cdc = el.Text()
	}
	s.mu.Lock()
	protocol, ok := s.accepted[cdc]
	s.mu.Unlock()
	if ok {
		writeSOAP(w, buildResult("rResEnviConsDe", "0260", protocol, cdc))
		return
	}
	writeSOAP(w, buildResult("rResEnviConsDe", "9999", "", cdc))
}

func (s *Server) handleQueryLote(w http.ResponseWriter, r *http.Request) {
	if _, err := s.recordRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.applyLatency()
	writeSOAP(w, buildResult("rResEnviConsLoteDe", "0260", "", ""))
}

func (s *Server) recordRequest(r *http.Request) (Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return Request{}, fmt.Errorf("mockset: read body: %w", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return Request{}, fmt.Errorf("mockset: body does not parse: %w", err)
	}
	req := Request{Path: r.URL.Path, Body: body}
	if el := doc.FindElement("//dId"); el != nil {
		req.DID = el.Text()
	}
	for _, de := range doc.FindElements("//DE") {
		if id := de.SelectAttrValue("Id", ""); id != "" {
			req.CDCs = append(req.CDCs, id)
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return req, nil
}

func (s *Server) applyLatency() {
	s.mu.Lock()
	d := s.latency
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (s *Server) nextCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return "0260"
	}
	code := s.script[0]
	s.script = s.script[1:]
	return code
}

// resultMessages carries the wire text for the codes the mock answers.
var resultMessages = map[string]struct {
	message string
	estado  string
}{
	"0260": {"Autorizado el DE", "Aprobado"},
	"0420": {"Autorizado con observaciones", "Aprobado con observaciones"},
	"0141": {"Certificado de firma vencido", "Rechazado"},
	"1001": {"DV del CDC inválido", "Rechazado"},
	"1101": {"Timbrado inexistente", "Rechazado"},
	"1501": {"Totales inconsistentes", "Rechazado"},
	"4001": {"Error de comunicación", ""},
	"5000": {"Servicio no disponible", ""},
	"5002": {"Límite de solicitudes por RUC excedido", ""},
	"5003": {"Límite de solicitudes por IP excedido", ""},
	"9999": {"CDC inexistente", "Rechazado"},
}

func buildResult(root, code, protocol, cdc string) *etree.Element {
	res := etree.NewElement(root)
	res.CreateAttr("xmlns", "http://ekuatia.set.gov.py/sifen/xsd")
	res.CreateElement("dFecProc").SetText(time.Now().Format("2006-01-02T15:04:05"))
	proc := res.CreateElement("gResProc")
	proc.CreateElement("dCodRes").SetText(code)
	msg := resultMessages[code]
	if msg.message == "" {
		msg.message = "Rechazo"
		msg.estado = "Rechazado"
	}
	proc.CreateElement("dMsgRes").SetText(msg.message)
	if msg.estado != "" {
		res.CreateElement("dEstRes").SetText(msg.estado)
	}
	if protocol != "" {
		res.CreateElement("dProtAut").SetText(protocol)
	}
	if cdc != "" {
		res.CreateElement("dCDC").SetText(cdc)
	}
	return res
}

func writeSOAP(w http.ResponseWriter, payload *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	env := doc.CreateElement("env:Envelope")
	env.CreateAttr("xmlns:env", "http://www.w3.org/2003/05/soap-envelope")
	body := env.CreateElement("env:Body")
	body.AddChild(payload)
	out, err := doc.WriteToBytes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	_, _ = w.Write(out)
}
