package webservices

import (
	"fmt"

	"github.com/beevik/etree"
)

// DocumentStatus is the normalized processing state SET reports for a
// document.
type DocumentStatus int

const (
	StatusUnknown DocumentStatus = iota
	StatusAccepted
	StatusAcceptedWithObservations
	StatusPending
	StatusProcessing
	StatusRejected
	StatusExtemporaneous
	StatusCancelled
	StatusAnnulled
	StatusTechnicalError
)

// String returns the status name.
func (s DocumentStatus) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusAcceptedWithObservations:
		return "accepted-with-observations"
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusRejected:
		return "rejected"
	case StatusExtemporaneous:
		return "extemporaneous"
	case StatusCancelled:
		return "cancelled"
	case StatusAnnulled:
		return "annulled"
	case StatusTechnicalError:
		return "technical-error"
	default:
		return "unknown"
	}
}

// Final reports whether the status will not change with further polling.
func (s DocumentStatus) Final() bool {
	switch s {
	case StatusAccepted, StatusAcceptedWithObservations, StatusRejected,
		StatusExtemporaneous, StatusCancelled, StatusAnnulled:
		return true
	}
	return false
}

// statusNames maps the dEstRes wire text to the normalized status.
var statusNames = map[string]DocumentStatus{
	"Aprobado":                   StatusAccepted,
	"Aprobado con observaciones": StatusAcceptedWithObservations,
	"Pendiente":                  StatusPending,
	"En proceso":                 StatusProcessing,
	"Rechazado":                  StatusRejected,
	"Extemporáneo":               StatusExtemporaneous,
	"Cancelado":                  StatusCancelled,
	"Anulado":                    StatusAnnulled,
	"Error técnico":              StatusTechnicalError,
}

// ResponseError is one typed sub-code in a SET response.
type ResponseError struct {
	Code    string
	Message string
}

// Response is a normalized SET web service response.
type Response struct {
	Success  bool
	Code     string
	Message  string
	Status   DocumentStatus
	CDC      string
	Protocol string
	Errors   []ResponseError
}

// ParseResponse reads a SOAP response body into the normalized form.
// Element lookup ignores namespace prefixes, so both the real service
// and the mock are parsed the same way.
func ParseResponse(data []byte) (*Response, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("webservices: response does not parse: %w", err)
	}
	r := &Response{}

	if el := doc.FindElement("//dCodRes"); el != nil {
		r.Code = el.Text()
	}
	if el := doc.FindElement("//dMsgRes"); el != nil {
		r.Message = el.Text()
	}
	if el := doc.FindElement("//dProtAut"); el != nil {
		r.Protocol = el.Text()
	}
	if el := doc.FindElement("//dCDC"); el != nil {
		r.CDC = el.Text()
	}
	if el := doc.FindElement("//dEstRes"); el != nil {
		r.Status = statusNames[el.Text()]
	}
	for _, g := range doc.FindElements("//gResProc") {
		e := ResponseError{}
		if c := g.FindElement("dCodRes"); c != nil {
			e.Code = c.Text()
		}
		if m := g.FindElement("dMsgRes"); m != nil {
			e.Message = m.Text()
		}
		if e.Code != "" || e.Message != "" {
			r.Errors = append(r.Errors, e)
		}
	}
	if r.Code == "" {
		return nil, fmt.Errorf("webservices: response carries no dCodRes")
	}

	r.Success = r.Code == CodeAccepted
	if r.Status == StatusUnknown {
		switch {
		case r.Success:
			r.Status = StatusAccepted
		case Classify(r.Code).Category == CategoryRejected || Classify(r.Code).Category == CategoryValidation:
			r.Status = StatusRejected
		}
	}
	if r.Status == StatusAcceptedWithObservations || r.Status == StatusExtemporaneous {
		r.Success = true
	}
	return r, nil
}
