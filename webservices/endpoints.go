// Package webservices talks to the SET SIFEN web services: SOAP client,
// response classification, retry policy, rate limiting and the document
// sender that orchestrates a submission end to end.
package webservices

import (
	"fmt"

	"github.com/gaxoblanco/SIFEN-sub001/sifen"
)

// Base URLs per environment.
const (
	BaseURLTest       = "https://sifen-test.set.gov.py"
	BaseURLProduction = "https://sifen.set.gov.py"
)

// Service paths, relative to the environment base URL.
const (
	PathSendSingle       = "/de/ws/sync/recibe.wsdl"
	PathSendBatch        = "/de/ws/async/recibe-lote.wsdl"
	PathQueryByCDC       = "/de/ws/consultas/consulta.wsdl"
	PathQueryBatchStatus = "/de/ws/consultas/consulta-lote.wsdl"
)

// Operation names one of the four SOAP operations.
type Operation int

const (
	OpSendSingle Operation = iota
	OpSendBatch
	OpQueryByCDC
	OpQueryBatchStatus
)

var operationPaths = map[Operation]string{
	OpSendSingle:       PathSendSingle,
	OpSendBatch:        PathSendBatch,
	OpQueryByCDC:       PathQueryByCDC,
	OpQueryBatchStatus: PathQueryBatchStatus,
}

// BaseURL returns the base URL for the environment.
func BaseURL(env sifen.Environment) string {
	if env == sifen.EnvironmentProduction {
		return BaseURLProduction
	}
	return BaseURLTest
}

// EndpointURL returns the full URL of an operation in an environment.
func EndpointURL(env sifen.Environment, op Operation) (string, error) {
	path, ok := operationPaths[op]
	if !ok {
		return "", fmt.Errorf("webservices: unknown operation %d", op)
	}
	return BaseURL(env) + path, nil
}
