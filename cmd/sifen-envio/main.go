// Command sifen-envio demonstrates the full submission flow against an
// in-process mock of the SET service: build a document, validate it,
// sign it with a throwaway certificate, submit it and query its state.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gaxoblanco/SIFEN-sub001/certificate"
	"github.com/gaxoblanco/SIFEN-sub001/mockset"
	"github.com/gaxoblanco/SIFEN-sub001/sifen"
	"github.com/gaxoblanco/SIFEN-sub001/webservices"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("SIFEN_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	if err := run(log); err != nil {
		log.WithError(err).Fatal("demo failed")
	}
}

func run(log *logrus.Logger) error {
	// A local stand-in for SET, so the demo needs no credentials.
	mock := mockset.New()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mock.Handler()}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()
	baseURL := "http://" + ln.Addr().String()
	log.WithField("url", baseURL).Info("mock SET service listening")

	cert, err := certificate.NewMockCertificate()
	if err != nil {
		return err
	}

	sender, err := webservices.NewSender(webservices.Config{
		Environment: sifen.EnvironmentTest,
		RUCEmisor:   "80012345",
		VerifyTLS:   true,
		BaseURL:     baseURL,
		JournalPath: os.Getenv("SIFEN_JOURNAL"),
	}, cert, log)
	if err != nil {
		return err
	}
	defer sender.Close()

	doc, err := buildInvoice()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := sender.SendOne(ctx, &doc)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"cdc":      result.CDC,
		"protocol": result.Protocol,
		"status":   result.Status.String(),
		"attempts": result.Attempts,
	}).Info("invoice accepted")

	query, err := sender.Query(ctx, result.CDC)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"cdc":    query.CDC,
		"status": query.Status.String(),
	}).Info("query answered")

	return nil
}

func buildInvoice() (sifen.Documento, error) {
	b := sifen.NewBuilder(sifen.KindInvoice).
		SetRemoveAccents(true).
		SetNumero("001-002-0000123")

	if err := b.SetTimbrado(sifen.Timbrado{
		Numero:          "12345678",
		Establecimiento: "001",
		PuntoExpedicion: "002",
		FechaInicio:     time.Date(2025, 1, 1, 0, 0, 0, 0, sifen.AsuncionLocation),
	}); err != nil {
		return sifen.Documento{}, err
	}
	if err := b.SetEmisor(sifen.Emisor{
		RUC:         sifen.RUC{Base: "80012345", DV: 3},
		RazonSocial: "Comercial Asunción S.A.",
		Direccion:   "Avda. Mariscal López 1234",
	}); err != nil {
		return sifen.Documento{}, err
	}
	receiver, err := sifen.ParseRUC("04554737-0")
	if err != nil {
		return sifen.Documento{}, err
	}
	if err := b.SetReceptor(sifen.Receptor{
		Naturaleza:  sifen.ReceiverTaxpayer,
		RUC:         &receiver,
		RazonSocial: "Cliente S.R.L.",
	}); err != nil {
		return sifen.Documento{}, err
	}
	if err := b.AddItem(sifen.Item{
		Codigo:         "A1",
		Descripcion:    "Producto gravado",
		Cantidad:       decimal.NewFromInt(2),
		PrecioUnitario: decimal.NewFromInt(55000),
		Afectacion:     sifen.IVATaxed,
		TasaIVA:        10,
	}); err != nil {
		return sifen.Documento{}, err
	}

	doc, violations, err := b.Build()
	if err != nil {
		return sifen.Documento{}, err
	}
	for _, v := range violations {
		logrus.WithField("path", v.Path).Warn(v.Message)
	}
	return doc, nil
}
