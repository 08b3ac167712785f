// Package ingest is the HTTP boundary to the record-storage service.
//
// The sink owns persistence and duplicate detection. Records are posted
// unconditionally and a duplicate rejection is mapped to ErrDuplicate so
// the caller can treat it as success-equivalent.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"juris-robot/lib/util/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/ingest")

// ErrDuplicate means the sink already holds a record for this process
// number. Not an error for the run, just not newly processed.
var ErrDuplicate = errors.New("ingest: process already registered")

// duplicate-indicating fragment of the sink's 400 body
const duplicateMarker = "Processo já cadastrado"

type Record struct {
	NumeroProcesso string `json:"numero_processo"`
	NomeReu        string `json:"nome_reu"`
	CpfCnpjReu     string `json:"cpf_cnpj_reu"`
	ValorCausa     string `json:"valor_causa"`
}

// Stored is a record as reported back by the sink.
type Stored struct {
	ID             int64  `json:"id"`
	NumeroProcesso string `json:"numero_processo"`
	NomeReu        string `json:"nome_reu"`
	CpfCnpjReu     string `json:"cpf_cnpj_reu"`
	ValorCausa     string `json:"valor_causa"`
}

type Client struct {
	http *resty.Client
}

func NewClient(baseUrl string) *Client {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("content-type", "application/json")
	return &Client{http: client}
}

// DumpTranscripts writes every sink exchange under dir while debug
// logging is enabled, to inspect payloads the sink rejects.
func (c *Client) DumpTranscripts(dir string) {
	restyutil.InstrumentClient(c.http, restyutil.NewFilesystemOutput(dir))
}

// Create posts one record. Returns ErrDuplicate when the sink rejects it
// as already existing, any other non-2xx response is an error.
func (c *Client) Create(ctx context.Context, record Record) error {
	ctx, span := tracer.Start(ctx, "client:Create")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(record).
		Post("/processos/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach ingestion sink")
		return fmt.Errorf("post record: %w", err)
	}

	if res.IsSuccess() {
		return nil
	}
	if res.StatusCode() == 400 && strings.Contains(string(res.Body()), duplicateMarker) {
		return ErrDuplicate
	}

	span.SetStatus(codes.Error, "sink rejected record")
	return fmt.Errorf("sink rejected record: status %d: %s", res.StatusCode(), res.Body())
}

// List fetches every stored record.
func (c *Client) List(ctx context.Context) ([]Stored, error) {
	ctx, span := tracer.Start(ctx, "client:List")
	defer span.End()

	var out []Stored
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/processos/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach ingestion sink")
		return nil, fmt.Errorf("list records: %w", err)
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "sink rejected list request")
		return nil, fmt.Errorf("list records: status %d", res.StatusCode())
	}
	return out, nil
}
