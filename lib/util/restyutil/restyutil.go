// Package restyutil captures full request/response transcripts of a
// resty client, used to debug payloads the sink rejects.
package restyutil

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) FilesystemOutput {
	os.RemoveAll(dir)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		panic(err)
	}
	return FilesystemOutput{directory: dir}
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write transcript file", "id", id, "err", err)
	}
}

// InstrumentClient dumps one transcript per exchange to `output` while
// debug logging is enabled. A nil output makes this a no-op.
func InstrumentClient(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		ctx := res.Request.Context()
		if !slog.Default().Enabled(ctx, slog.LevelDebug) {
			return nil
		}
		id := strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
		output.Write(id, formatTranscript(res))
		slog.DebugContext(ctx, "request finished",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"message_id", id,
		)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		slog.ErrorContext(req.Context(), "request failed",
			"method", req.Method,
			"url", req.URL,
			"err", err,
		)
	})
}

func formatHeaders(headers http.Header) string {
	var out strings.Builder
	for key, vals := range headers {
		for _, val := range vals {
			fmt.Fprintf(&out, "%s: %s\n", key, val)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	read, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(read)
}

func formatTranscript(res *resty.Response) string {
	req := res.Request.RawRequest
	var out strings.Builder

	out.WriteString("---- REQUEST ----\n\n")
	fmt.Fprintf(&out, "%s %s\n\n", res.Request.Method, res.Request.URL)
	if req != nil {
		fmt.Fprintf(&out, "%s\n\n", formatHeaders(req.Header))
	}
	fmt.Fprintf(&out, "%s\n\n", formatRequestBody(req))

	out.WriteString("---- RESPONSE ----\n\n")
	fmt.Fprintf(&out, "%s\n\n", res.Status())
	fmt.Fprintf(&out, "%s\n\n", formatHeaders(res.Header()))
	out.Write(res.Body())

	return out.String()
}
