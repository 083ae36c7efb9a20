// Package pdfdoc decides whether a fetched order is a PDF and reads its
// page count.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrStatus means the server did not answer 200.
	ErrStatus = errors.New("pdfdoc: unexpected status")
	// ErrNotPDF means neither the body nor the content type says PDF.
	ErrNotPDF = errors.New("pdfdoc: not a pdf")
)

var magic = []byte("%PDF")

// Validate accepts a 200 response whose body starts with %PDF or whose
// content type mentions pdf. The magic bytes win over a wrong content type.
func Validate(status int, contentType string, body []byte) error {
	if status != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrStatus, status)
	}
	if HasMagic(body) {
		return nil
	}
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return nil
	}
	return fmt.Errorf("%w: content-type %q", ErrNotPDF, contentType)
}

// HasMagic reports whether body starts with the PDF header.
func HasMagic(body []byte) bool {
	return bytes.HasPrefix(body, magic)
}

// Info is what inspection learns about a document.
type Info struct {
	Pages int
}

// Inspect parses body with pdfcpu in relaxed mode.
func Inspect(body []byte) (Info, error) {
	var info Info
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(body), conf)
	if err != nil {
		return info, fmt.Errorf("pdfdoc: inspect: %w", err)
	}
	info.Pages = ctx.PageCount
	return info, nil
}
