package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// ResponseBuilder assembles a response: status, headers and one body.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Attachment sends body as a download named filename.
func (b *ResponseBuilder) Attachment(contentType, filename string, body []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = contentDisposition(filename)
	b.body = body
	return b
}

func (b *ResponseBuilder) Body(contentType string, body []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.body = body
	return b
}

func (b *ResponseBuilder) BodyHTML(html string) *ResponseBuilder {
	return b.Body("text/html; charset=utf-8", []byte(html))
}

// JSON encodes v as the body. An encoding failure turns the response into a 500.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		data = []byte(`{"error":"encoding failed"}`)
	}
	return b.Body("application/json", append(data, '\n'))
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse renders message as JSON for API clients and as an escaped
// HTML fragment otherwise.
func ErrorResponse(statusCode int, message string, asJSON bool) *ResponseBuilder {
	b := NewResponse().Status(statusCode)
	if asJSON {
		return b.JSON(errorBody{Error: message})
	}
	return b.BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}
