// Package response builds and renders the JSON payloads returned by
// resource handlers. Handlers construct Response values; the dispatch
// layer renders them with Write once authorization and throttling have
// run.
package response

import (
	"encoding/json"
	"net/http"
)

// Response is the value a handler produces. Body is marshaled as JSON
// when non-nil; a nil Body writes the status line and headers only.
type Response struct {
	Status int
	Header http.Header
	Body   interface{}
}

// Meta carries paging information for list envelopes.
type Meta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// ListBody is the envelope wrapping collection results.
type ListBody struct {
	Meta    Meta        `json:"meta"`
	Objects interface{} `json:"objects"`
}

// New creates a response with the given status and body.
func New(status int, body interface{}) *Response {
	return &Response{
		Status: status,
		Header: http.Header{},
		Body:   body,
	}
}

// JSON creates a 200 OK response with the given body.
func JSON(body interface{}) *Response {
	return New(http.StatusOK, body)
}

// Created creates a 201 response. A non-empty location is exposed via
// the Location header.
func Created(body interface{}, location string) *Response {
	resp := New(http.StatusCreated, body)
	if location != "" {
		resp.Header.Set("Location", location)
	}
	return resp
}

// NoContent creates an empty 204 response.
func NoContent() *Response {
	return New(http.StatusNoContent, nil)
}

// List creates a 200 response wrapping objects in the list envelope.
func List(objects interface{}, meta Meta) *Response {
	return New(http.StatusOK, ListBody{Meta: meta, Objects: objects})
}

// WithHeader sets a header on the response and returns it for chaining.
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(key, value)
	return r
}

// Write renders the response. The body is marshaled before any bytes
// reach the wire so a marshaling failure never produces a partial
// response.
func Write(w http.ResponseWriter, resp *Response) error {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	var data []byte
	if resp.Body != nil {
		var err error
		data, err = json.Marshal(resp.Body)
		if err != nil {
			return err
		}
	}

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	if data == nil {
		w.WriteHeader(status)
		return nil
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(data)
	return err
}
