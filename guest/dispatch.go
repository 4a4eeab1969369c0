package guest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/augentic/yetti/capabilities"
	"github.com/augentic/yetti/errors"
)

// Request is the wire form of an inbound HTTP event, matching the host's
// request envelope.
type Request struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// Response is the wire form of the guest's HTTP reply.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// HandleHTTP dispatches one inbound request: route, decode, run the
// handler through the builder, encode the reply. Misses map to 404,
// decode failures to 400, handler failures to 500.
func (g *Guest) HandleHTTP(ctx context.Context, req Request) Response {
	u, err := url.Parse(req.URI)
	if err != nil {
		return errorResponse(http.StatusBadRequest, "invalid request uri")
	}

	r, params, ok := g.route(req.Method, u.Path)
	if !ok {
		Logger().Debug("route miss",
			zap.String("method", req.Method), zap.String("path", u.Path))
		return errorResponse(http.StatusNotFound,
			fmt.Sprintf("no route for %s", u.Path))
	}

	handler, err := g.decode(r, u, params, req.Body)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error())
	}

	result, err := NewHandler(handler).
		Provider(g.provider()).
		Owner(g.owner).
		Headers(req.Headers).
		Handle(ctx)
	if err != nil {
		Logger().Debug("handler failed", zap.String("route", r.name), zap.Error(err))
		return errorResponse(http.StatusInternalServerError, err.Error())
	}

	return encodeResult(result)
}

// decode builds the merged input document for a route and constructs its
// handler.
func (g *Guest) decode(r *compiledRoute, u *url.URL, params map[string]string, body []byte) (Handler, error) {
	switch r.Mode {
	case WithQuery:
		doc := make(map[string]string)
		for k, vs := range u.Query() {
			if len(vs) > 0 {
				doc[k] = vs[0]
			}
		}
		for k, v := range params {
			doc[k] = v
		}
		input, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Decode("encode query document", err)
		}
		return r.build(input)

	case WithBody:
		if len(params) == 0 {
			return r.build(body)
		}
		doc := make(map[string]json.RawMessage)
		if len(body) > 0 {
			if err := json.Unmarshal(body, &doc); err != nil {
				return nil, errors.Decode("request body is not a JSON object", err)
			}
		}
		for k, v := range params {
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, errors.Decode("encode path placeholder", err)
			}
			doc[k] = encoded
		}
		input, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Decode("merge body document", err)
		}
		return r.build(input)

	default:
		if len(params) == 0 {
			return r.build(nil)
		}
		input, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Decode("encode path placeholders", err)
		}
		return r.build(input)
	}
}

// encodeResult turns a handler's return value into the wire response.
func encodeResult(result any) Response {
	status := http.StatusOK
	headers := map[string]string{"Content-Type": "application/json"}
	body := result
	if r, ok := result.(responder); ok {
		st, hs, b := r.respond()
		if st != 0 {
			status = st
		}
		for k, v := range hs {
			headers[k] = v
		}
		body = b
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "encode reply")
	}
	return Response{Status: status, Headers: headers, Body: encoded}
}

func errorResponse(status int, msg string) Response {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return Response{
		Status:  status,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

// HandleTopic dispatches one delivered message: the first declared topic
// whose pattern is contained in the delivered topic name wins. The
// payload decodes into the topic's message type and runs through the
// same builder chain the HTTP path uses. No match is an error naming
// the topic.
func (g *Guest) HandleTopic(ctx context.Context, topic string, msg capabilities.Message) error {
	for i := range g.topics {
		t := &g.topics[i]
		if !strings.Contains(topic, t.Pattern) {
			continue
		}
		handler, err := t.build(msg.Payload)
		if err != nil {
			Logger().Debug("topic decode failed",
				zap.String("topic", topic), zap.Error(err))
			return err
		}
		if _, err := NewHandler(handler).
			Provider(g.provider()).
			Owner(g.owner).
			Headers(msg.Headers).
			Handle(ctx); err != nil {
			return errors.Handler(err)
		}
		return nil
	}
	return errors.TopicMiss(topic)
}

// IsTopicMiss reports whether err is an unhandled-topic error.
func IsTopicMiss(err error) bool {
	var e *errors.Error
	return stderrors.As(err, &e) && e.Kind == errors.KindTopicMiss
}
