package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

const (
	envelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	schemaNS   = "http://www.w3.org/2001/XMLSchema-instance"
	contractNS = "http://www.mt.com/MT.Laboratory.Balance.XprXsr.V03"
)

// Invoker performs one remote call against the balance. Implementations
// must surface service-level rejections as *Fault and network failures
// as *TransportError so callers can classify without string inspection.
type Invoker interface {
	Call(ctx context.Context, service, method string, args []wire.Arg) (*wire.Node, error)
}

// Config carries the endpoint coordinates of one balance.
type Config struct {
	Host    string
	Port    int
	APIPath string
	Timeout time.Duration
}

// Client is the HTTP implementation of Invoker speaking the balance's
// SOAP 1.1 endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a SOAP client for the configured endpoint.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		endpoint: fmt.Sprintf("http://%s:%d/%s", cfg.Host, cfg.Port, strings.Trim(cfg.APIPath, "/")),
		http:     &http.Client{Timeout: timeout},
	}
}

// Call encodes the request envelope, posts it and decodes the response
// body into a dynamic document. The returned node is the inner result
// element of the method response.
func (c *Client) Call(ctx context.Context, service, method string, args []wire.Arg) (*wire.Node, error) {
	if err := wire.ValidateArgs(args); err != nil {
		return nil, errors.Wrapf(err, "invalid arguments for %s.%s", service, method)
	}

	body, err := encodeEnvelope(method, args)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode request for %s.%s", service, method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", fmt.Sprintf("%q", soapAction(service, method)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: service + "." + method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: service + "." + method, Err: err}
	}

	result, fault, err := decodeEnvelope(raw, method)
	if err != nil {
		return nil, &TransportError{Op: service + "." + method, Err: err}
	}
	if fault != nil {
		return nil, fault
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Op:  service + "." + method,
			Err: errors.Errorf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	log.Debug().Str("service", service).Str("method", method).Msg("SOAP call completed")
	return result, nil
}

// soapAction derives the WCF action URI from the binding name, e.g.
// BasicHttpBinding_ISessionService -> .../ISessionService/OpenSession.
func soapAction(service, method string) string {
	iface := service
	if i := strings.LastIndex(service, "_"); i >= 0 {
		iface = service[i+1:]
	}
	return contractNS + "/" + iface + "/" + method
}

func encodeEnvelope(method string, args []wire.Arg) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	e := xml.NewEncoder(&buf)
	envelope := xml.StartElement{
		Name: xml.Name{Local: "s:Envelope"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:s"}, Value: envelopeNS},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: schemaNS},
		},
	}
	bodyEl := xml.StartElement{Name: xml.Name{Local: "s:Body"}}
	methodEl := xml.StartElement{
		Name: xml.Name{Local: method},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: contractNS}},
	}

	if err := e.EncodeToken(envelope); err != nil {
		return nil, err
	}
	if err := e.EncodeToken(bodyEl); err != nil {
		return nil, err
	}
	if err := e.EncodeToken(methodEl); err != nil {
		return nil, err
	}
	if err := wire.EncodeArgs(e, args); err != nil {
		return nil, err
	}
	if err := e.EncodeToken(methodEl.End()); err != nil {
		return nil, err
	}
	if err := e.EncodeToken(bodyEl.End()); err != nil {
		return nil, err
	}
	if err := e.EncodeToken(envelope.End()); err != nil {
		return nil, err
	}
	if err := e.Flush(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodeEnvelope parses the response document. It returns the method
// result node, or the decoded fault when the body carries one.
func decodeEnvelope(raw []byte, method string) (*wire.Node, *Fault, error) {
	root := &wire.Node{}
	if err := xml.Unmarshal(raw, root); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse response document")
	}

	body := root.Child("Body")
	if body == nil {
		return nil, nil, errors.New("response has no body element")
	}

	if faultNode := body.Child("Fault"); faultNode != nil {
		return nil, decodeFault(faultNode), nil
	}

	response := body.Child(method + "Response")
	if response == nil {
		if len(body.Kids) == 0 {
			return nil, nil, errors.New("response body is empty")
		}
		response = body.Kids[0]
	}

	// WCF wraps the payload in a single <MethodResult> element.
	if result := response.Child(method + "Result"); result != nil {
		return result, nil, nil
	}
	return response, nil, nil
}

func decodeFault(n *wire.Node) *Fault {
	f := &Fault{
		Code:   n.ChildText("faultcode"),
		Reason: n.ChildText("faultstring"),
	}
	if detail := n.Child("detail"); detail != nil {
		f.Detail = flatten(detail)
	}
	return f
}

// flatten renders a subtree as "Name: text" pairs for fault details whose
// shape is not part of the fixed contract.
func flatten(n *wire.Node) string {
	var parts []string
	var walk func(node *wire.Node)
	walk = func(node *wire.Node) {
		if node.Value != "" {
			parts = append(parts, node.Name+": "+node.Value)
		} else if len(node.Kids) == 0 {
			parts = append(parts, node.Name)
		}
		for _, kid := range node.Kids {
			walk(kid)
		}
	}
	walk(n)
	return strings.Join(parts, "; ")
}
