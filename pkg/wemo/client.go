package wemo

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	insightService     = "urn:Belkin:service:insight:1"
	insightControlPath = "/upnp/control/insight1"
	setupPath          = "/setup.xml"

	// maxResponseBytes caps how much of a device response is read.
	// Insight replies are well under 4KiB.
	maxResponseBytes = 1 << 20
)

// DefaultTimeout bounds a single query end to end, including the port
// probe. Keep it below the poll interval so a hung device cannot stall
// the scheduler.
const DefaultTimeout = 5 * time.Second

// DefaultPorts are the ports the Insight firmware is known to bind its
// UPnP server to, in probe order.
var DefaultPorts = []int{49153, 49152, 49154}

const getInsightParamsEnvelope = `<?xml version="1.0" encoding="utf-8"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
	`<s:Body><u:GetInsightParams xmlns:u="` + insightService + `"></u:GetInsightParams></s:Body>` +
	`</s:Envelope>`

type Option func(*Client)

// WithTimeout sets the per-query deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithPorts replaces the candidate UPnP ports probed during port
// resolution. Ignored when the address already carries a port.
func WithPorts(ports ...int) Option {
	return func(c *Client) {
		c.ports = ports
	}
}

// Client queries a single Wemo Insight device over its local UPnP/SOAP
// interface. It is stateless per call except for the resolved service
// port and device identity cached after the first successful probe.
//
// Client does not retry and is not safe for concurrent use; the
// scheduler guarantees one poll at a time.
type Client struct {
	address string
	ports   []int
	timeout time.Duration
	hc      *http.Client

	port       int // resolved port; 0 forces a re-probe
	deviceType string
}

// NewClient returns a client for the device at address. The address is
// an IP or hostname, optionally with an explicit port; without one the
// well-known Insight ports are probed.
func NewClient(address string, opts ...Option) *Client {
	c := &Client{
		address: address,
		ports:   DefaultPorts,
		timeout: DefaultTimeout,
		hc:      &http.Client{},
	}
	if host, port, err := net.SplitHostPort(address); err == nil {
		if p, perr := strconv.Atoi(port); perr == nil {
			c.address = host
			c.ports = []int{p}
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Address returns the device address the client was configured with,
// without any port.
func (c *Client) Address() string {
	return c.address
}

// Query performs one GetInsightParams exchange and returns the raw
// reading. Failures are classified as ErrUnreachable, ErrTimeout or
// ErrProtocol.
func (c *Client) Query(ctx context.Context) (*Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	port, err := c.resolvePort(ctx)
	if err != nil {
		return nil, err
	}
	params, err := c.getInsightParams(ctx, port)
	if err != nil {
		// Force a re-probe on the next query; the device may have
		// rebooted onto a different port.
		c.port = 0
		return nil, err
	}
	r, err := parseInsightParams(params)
	if err != nil {
		return nil, err
	}
	r.DeviceType = c.deviceType
	r.Address = c.address
	r.CollectedAt = time.Now().UTC()
	log.Ctx(ctx).Debug().
		Str("address", c.address).
		Int("port", port).
		Str("insight_params", params).
		Msg("device query complete")
	return r, nil
}

// resolvePort confirms the device's UPnP port by fetching setup.xml,
// caching the result and the advertised device type.
func (c *Client) resolvePort(ctx context.Context) (int, error) {
	if c.port != 0 {
		return c.port, nil
	}
	var lastErr error
	for _, port := range c.ports {
		deviceType, err := c.fetchSetup(ctx, port)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrTimeout) {
				// The overall deadline is shared; later candidates
				// would only see the same exhausted budget.
				break
			}
			continue
		}
		c.port = port
		c.deviceType = deviceType
		return port, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no candidate ports", ErrUnreachable)
	}
	return 0, lastErr
}

func (c *Client) fetchSetup(ctx context.Context, port int) (string, error) {
	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(c.address, strconv.Itoa(port)), setupPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building setup request: %v", ErrProtocol, err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: setup.xml returned status %d", ErrProtocol, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classify(err)
	}
	var setup struct {
		Device struct {
			DeviceType   string `xml:"deviceType"`
			FriendlyName string `xml:"friendlyName"`
		} `xml:"device"`
	}
	if err := xml.Unmarshal(body, &setup); err != nil {
		return "", fmt.Errorf("%w: parsing setup.xml: %v", ErrProtocol, err)
	}
	if setup.Device.DeviceType == "" {
		return "", fmt.Errorf("%w: setup.xml has no device type", ErrProtocol)
	}
	return setup.Device.DeviceType, nil
}

func (c *Client) getInsightParams(ctx context.Context, port int) (string, error) {
	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(c.address, strconv.Itoa(port)), insightControlPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(getInsightParamsEnvelope))
	if err != nil {
		return "", fmt.Errorf("%w: building insight request: %v", ErrProtocol, err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", `"`+insightService+`#GetInsightParams"`)
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: GetInsightParams returned status %d", ErrProtocol, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classify(err)
	}
	var envelope struct {
		Body struct {
			Response struct {
				InsightParams string `xml:"InsightParams"`
			} `xml:"GetInsightParamsResponse"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("%w: parsing insight response: %v", ErrProtocol, err)
	}
	params := strings.TrimSpace(envelope.Body.Response.InsightParams)
	if params == "" {
		return "", fmt.Errorf("%w: response has no InsightParams", ErrProtocol)
	}
	return params, nil
}

// parseInsightParams splits the pipe-delimited payload:
// state|lastchange|onfor|ontoday|ontotal|window|avgpower|currentmw|todaymw|totalmw|threshold
func parseInsightParams(params string) (*Reading, error) {
	fields := strings.Split(params, "|")
	if len(fields) < 10 {
		return nil, fmt.Errorf("%w: InsightParams has %d fields, want at least 10", ErrProtocol, len(fields))
	}
	state, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable state %q", ErrProtocol, fields[0])
	}
	return &Reading{
		RawState:                       state,
		OnForSeconds:                   num(fields[2]),
		OnTodaySeconds:                 num(fields[3]),
		TotalOnSeconds:                 num(fields[4]),
		PowerMilliwatts:                num(fields[7]),
		TodayEnergyMilliwattMinutes:    num(fields[8]),
		LifetimeEnergyMilliwattMinutes: num(fields[9]),
	}, nil
}

// num parses a numeric field, mapping malformed values to NaN rather
// than failing the whole reading.
func num(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// classify maps transport errors onto the failure taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
