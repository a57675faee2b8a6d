// Package client provides HTTP access to the DVID labelmap endpoints needed
// for point-cloud sampling: the label index and block-bounded sparse volumes.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/jakobtroidl/dvid-point-cloud/dvid"
	"github.com/jakobtroidl/dvid-point-cloud/labels"
)

// ErrLabelNotFound signals the server has no data for the requested label.
var ErrLabelNotFound = errors.New("label not found")

const defaultTimeout = 60 * time.Second

// Client issues requests against one DVID server.  It holds no per-call
// state, so one Client may be shared across goroutines.
type Client struct {
	server      string
	hc          *http.Client
	compression string
}

// Option modifies a Client during New.
type Option func(*Client)

// WithHTTPClient substitutes the http.Client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithTimeout bounds each request round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc = &http.Client{Timeout: d}
	}
}

// WithGzip asks the server to gzip sparse volume payloads, which the client
// transparently decompresses.
func WithGzip() Option {
	return func(c *Client) {
		c.compression = "gzip"
	}
}

// New returns a Client for the given server, e.g. "http://emdata3:8900" or
// just "emdata3:8900".
func New(server string, opts ...Option) *Client {
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	c := &Client{
		server: strings.TrimSuffix(server, "/"),
		hc:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetLabelIndex retrieves and deserializes the label index for the given
// label, which holds per-block supervoxel voxel counts.
//
//	GET <server>/api/node/<uuid>/<instance>/index/<label>
func (c *Client) GetLabelIndex(ctx context.Context, uuid, instance string, label uint64) (*labels.Index, error) {
	url := fmt.Sprintf("%s/api/node/%s/%s/index/%d", c.server, uuid, instance, label)
	data, err := c.get(ctx, url, false)
	if err != nil {
		return nil, err
	}
	idx, err := labels.UnmarshalIndex(data)
	if err != nil {
		return nil, fmt.Errorf("bad label index for label %d: %w", label, err)
	}
	return idx, nil
}

// GetSparsevolBlock retrieves the RLE-encoded sparse volume of the given
// label restricted to a single block.
//
//	GET <server>/api/node/<uuid>/<instance>/sparsevol/<label>?format=rles
//	    &minx=..&maxx=..&miny=..&maxy=..&minz=..&maxz=..&exact=true
func (c *Client) GetSparsevolBlock(ctx context.Context, uuid, instance string, label uint64, bcoord dvid.ChunkPoint3d) ([]byte, error) {
	minPt := bcoord.MinPoint()
	maxPt := bcoord.MaxPoint()
	url := fmt.Sprintf("%s/api/node/%s/%s/sparsevol/%d?format=rles&minx=%d&maxx=%d&miny=%d&maxy=%d&minz=%d&maxz=%d&exact=true",
		c.server, uuid, instance, label, minPt[0], maxPt[0], minPt[1], maxPt[1], minPt[2], maxPt[2])
	gzipped := c.compression == "gzip"
	if gzipped {
		url += "&compression=gzip"
	}
	return c.get(ctx, url, gzipped)
}

func (c *Client) get(ctx context.Context, url string, gzipped bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	timedLog := dvid.NewTimeLog()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: %w", url, ErrLabelNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GET %s: status %s: %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}

	body := io.Reader(resp.Body)
	if gzipped {
		gr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("GET %s: bad gzip stream: %w", url, err)
		}
		defer gr.Close()
		body = gr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: reading body: %w", url, err)
	}
	timedLog.Debugf("GET %s (%d bytes)", url, len(data))
	return data, nil
}
