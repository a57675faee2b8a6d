package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/jakobtroidl/dvid-point-cloud/dvid"
	"github.com/jakobtroidl/dvid-point-cloud/labels"
)

func TestGetLabelIndex(t *testing.T) {
	idx := &labels.Index{
		Label: 131,
		Blocks: map[uint64]*labels.SVCount{
			labels.EncodeBlockIndex(1, 2, 3): {Counts: map[uint64]uint32{131: 1000}},
		},
	}
	serialization, err := labels.MarshalIndex(idx)
	if err != nil {
		t.Fatalf("MarshalIndex: %v\n", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/node/abc123/segmentation/index/131" {
			t.Errorf("unexpected path %q\n", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(serialization)
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.GetLabelIndex(context.Background(), "abc123", "segmentation", 131)
	if err != nil {
		t.Fatalf("GetLabelIndex: %v\n", err)
	}
	if got.Label != 131 || got.NumVoxels() != 1000 {
		t.Errorf("bad index: %+v\n", got)
	}
}

func TestGetLabelIndexNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetLabelIndex(context.Background(), "abc123", "segmentation", 9999)
	if !errors.Is(err, ErrLabelNotFound) {
		t.Errorf("expected ErrLabelNotFound, got %v\n", err)
	}
}

func TestGetSparsevolBlock(t *testing.T) {
	payload, err := dvid.EncodeSparseVol(dvid.RLEs{
		dvid.NewRLE(dvid.Point3d{64, 128, 192}, 10),
	})
	if err != nil {
		t.Fatalf("EncodeSparseVol: %v\n", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/node/abc123/segmentation/sparsevol/131" {
			t.Errorf("unexpected path %q\n", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("format") != "rles" || q.Get("exact") != "true" {
			t.Errorf("unexpected query %q\n", r.URL.RawQuery)
		}
		for param, want := range map[string]string{
			"minx": "64", "maxx": "127",
			"miny": "128", "maxy": "191",
			"minz": "192", "maxz": "255",
		} {
			if q.Get(param) != want {
				t.Errorf("query %s: expected %s, got %s\n", param, want, q.Get(param))
			}
		}
		w.Write(payload)
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.GetSparsevolBlock(context.Background(), "abc123", "segmentation", 131, dvid.ChunkPoint3d{1, 2, 3})
	if err != nil {
		t.Fatalf("GetSparsevolBlock: %v\n", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: %d bytes vs %d sent\n", len(got), len(payload))
	}
}

func TestGetSparsevolBlockGzip(t *testing.T) {
	payload, err := dvid.EncodeSparseVol(dvid.RLEs{
		dvid.NewRLE(dvid.Point3d{0, 0, 0}, 64),
	})
	if err != nil {
		t.Fatalf("EncodeSparseVol: %v\n", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("compression") != "gzip" {
			t.Errorf("expected compression=gzip in query %q\n", r.URL.RawQuery)
		}
		gw := gzip.NewWriter(w)
		gw.Write(payload)
		gw.Close()
	}))
	defer srv.Close()

	c := New(srv.URL, WithGzip())
	got, err := c.GetSparsevolBlock(context.Background(), "abc123", "segmentation", 131, dvid.ChunkPoint3d{0, 0, 0})
	if err != nil {
		t.Fatalf("GetSparsevolBlock: %v\n", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("gzip payload mismatch: %d bytes vs %d sent\n", len(got), len(payload))
	}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal problem", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.GetSparsevolBlock(context.Background(), "abc123", "segmentation", 131, dvid.ChunkPoint3d{0, 0, 0}); err == nil {
		t.Errorf("expected error on HTTP 500\n")
	}
}

func TestServerNormalization(t *testing.T) {
	c := New("emdata3:8900/")
	if c.server != "http://emdata3:8900" {
		t.Errorf("bad server normalization: %q\n", c.server)
	}
	c = New("https://emdata3.janelia.org")
	if c.server != "https://emdata3.janelia.org" {
		t.Errorf("bad server normalization: %q\n", c.server)
	}
}
