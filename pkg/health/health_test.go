package health

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/nfsclient/pkg/client"
	"github.com/marmos91/nfsclient/pkg/config"
)

type fakeProber struct {
	err   error
	calls int
}

func (f *fakeProber) GetAttributes(ctx context.Context, path string, mustExist bool) (*client.FileAttributes, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &client.FileAttributes{}, nil
}

func TestChecker_InitialStatusIsUnknown(t *testing.T) {
	c := NewChecker(&fakeProber{}, config.HealthOptions{}, nil)
	if got := c.Status(); got != Unknown {
		t.Errorf("initial status = %v, want Unknown", got)
	}
}

func TestChecker_SuccessIsHealthy(t *testing.T) {
	p := &fakeProber{}
	c := NewChecker(p, config.HealthOptions{UnhealthyThreshold: 3}, nil)

	result := c.Probe(context.Background())
	if !result.Healthy || result.Err != nil {
		t.Errorf("Probe result = %+v, want healthy with no error", result)
	}
	if got := c.Status(); got != Healthy {
		t.Errorf("status after successful probe = %v, want Healthy", got)
	}
	if p.calls != 1 {
		t.Errorf("expected exactly one GetAttributes call, got %d", p.calls)
	}
}

func TestChecker_DegradesBeforeUnhealthyThreshold(t *testing.T) {
	p := &fakeProber{err: errors.New("connection refused")}
	c := NewChecker(p, config.HealthOptions{UnhealthyThreshold: 3}, nil)

	c.Probe(context.Background())
	if got := c.Status(); got != Degraded {
		t.Errorf("status after 1 failure (threshold 3) = %v, want Degraded", got)
	}
	c.Probe(context.Background())
	if got := c.Status(); got != Degraded {
		t.Errorf("status after 2 failures (threshold 3) = %v, want Degraded", got)
	}
	c.Probe(context.Background())
	if got := c.Status(); got != Unhealthy {
		t.Errorf("status after 3 failures (threshold 3) = %v, want Unhealthy", got)
	}
}

func TestChecker_SuccessResetsFailureCount(t *testing.T) {
	p := &fakeProber{err: errors.New("timeout")}
	c := NewChecker(p, config.HealthOptions{UnhealthyThreshold: 2}, nil)

	c.Probe(context.Background())
	if got := c.Status(); got != Degraded {
		t.Errorf("status after 1 failure (threshold 2) = %v, want Degraded", got)
	}

	p.err = nil
	c.Probe(context.Background())
	if got := c.Status(); got != Healthy {
		t.Errorf("status after a recovering probe = %v, want Healthy", got)
	}

	p.err = errors.New("timeout")
	c.Probe(context.Background())
	if got := c.Status(); got != Degraded {
		t.Errorf("status after failure count reset then 1 failure = %v, want Degraded", got)
	}
}

func TestChecker_ZeroThresholdClampsToOne(t *testing.T) {
	p := &fakeProber{err: errors.New("boom")}
	c := NewChecker(p, config.HealthOptions{}, nil)

	c.Probe(context.Background())
	if got := c.Status(); got != Unhealthy {
		t.Errorf("status with unset UnhealthyThreshold after 1 failure = %v, want Unhealthy", got)
	}
}

func TestChecker_LastResultReflectsMostRecentProbe(t *testing.T) {
	p := &fakeProber{}
	c := NewChecker(p, config.HealthOptions{UnhealthyThreshold: 1}, nil)

	if c.LastResult().Message != "" {
		t.Errorf("LastResult before any probe = %+v, want zero value", c.LastResult())
	}
	c.Probe(context.Background())
	if got := c.LastResult(); !got.Healthy || got.Message != "ok" {
		t.Errorf("LastResult after successful probe = %+v", got)
	}
}
