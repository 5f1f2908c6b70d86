package iostore

import "testing"

func TestBufferPoolStripeCountIsPowerOfTwo(t *testing.T) {
	p := NewBufferPool(4096)
	n := p.StripeCount()
	if n&(n-1) != 0 {
		t.Fatalf("stripe count %d is not a power of two", n)
	}
	if n < 2 {
		t.Fatalf("expected at least 2 stripes, got %d", n)
	}
}

func TestBufferPoolWithStripeRunsCallback(t *testing.T) {
	p := NewBufferPool(64)
	done := make(chan struct{})
	go func() {
		_ = p.WithStripe(0, func(scratch []byte) error {
			close(done)
			return nil
		})
	}()
	<-done
}

func TestBufferPoolWithStripePropagatesError(t *testing.T) {
	p := NewBufferPool(64)
	sentinel := errFixture{}
	err := p.WithStripe(5, func(scratch []byte) error {
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error to propagate, got %v", err)
	}
}

type errFixture struct{}

func (errFixture) Error() string { return "fixture error" }
