package limits

import "testing"

func TestCheckLimit_WithinLimits(t *testing.T) {
	limiter := NewPositionLimiter(1000, 5000)

	if err := limiter.CheckLimit("GME", 100, nil); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckLimit_PerTickerExceeded(t *testing.T) {
	limiter := NewPositionLimiter(1000, 5000)

	holdings := map[string]int64{"GME": 950}
	if err := limiter.CheckLimit("GME", 100, holdings); err != ErrPerTickerLimitExceeded {
		t.Errorf("expected ErrPerTickerLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_PerTickerAtLimitAllowed(t *testing.T) {
	limiter := NewPositionLimiter(1000, 5000)

	holdings := map[string]int64{"GME": 900}
	if err := limiter.CheckLimit("GME", 100, holdings); err != nil {
		t.Errorf("expected buy at exactly the limit to pass, got %v", err)
	}
}

func TestCheckLimit_PortfolioExceeded(t *testing.T) {
	limiter := NewPositionLimiter(1000, 2000)

	holdings := map[string]int64{
		"GME":  800,
		"AMC":  800,
		"AAPL": 300,
	}
	if err := limiter.CheckLimit("TSLA", 200, holdings); err != ErrPortfolioLimitExceeded {
		t.Errorf("expected ErrPortfolioLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_ZeroCapsUnlimited(t *testing.T) {
	limiter := NewPositionLimiter(0, 0)

	holdings := map[string]int64{"GME": 1 << 40}
	if err := limiter.CheckLimit("GME", 1<<40, holdings); err != nil {
		t.Errorf("expected unlimited caps, got %v", err)
	}
}
