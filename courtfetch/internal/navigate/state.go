package navigate

// State is a step of one attempt through the portal form.
type State int

const (
	StateStart State = iota
	StatePageLoaded
	StateMenuOpened
	StateCourtSelected
	StateBenchSelected
	StateSearchModeSelected
	StateFieldsFilled
	StateCaptchaSolved
	StateSubmitted

	// Ends of an attempt.
	StateSuccess
	StateInvalidCaptcha
	StateCaptchaUnreadable
	StateNoHistory
	StateNoRecentOrders
	StateOrderFound
	StateTransientError
)

var stateNames = [...]string{
	StateStart:              "start",
	StatePageLoaded:         "page_loaded",
	StateMenuOpened:         "menu_opened",
	StateCourtSelected:      "court_selected",
	StateBenchSelected:      "bench_selected",
	StateSearchModeSelected: "search_mode_selected",
	StateFieldsFilled:       "fields_filled",
	StateCaptchaSolved:      "captcha_solved",
	StateSubmitted:          "submitted",
	StateSuccess:            "success",
	StateInvalidCaptcha:     "invalid_captcha",
	StateCaptchaUnreadable:  "captcha_unreadable",
	StateNoHistory:          "no_history",
	StateNoRecentOrders:     "no_recent_orders",
	StateOrderFound:         "order_found",
	StateTransientError:     "transient_error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the portal gave a definitive answer for the
// case. Terminal states stop the retry loop.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateNoHistory, StateNoRecentOrders, StateOrderFound:
		return true
	}
	return false
}

// Retryable reports whether the loop should spend another attempt.
func (s State) Retryable() bool {
	switch s {
	case StateInvalidCaptcha, StateCaptchaUnreadable, StateTransientError:
		return true
	}
	return false
}
